package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/douban2imdb/internal/infra/fsx"
)

var (
	ErrReadOnly = errors.New("checkpoint: read-only")
	ErrLocked   = errors.New("checkpoint: locked by another process")
)

// Store 负责 checkpoint 文件的读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 迁移会话期间持有 <path>.lock 排他锁，保证单写者
type Store struct {
	Path     string
	ReadOnly bool

	lock      *flock.Flock
	recovered int
}

func NewStore(path string, readOnly bool) *Store {
	path = filepath.Clean(strings.TrimSpace(path))
	return &Store{
		Path:     path,
		ReadOnly: readOnly,
		lock:     flock.New(path + ".lock"),
	}
}

// Lock 以非阻塞方式获取排他锁；已被其他进程持有时返回 ErrLocked。
func (s *Store) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("获取 checkpoint 锁失败：%w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Load 读取 checkpoint；文件不存在时返回空状态。
func (s *Store) Load() (State, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	st, n, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("解析 checkpoint %q 失败：%w", s.Path, err)
	}
	s.recovered = n
	return st, nil
}

// Recovered 返回最近一次 Load 从 in_progress 恢复为 pending 的条目数。
func (s *Store) Recovered() int { return s.recovered }

// Save 以原子替换的方式写入完整 checkpoint。
func (s *Store) Save(st State) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	b, err := st.Encode()
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(s.Path, b)
}
