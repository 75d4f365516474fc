// Package checkpoint 维护迁移进度：每个 IMDb 编号一个状态，持久化为 JSON 对象。
//
// checkpoint 文件是跨进程重启的唯一事实来源：
//   - done 为终态，永不重复处理
//   - failed 只能通过 Retry 重置为 pending
//   - 崩溃遗留的 in_progress 在加载时一律视为 pending（没有显式 done 就不算完成）
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/domain"
)

// ErrTransition 表示不允许的状态迁移；errors.Is 可用于判断。
var ErrTransition = errors.New("checkpoint: invalid transition")

type TransitionError struct {
	ID   string
	From domain.Status
	To   domain.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s：不允许从 %s 迁移到 %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrTransition }

// State 是显式传递的进度对象（不使用全局状态）。未出现的编号视为 pending。
type State map[string]domain.Status

func New() State { return State{} }

// Get 返回编号的当前状态。
func (s State) Get(id string) domain.Status {
	if st, ok := s[id]; ok {
		return st
	}
	return domain.StatusPending
}

// Begin：pending -> in_progress
func (s State) Begin(id string) error {
	return s.move(id, domain.StatusPending, domain.StatusInProgress)
}

// Complete：in_progress -> done
func (s State) Complete(id string) error {
	return s.move(id, domain.StatusInProgress, domain.StatusDone)
}

// Fail：in_progress -> failed
func (s State) Fail(id string) error {
	return s.move(id, domain.StatusInProgress, domain.StatusFailed)
}

// Retry：failed -> pending
func (s State) Retry(id string) error {
	return s.move(id, domain.StatusFailed, domain.StatusPending)
}

// MarkDone 直接记为 done（IMDb 上已有评分的条目），done 上重复调用是幂等的。
func (s State) MarkDone(id string) error {
	switch cur := s.Get(id); cur {
	case domain.StatusDone:
		return nil
	case domain.StatusPending, domain.StatusFailed:
		s[id] = domain.StatusDone
		return nil
	default:
		return &TransitionError{ID: id, From: cur, To: domain.StatusDone}
	}
}

// Recover 把 in_progress 全部视为 pending，返回被恢复的条目数。
func (s State) Recover() int {
	n := 0
	for id, st := range s {
		if st == domain.StatusInProgress {
			s[id] = domain.StatusPending
			n++
		}
	}
	return n
}

func (s State) move(id string, from, to domain.Status) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("imdb_id 不能为空")
	}
	cur := s.Get(id)
	if cur != from {
		return &TransitionError{ID: id, From: cur, To: to}
	}
	s[id] = to
	return nil
}

// Decode 解析 checkpoint JSON（{"tt001":"done",...}），并把 in_progress 恢复为 pending。
func Decode(b []byte) (State, error) {
	s, _, err := decode(b)
	return s, err
}

func decode(b []byte) (State, int, error) {
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, 0, err
	}
	s := make(State, len(raw))
	for id, v := range raw {
		st, err := domain.ParseStatus(v)
		if err != nil {
			return nil, 0, fmt.Errorf("%s：%w", id, err)
		}
		s[id] = st
	}
	return s, s.Recover(), nil
}

// Encode 输出缩进 JSON；encoding/json 对 map 的键排序，保证输出稳定。
func (s State) Encode() ([]byte, error) {
	if s == nil {
		s = State{}
	}
	b, err := json.MarshalIndent(map[string]domain.Status(s), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
