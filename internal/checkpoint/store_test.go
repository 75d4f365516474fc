package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/douban2imdb/internal/domain"
)

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "checkpoint.json"), false)
	st, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, st)
}

func TestStore_SaveAndReloadAfterCrash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "checkpoint.json")
	s := NewStore(path, false)

	st := New()
	require.NoError(t, st.Begin("tt001"))
	require.NoError(t, s.Save(st))

	// 模拟崩溃：进程退出时 tt001 仍是 in_progress。
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"tt001": "in_progress"`)

	ro := NewStore(path, true)
	reloaded, err := ro.Load()
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, reloaded.Get("tt001"))
	require.Equal(t, 1, ro.Recovered())
}

func TestStore_ReadOnlyRejectsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	s := NewStore(path, true)
	require.ErrorIs(t, s.Save(New()), ErrReadOnly)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestStore_LockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	a := NewStore(path, false)
	b := NewStore(path, false)

	require.NoError(t, a.Lock())
	require.ErrorIs(t, b.Lock(), ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}

func TestStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	_, err := NewStore(path, true).Load()
	require.Error(t, err)
}
