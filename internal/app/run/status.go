package run

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/planfile"
)

// StatusReport 是计划与 checkpoint 合并后的进度视图。
type StatusReport struct {
	PlanPath       string             `json:"plan_path"`
	CheckpointPath string             `json:"checkpoint_path"`
	Total          int                `json:"total"`
	Pending        int                `json:"pending"`
	Done           int                `json:"done"`
	Failed         int                `json:"failed"`
	Entries        []domain.PlanEntry `json:"entries"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Status 读取计划与 checkpoint（只读），返回每个条目的当前状态。
// checkpoint 中的 done/failed 优先于计划文件里的状态。
func Status(eff config.EffectiveConfig) StatusReport {
	sr := StatusReport{
		PlanPath:       eff.PlanPath,
		CheckpointPath: eff.CheckpointPath,
		Entries:        []domain.PlanEntry{},
	}
	entries, err := planfile.ReadPlan(eff.PlanPath)
	if err != nil {
		sr.ErrorCode = inputCode(err)
		sr.ErrorMsg = fmt.Sprintf("读取计划失败：%v", err)
		return sr
	}
	st, err := checkpoint.NewStore(eff.CheckpointPath, true).Load()
	if err != nil {
		sr.ErrorCode = domain.ErrCodeInputInvalid
		sr.ErrorMsg = fmt.Sprintf("读取 checkpoint 失败：%v", err)
		return sr
	}

	sr.Entries = Merge(entries, st)
	sr.Total = len(sr.Entries)
	sr.Pending, sr.Done, sr.Failed = domain.CountStatuses(sr.Entries)
	return sr
}

// Merge 把 checkpoint 状态叠加到计划条目上（返回新切片，不修改入参）。
func Merge(entries []domain.PlanEntry, st checkpoint.State) []domain.PlanEntry {
	out := make([]domain.PlanEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if _, ok := st[out[i].DestinationID]; !ok {
			continue
		}
		switch s := st.Get(out[i].DestinationID); s {
		case domain.StatusDone, domain.StatusFailed:
			out[i].Status = s
		case domain.StatusPending, domain.StatusInProgress:
			if out[i].Status == domain.StatusFailed {
				out[i].Status = domain.StatusPending
			}
		}
	}
	return out
}

// RetryFailed 把 failed 条目重置为 pending。ids 为空时重置全部 failed。
// 需要持有 checkpoint 锁（不能与 migrate 并行）。返回被重置的编号（排序后）。
func RetryFailed(eff config.EffectiveConfig, ids []string) ([]string, error) {
	store := checkpoint.NewStore(eff.CheckpointPath, false)
	if err := store.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = store.Unlock() }()

	st, err := store.Load()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		for id, s := range st {
			if s == domain.StatusFailed {
				ids = append(ids, id)
			}
		}
	}

	reset := make([]string, 0, len(ids))
	var errs []error
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if err := st.Retry(id); err != nil {
			errs = append(errs, err)
			continue
		}
		reset = append(reset, id)
	}
	sort.Strings(reset)

	if len(reset) > 0 {
		if err := store.Save(st); err != nil {
			return nil, err
		}
	}
	return reset, errors.Join(errs...)
}
