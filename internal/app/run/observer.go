package run

import (
	"time"

	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
type Observer interface {
	// OnStart 在命令开始时调用（op 为 plan / migrate / import）。
	OnStart(op string, eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnEntryStart 在开始为某个条目评分前调用。
	OnEntryStart(idx, total int, e domain.PlanEntry)
	// OnRetry 在一次失败后、退避等待前调用（attempt 从 1 开始）。
	OnRetry(e domain.PlanEntry, attempt int, wait time.Duration, err error)
	// OnEntryDone 在条目得到结果后调用；status 为写入 checkpoint 的状态。
	OnEntryDone(idx, total int, e domain.PlanEntry, status domain.Status, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, config.EffectiveConfig)                               {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)                    {}
func (nopObserver) OnEntryStart(int, int, domain.PlanEntry)                              {}
func (nopObserver) OnRetry(domain.PlanEntry, int, time.Duration, error)                  {}
func (nopObserver) OnEntryDone(int, int, domain.PlanEntry, domain.Status, time.Duration) {}

func orNop(obs Observer) Observer {
	if obs == nil {
		return nopObserver{}
	}
	return obs
}
