package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/douban2imdb/internal/app/planner"
	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/infra/fsx"
	"github.com/John-Robertt/douban2imdb/internal/logging"
	"github.com/John-Robertt/douban2imdb/internal/planfile"
)

// Plan 读取输入、构建迁移计划，并返回对外稳定的 PlanReport 与计划条目。
//
// - dry-run（eff.Apply=false）：不写任何文件，checkpoint 只读
// - apply：原子写入 plan 与 report；写入失败体现在 report 的 error_code 中
//
// 错误不会以 error 返回：统一落到 report.ErrorCode / ErrorMsg，由 CLI 决定退出码。
func Plan(ctx context.Context, eff config.EffectiveConfig, log *slog.Logger, obs Observer) (domain.PlanReport, []domain.PlanEntry) {
	if log == nil {
		log = logging.Discard()
	}
	obs = orNop(obs)
	obs.OnStart("plan", eff)

	rr := domain.PlanReport{
		RunID:        uuid.NewString(),
		SourcePath:   eff.SourcePath,
		ExistingPath: eff.ExistingPath,
		PlanPath:     eff.PlanPath,
		DryRun:       !eff.Apply,
		StartedAt:    time.Now().UTC(),
	}
	log = log.With(logging.FieldRunID, rr.RunID)

	fail := func(code string, err error) (domain.PlanReport, []domain.PlanEntry) {
		rr.ErrorCode = code
		rr.ErrorMsg = err.Error()
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		log.Error("plan failed", "error_code", code, "error", err)
		return rr, []domain.PlanEntry{}
	}

	loadStarted := time.Now()
	records, malformed, err := planfile.ReadSource(eff.SourcePath)
	if err != nil {
		return fail(inputCode(err), fmt.Errorf("读取豆瓣评分失败：%w", err))
	}
	existing, err := planfile.ReadExisting(eff.ExistingPath)
	if err != nil {
		if !errors.Is(err, planfile.ErrNotFound) {
			return fail(inputCode(err), fmt.Errorf("读取 IMDb 已有评分失败：%w", err))
		}
		log.Info("existing ratings not found, skipped", logging.FieldPath, eff.ExistingPath)
		existing = nil
	}

	// plan 阶段只读 checkpoint：不加锁、不写回。
	st, err := checkpoint.NewStore(eff.CheckpointPath, true).Load()
	if err != nil {
		return fail(domain.ErrCodeInputInvalid, fmt.Errorf("读取 checkpoint 失败：%w", err))
	}
	obs.OnPhaseDone("load", map[string]any{
		"records":    len(records),
		"existing":   len(existing),
		"checkpoint": len(st),
	}, time.Since(loadStarted))

	if err := ctx.Err(); err != nil {
		return fail(domain.ErrCodeIOFailed, err)
	}

	buildStarted := time.Now()
	res, err := planner.Build(records, existing, st, planner.Options{
		SeriesThreshold: eff.SeriesThreshold,
		MatchThreshold:  eff.MatchThreshold,
		Strict:          eff.Strict,
		Malformed:       malformed,
	})
	if err != nil {
		return fail(domain.ErrCodeInputInvalid, err)
	}
	rr.Stats = res.Stats
	rr.Unmatched = res.Unmatched
	rr.Warnings = res.Warnings
	rr.Pending, rr.Done, rr.Failed = domain.CountStatuses(res.Entries)
	obs.OnPhaseDone("build", map[string]any{
		"entries":   res.Stats.Entries,
		"unmatched": res.Stats.Unmatched,
		"invalid":   res.Stats.Invalid,
		"merged":    res.Stats.SeriesMerged,
	}, time.Since(buildStarted))
	for _, w := range res.Warnings {
		log.Debug("record excluded", "index", w.Index, "title", w.Title, "code", w.Code)
	}

	if eff.Apply {
		writeStarted := time.Now()
		if err := planfile.WritePlan(eff.PlanPath, res.Entries); err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Errorf("写入计划失败：%w", err))
		}
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if err := fsx.WriteJSON(eff.ReportPath, rr); err != nil {
			return fail(domain.ErrCodeIOFailed, fmt.Errorf("写入报告失败：%w", err))
		}
		obs.OnPhaseDone("write", map[string]any{
			"plan":   eff.PlanPath,
			"report": eff.ReportPath,
		}, time.Since(writeStarted))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	log.Info("plan built",
		"entries", rr.Stats.Entries,
		"pending", rr.Pending,
		"done", rr.Done,
		"failed", rr.Failed,
		"unmatched", rr.Stats.Unmatched,
		"dry_run", rr.DryRun,
	)
	return rr, res.Entries
}

func inputCode(err error) string {
	var fe *planfile.FormatError
	if errors.Is(err, planfile.ErrNotFound) || errors.As(err, &fe) {
		return domain.ErrCodeInputInvalid
	}
	return domain.ErrCodeIOFailed
}
