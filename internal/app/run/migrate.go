package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/infra/retry"
	"github.com/John-Robertt/douban2imdb/internal/logging"
	"github.com/John-Robertt/douban2imdb/internal/planfile"
	"github.com/John-Robertt/douban2imdb/internal/rater"
)

type MigrateOptions struct {
	// Limit 限制本次会话最多处理的条目数；0 表示不限制。
	Limit int

	// Sleep/Jitter 透传给 retry.Policy，测试中用于跳过真实等待。
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

// Migrate 按计划顺序逐条提交评分（严格串行）。
//
// 每个条目：pending -> in_progress -> done/failed，每次状态变化后立即写回 checkpoint。
// - checkpoint 已是 done / failed 的条目不处理（failed 需先 checkpoint retry）
// - 计划中已是 done（IMDb 上已有评分）的条目直接记为 done
// - 暂时性错误按 eff.MaxRetries 指数退避重试；rater.ErrSkipped 记为 failed 且不重试
// - ctx 取消或 rater.ErrQuit：立即停止，当前条目保持 in_progress，下次加载时恢复为 pending
func Migrate(ctx context.Context, eff config.EffectiveConfig, r rater.Rater, opts MigrateOptions, log *slog.Logger, obs Observer) domain.MigrateReport {
	if log == nil {
		log = logging.Discard()
	}
	obs = orNop(obs)
	obs.OnStart("migrate", eff)

	rr := domain.MigrateReport{
		RunID:          uuid.NewString(),
		PlanPath:       eff.PlanPath,
		CheckpointPath: eff.CheckpointPath,
		StartedAt:      time.Now().UTC(),
	}
	log = log.With(logging.FieldRunID, rr.RunID)

	finish := func() domain.MigrateReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	fail := func(code string, err error) domain.MigrateReport {
		rr.ErrorCode = code
		rr.ErrorMsg = err.Error()
		log.Error("migrate failed", "error_code", code, "error", err)
		return finish()
	}

	if r == nil {
		return fail(domain.ErrCodeConfigInvalid, errors.New("rater 不能为空"))
	}

	entries, err := planfile.ReadPlan(eff.PlanPath)
	if err != nil {
		return fail(inputCode(err), fmt.Errorf("读取计划失败：%w", err))
	}
	rr.Total = len(entries)

	store := checkpoint.NewStore(eff.CheckpointPath, false)
	if err := store.Lock(); err != nil {
		if errors.Is(err, checkpoint.ErrLocked) {
			return fail(domain.ErrCodeLocked, err)
		}
		return fail(domain.ErrCodeIOFailed, err)
	}
	defer func() { _ = store.Unlock() }()

	st, err := store.Load()
	if err != nil {
		return fail(domain.ErrCodeInputInvalid, fmt.Errorf("读取 checkpoint 失败：%w", err))
	}
	rr.Recovered = store.Recovered()
	if rr.Recovered > 0 {
		log.Warn("recovered interrupted entries", "count", rr.Recovered)
	}

	policy := retry.Policy{
		Retries: eff.MaxRetries,
		Sleep:   opts.Sleep,
		Jitter:  opts.Jitter,
	}

	save := func() error {
		if err := store.Save(st); err != nil {
			return fmt.Errorf("写入 checkpoint 失败：%w", err)
		}
		return nil
	}

	total := len(entries)
	for i, e := range entries {
		if opts.Limit > 0 && rr.Attempted >= opts.Limit {
			break
		}
		if ctx.Err() != nil {
			rr.Interrupted = true
			break
		}

		id := e.DestinationID
		switch st.Get(id) {
		case domain.StatusDone, domain.StatusFailed:
			continue
		}
		if e.Status == domain.StatusDone {
			if err := st.MarkDone(id); err != nil {
				return fail(domain.ErrCodeIOFailed, err)
			}
			if err := save(); err != nil {
				return fail(domain.ErrCodeIOFailed, err)
			}
			continue
		}

		rr.Attempted++
		if err := st.Begin(id); err != nil {
			return fail(domain.ErrCodeIOFailed, err)
		}
		if err := save(); err != nil {
			return fail(domain.ErrCodeIOFailed, err)
		}

		obs.OnEntryStart(i+1, total, e)
		started := time.Now()
		attempts, err := policy.Do(ctx, func(ctx context.Context) error {
			err := r.Rate(ctx, e)
			if errors.Is(err, rater.ErrSkipped) || errors.Is(err, rater.ErrQuit) {
				return retry.Stop(err)
			}
			return err
		}, func(attempt int, wait time.Duration, err error) {
			log.Warn("rate failed, retrying", logging.FieldIMDbID, id, logging.FieldAttempt, attempt, "wait", wait, "error", err)
			obs.OnRetry(e, attempt, wait, err)
		})

		switch {
		case err == nil:
			if err := st.Complete(id); err != nil {
				return fail(domain.ErrCodeIOFailed, err)
			}
			rr.Done++
			log.Info("rated", logging.FieldIMDbID, id, "rating", e.Rating, logging.FieldAttempt, attempts)
		case errors.Is(err, rater.ErrQuit) || ctx.Err() != nil:
			rr.Interrupted = true
			log.Info("session stopped", logging.FieldIMDbID, id, "error", err)
			return finishRemaining(&rr, entries, st, finish)
		default:
			if err := st.Fail(id); err != nil {
				return fail(domain.ErrCodeIOFailed, err)
			}
			rr.Failed++
			rr.Failures = append(rr.Failures, domain.Failure{DestinationID: id, Attempts: attempts, Error: err.Error()})
			log.Warn("rate failed", logging.FieldIMDbID, id, logging.FieldAttempt, attempts, "error", err)
		}
		if err := save(); err != nil {
			return fail(domain.ErrCodeIOFailed, err)
		}
		obs.OnEntryDone(i+1, total, e, st.Get(id), time.Since(started))
	}

	return finishRemaining(&rr, entries, st, finish)
}

func finishRemaining(rr *domain.MigrateReport, entries []domain.PlanEntry, st checkpoint.State, finish func() domain.MigrateReport) domain.MigrateReport {
	rr.Remaining = 0
	for _, e := range entries {
		switch st.Get(e.DestinationID) {
		case domain.StatusPending, domain.StatusInProgress:
			if e.Status != domain.StatusDone {
				rr.Remaining++
			}
		}
	}
	return finish()
}
