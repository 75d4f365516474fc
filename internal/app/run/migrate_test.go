package run

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/planfile"
	"github.com/John-Robertt/douban2imdb/internal/rater"
)

func seedPlan(t *testing.T, path string, entries ...domain.PlanEntry) {
	t.Helper()
	if err := planfile.WritePlan(path, entries); err != nil {
		t.Fatalf("写入计划失败：%v", err)
	}
}

func pe(id string, status domain.Status) domain.PlanEntry {
	return domain.PlanEntry{DestinationID: id, Rating: 8, SourceTitles: []string{id}, Status: status, SourceRatings: []int{4}, Match: domain.MatchByID}
}

// scriptedRater 按编号返回预设结果，并记录调用顺序。
type scriptedRater struct {
	calls   []string
	results map[string][]error
}

func (r *scriptedRater) Rate(ctx context.Context, e domain.PlanEntry) error {
	r.calls = append(r.calls, e.DestinationID)
	q := r.results[e.DestinationID]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	r.results[e.DestinationID] = q[1:]
	return err
}

func TestMigrate_HappyPathSkipsDone(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending), pe("tt2", domain.StatusDone), pe("tt3", domain.StatusPending))

	r := &scriptedRater{}
	obs := &recordObserver{}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Sleep: noSleep}, nil, obs)

	if rr.ErrorCode != "" {
		t.Fatalf("不期望错误：%s %s", rr.ErrorCode, rr.ErrorMsg)
	}
	if want := []string{"tt1", "tt3"}; !reflect.DeepEqual(r.calls, want) {
		t.Fatalf("已 done 的条目不应提交：calls=%v", r.calls)
	}
	if rr.Total != 3 || rr.Attempted != 2 || rr.Done != 2 || rr.Remaining != 0 || rr.Interrupted {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	want := map[string]string{"tt1": "done", "tt2": "done", "tt3": "done"}
	if got := readCheckpoint(t, eff.CheckpointPath); !reflect.DeepEqual(got, want) {
		t.Fatalf("checkpoint 不符合预期：%v", got)
	}
	if want := []string{"tt1:done", "tt3:done"}; !reflect.DeepEqual(obs.entries, want) {
		t.Fatalf("条目事件不符合预期：%v", obs.entries)
	}

	// 再跑一次：全部 done，不应有任何提交。
	r2 := &scriptedRater{}
	rr = Migrate(context.Background(), eff, r2, MigrateOptions{Sleep: noSleep}, nil, nil)
	if len(r2.calls) != 0 || rr.Attempted != 0 {
		t.Fatalf("done 条目不应被重复处理：calls=%v report=%+v", r2.calls, rr)
	}
}

func TestMigrate_RetriesThenFails(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	eff.MaxRetries = 2
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending), pe("tt2", domain.StatusPending))

	boom := errors.New("page not loaded")
	r := &scriptedRater{results: map[string][]error{
		"tt1": {boom, boom, boom},
		"tt2": {boom},
	}}
	obs := &recordObserver{}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Sleep: noSleep}, nil, obs)

	if rr.Done != 1 || rr.Failed != 1 {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	if len(rr.Failures) != 1 || rr.Failures[0].DestinationID != "tt1" || rr.Failures[0].Attempts != 3 {
		t.Fatalf("failures 不符合预期：%+v", rr.Failures)
	}
	if obs.retries != 3 {
		t.Fatalf("期望 3 次重试事件（tt1 两次 + tt2 一次），实际 %d", obs.retries)
	}
	want := map[string]string{"tt1": "failed", "tt2": "done"}
	if got := readCheckpoint(t, eff.CheckpointPath); !reflect.DeepEqual(got, want) {
		t.Fatalf("checkpoint 不符合预期：%v", got)
	}

	// failed 条目在 retry 之前不会再被处理。
	r2 := &scriptedRater{}
	_ = Migrate(context.Background(), eff, r2, MigrateOptions{Sleep: noSleep}, nil, nil)
	if len(r2.calls) != 0 {
		t.Fatalf("failed 条目不应被自动重试：%v", r2.calls)
	}

	reset, err := RetryFailed(eff, nil)
	if err != nil || !reflect.DeepEqual(reset, []string{"tt1"}) {
		t.Fatalf("RetryFailed 不符合预期：reset=%v err=%v", reset, err)
	}
	r3 := &scriptedRater{}
	rr = Migrate(context.Background(), eff, r3, MigrateOptions{Sleep: noSleep}, nil, nil)
	if !reflect.DeepEqual(r3.calls, []string{"tt1"}) || rr.Done != 1 {
		t.Fatalf("retry 后应重新处理 tt1：calls=%v report=%+v", r3.calls, rr)
	}
}

func TestMigrate_SkipIsFailedWithoutRetry(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending))

	r := &scriptedRater{results: map[string][]error{"tt1": {rater.ErrSkipped}}}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Sleep: noSleep}, nil, nil)
	if len(r.calls) != 1 || rr.Failed != 1 || rr.Failures[0].Attempts != 1 {
		t.Fatalf("跳过不应重试：calls=%v report=%+v", r.calls, rr)
	}
}

func TestMigrate_QuitThenResume(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending), pe("tt2", domain.StatusPending), pe("tt3", domain.StatusPending))

	r := &scriptedRater{results: map[string][]error{"tt2": {rater.ErrQuit}}}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Sleep: noSleep}, nil, nil)
	if !rr.Interrupted || rr.Done != 1 || rr.Remaining != 2 {
		t.Fatalf("退出后 report 不符合预期：%+v", rr)
	}
	if got := readCheckpoint(t, eff.CheckpointPath); got["tt2"] != "in_progress" {
		t.Fatalf("中断时当前条目应保持 in_progress：%v", got)
	}

	r2 := &scriptedRater{}
	rr = Migrate(context.Background(), eff, r2, MigrateOptions{Sleep: noSleep}, nil, nil)
	if !reflect.DeepEqual(r2.calls, []string{"tt2", "tt3"}) {
		t.Fatalf("恢复后应从 tt2 继续：%v", r2.calls)
	}
	if rr.Recovered != 1 || rr.Remaining != 0 || rr.Interrupted {
		t.Fatalf("恢复后的 report 不符合预期：%+v", rr)
	}
}

func TestMigrate_ContextCanceledStopsBetweenEntries(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending), pe("tt2", domain.StatusPending))

	ctx, cancel := context.WithCancel(context.Background())
	r := rater.Func(func(ctx context.Context, e domain.PlanEntry) error {
		cancel()
		return nil
	})
	rr := Migrate(ctx, eff, r, MigrateOptions{Sleep: noSleep}, nil, nil)
	if !rr.Interrupted || rr.Done != 1 || rr.Attempted != 1 {
		t.Fatalf("取消后应在条目之间停止：%+v", rr)
	}
}

func TestMigrate_Limit(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending), pe("tt2", domain.StatusPending), pe("tt3", domain.StatusPending))

	r := &scriptedRater{}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Limit: 2, Sleep: noSleep}, nil, nil)
	if len(r.calls) != 2 || rr.Remaining != 1 || rr.Interrupted {
		t.Fatalf("limit 不符合预期：calls=%v report=%+v", r.calls, rr)
	}
}

func TestMigrate_LockedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	eff := testConfig(dir)
	seedPlan(t, eff.PlanPath, pe("tt1", domain.StatusPending))

	other := checkpoint.NewStore(eff.CheckpointPath, false)
	if err := other.Lock(); err != nil {
		t.Fatalf("获取锁失败：%v", err)
	}
	defer func() { _ = other.Unlock() }()

	r := &scriptedRater{}
	rr := Migrate(context.Background(), eff, r, MigrateOptions{Sleep: noSleep}, nil, nil)
	if rr.ErrorCode != domain.ErrCodeLocked || len(r.calls) != 0 {
		t.Fatalf("期望 %q 且不提交任何条目：%+v calls=%v", domain.ErrCodeLocked, rr, r.calls)
	}
}

func TestMigrate_MissingPlan(t *testing.T) {
	eff := testConfig(t.TempDir())
	rr := Migrate(context.Background(), eff, &scriptedRater{}, MigrateOptions{}, nil, nil)
	if rr.ErrorCode != domain.ErrCodeInputInvalid || rr.Failures == nil {
		t.Fatalf("缺少计划应返回 input_invalid：%+v", rr)
	}
}
