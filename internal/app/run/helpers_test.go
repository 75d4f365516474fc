package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	starts  []string
	phases  []string
	entries []string
	retries int
}

func (o *recordObserver) OnStart(op string, eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts = append(o.starts, op)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnEntryStart(idx, total int, e domain.PlanEntry) {}

func (o *recordObserver) OnRetry(e domain.PlanEntry, attempt int, wait time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *recordObserver) OnEntryDone(idx, total int, e domain.PlanEntry, status domain.Status, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, e.DestinationID+":"+string(status))
}

func testConfig(dir string) config.EffectiveConfig {
	return config.EffectiveConfig{
		SourcePath:      filepath.Join(dir, "douban.json"),
		ExistingPath:    filepath.Join(dir, "imdb.json"),
		PlanPath:        filepath.Join(dir, "plan.json"),
		CheckpointPath:  filepath.Join(dir, "checkpoint.json"),
		ReportPath:      filepath.Join(dir, "report.json"),
		SeriesThreshold: config.DefaultSeriesThreshold,
		MatchThreshold:  config.DefaultMatchThreshold,
		MaxRetries:      config.DefaultMaxRetries,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("序列化失败：%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func readCheckpoint(t *testing.T, path string) map[string]string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 checkpoint 失败：%v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("解析 checkpoint 失败：%v", err)
	}
	return m
}
