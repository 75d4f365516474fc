package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout 终端），不污染 stdout 的 JSON 契约。
// run 层只发事件，展示方式由 CLI 决定。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	ok   int
	fail int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(op string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := ""
	if op == "plan" {
		mode = " (dry-run，不写入文件)"
		if eff.Apply {
			mode = " (apply)"
		}
	}
	fmt.Fprintf(p.w, "[%s] douban2imdb %s%s\n", now.Format("15:04:05"), op, mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	switch op {
	case "plan":
		fmt.Fprintf(p.w, "  source: %s\n", eff.SourcePath)
		fmt.Fprintf(p.w, "  existing: %s\n", eff.ExistingPath)
		fmt.Fprintf(p.w, "  series_threshold: %.2f match_threshold: %.2f strict: %s\n",
			eff.SeriesThreshold, eff.MatchThreshold, onOff(eff.Strict))
		if eff.Apply {
			fmt.Fprintf(p.w, "  plan: %s\n", eff.PlanPath)
			fmt.Fprintf(p.w, "  report: %s\n", eff.ReportPath)
		}
	case "migrate":
		fmt.Fprintf(p.w, "  plan: %s\n", eff.PlanPath)
		fmt.Fprintf(p.w, "  max_retries: %d\n", eff.MaxRetries)
	}
	fmt.Fprintf(p.w, "  checkpoint: %s\n", eff.CheckpointPath)
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "load":
		fmt.Fprintf(p.w, "读取: records=%d existing=%d checkpoint=%d (%s)\n",
			intField(fields, "records"), intField(fields, "existing"), intField(fields, "checkpoint"), formatShortDuration(dur),
		)
	case "build":
		fmt.Fprintf(p.w, "规划: entries=%d unmatched=%d invalid=%d merged=%d (%s)\n",
			intField(fields, "entries"), intField(fields, "unmatched"), intField(fields, "invalid"), intField(fields, "merged"), formatShortDuration(dur),
		)
	case "write":
		fmt.Fprintf(p.w, "写入: %s (%s)\n", stringField(fields, "plan"), formatShortDuration(dur))
	case "import":
		if pages := intField(fields, "pages"); pages > 0 {
			fmt.Fprintf(p.w, "导入: pages=%d records=%d with_imdb_id=%d warnings=%d (%s)\n",
				pages, intField(fields, "records"), intField(fields, "with_id"), intField(fields, "warnings"), formatShortDuration(dur),
			)
			return
		}
		fmt.Fprintf(p.w, "导入: records=%d warnings=%d (%s)\n",
			intField(fields, "records"), intField(fields, "warnings"), formatShortDuration(dur),
		)
	default:
		// 未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnEntryStart(idx, total int, e domain.PlanEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Duration(0)
	if !p.startedAt.IsZero() {
		elapsed = time.Since(p.startedAt)
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %d/10 %s (ok=%d fail=%d elapsed=%s)\n",
		idx, total, e.DestinationID, e.Rating, truncate(joinTitles(e.SourceTitles), 60), p.ok, p.fail, formatElapsed(elapsed),
	)
}

func (p *progressUI) OnRetry(e domain.PlanEntry, attempt int, wait time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := ""
	if err != nil {
		msg = truncate(err.Error(), 120)
	}
	fmt.Fprintf(p.w, "  %s 第 %d 次失败，%s 后重试：%s\n", e.DestinationID, attempt, formatShortDuration(wait), msg)
}

func (p *progressUI) OnEntryDone(idx, total int, e domain.PlanEntry, status domain.Status, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := strings.ToUpper(string(status))
	switch status {
	case domain.StatusDone:
		p.ok++
		label = "OK"
	case domain.StatusFailed:
		p.fail++
		label = "FAIL"
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, e.DestinationID, label, formatShortDuration(dur))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func joinTitles(titles []string) string {
	return strings.Join(titles, " | ")
}

// truncate 按字符截断（标题多为中文，不能按字节切）。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}
