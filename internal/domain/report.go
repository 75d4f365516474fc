package domain

import (
	"sort"
	"time"
)

const (
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeInputInvalid   = "input_invalid"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeLocked         = "checkpoint_locked"
)

// PlanStats 是构建计划时的统计信息（对应 report.json 的 stats）。
type PlanStats struct {
	Total          int `json:"total"`
	MatchedByID    int `json:"matched_by_id"`
	MatchedByTitle int `json:"matched_by_title"`
	Unmatched      int `json:"unmatched"`
	Invalid        int `json:"invalid"`
	Entries        int `json:"entries"`
	AlreadyRated   int `json:"already_rated"`
	SeriesMerged   int `json:"series_merged"`

	// BySourceRating：豆瓣星级 -> 条数（只统计进入计划的记录，不含 unmatched 与 invalid）。
	BySourceRating map[int]int `json:"by_source_rating"`
}

// PlanReport 是 plan 命令对外稳定输出（report.json / stdout JSON）的结构。
type PlanReport struct {
	RunID        string `json:"run_id"`
	SourcePath   string `json:"source_path"`
	ExistingPath string `json:"existing_path"`
	PlanPath     string `json:"plan_path"`
	DryRun       bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stats     PlanStats   `json:"stats"`
	Pending   int         `json:"pending"`
	Done      int         `json:"done"`
	Failed    int         `json:"failed"`
	Unmatched []Unmatched `json:"unmatched"`
	Warnings  []Warning   `json:"warnings"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（JSON 为 RFC3339 且后缀 Z）
// 2) unmatched / warnings 按输入下标稳定排序
// 3) nil 切片改为空切片，保证 JSON 输出 [] 而不是 null
func (r *PlanReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Unmatched == nil {
		r.Unmatched = []Unmatched{}
	}
	if r.Warnings == nil {
		r.Warnings = []Warning{}
	}
	if r.Stats.BySourceRating == nil {
		r.Stats.BySourceRating = map[int]int{}
	}
	sort.SliceStable(r.Unmatched, func(i, j int) bool { return r.Unmatched[i].Index < r.Unmatched[j].Index })
	sort.SliceStable(r.Warnings, func(i, j int) bool { return r.Warnings[i].Index < r.Warnings[j].Index })
}

// CountStatuses 统计计划中各状态的条目数。
func CountStatuses(entries []PlanEntry) (pending, done, failed int) {
	for _, e := range entries {
		switch e.Status {
		case StatusDone:
			done++
		case StatusFailed:
			failed++
		default:
			pending++
		}
	}
	return pending, done, failed
}

// Failure 是一次迁移会话中失败（或被跳过）的条目。
type Failure struct {
	DestinationID string `json:"imdb_id"`
	Attempts      int    `json:"attempts"`
	Error         string `json:"error"`
}

// MigrateReport 是 migrate 命令的对外稳定输出。
type MigrateReport struct {
	RunID          string `json:"run_id"`
	PlanPath       string `json:"plan_path"`
	CheckpointPath string `json:"checkpoint_path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total     int `json:"total"`
	Recovered int `json:"recovered"`
	Attempted int `json:"attempted"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`

	// Interrupted=true 表示会话被取消或用户退出，剩余条目下次继续。
	Interrupted bool      `json:"interrupted"`
	Failures    []Failure `json:"failures"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

func (r *MigrateReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Failures == nil {
		r.Failures = []Failure{}
	}
}
