package domain

import "fmt"

// Status 是 PlanEntry 的迁移状态。
//
// 状态机：pending -> in_progress -> {done, failed}；failed 可重置为 pending；done 为终态。
// in_progress 只会出现在 checkpoint 中，新生成的计划里不会出现。
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ParseStatus 校验状态字符串。
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusDone, StatusFailed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("未知状态：%q", s)
	}
}

const (
	MatchByID    = "id"
	MatchByTitle = "title_similarity"
)

// PlanEntry 是去重后的最小迁移单元：一个 IMDb 编号对应一个评分。
//
// 不变量：
// - 同一计划内 DestinationID 唯一
// - Rating 为各来源评分换算到 1..10 后的均值（四舍五入）
type PlanEntry struct {
	DestinationID string   `json:"imdb_id"`
	Rating        int      `json:"rating"`
	SourceTitles  []string `json:"source_titles"`
	Status        Status   `json:"status"`

	SourceRatings []int  `json:"source_ratings"`
	Match         string `json:"match"`
}

// URL 返回条目在 IMDb 上的详情页地址。
func (e PlanEntry) URL() string {
	return "https://www.imdb.com/title/" + e.DestinationID + "/"
}
