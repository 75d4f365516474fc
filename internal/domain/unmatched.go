package domain

const (
	UnmatchedNoDestination = "no_destination_id"
)

// Unmatched 描述无法确定 IMDb 编号的来源记录。
// 这些记录不会进入计划，但必须原样返回给调用方，不允许静默丢弃。
type Unmatched struct {
	Index  int          `json:"index"`
	Record SourceRating `json:"record"`
	Reason string       `json:"reason"`
}

const (
	WarnMissingTitle          = "missing_title"
	WarnMissingRating         = "missing_rating"
	WarnRatingOutOfRange      = "rating_out_of_range"
	WarnExistingOutOfRange    = "existing_rating_out_of_range"
	WarnDuplicateSourceRecord = "duplicate_source_record"
	WarnExistingInvalid       = "existing_rating_invalid"
	WarnMalformedRecord       = "malformed_record"
)

// Warning 是校验阶段的非致命问题（对应记录被排除出计划）。
type Warning struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
