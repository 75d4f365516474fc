package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestPlanReport_Finalize_SortAndUTC(t *testing.T) {
	r := PlanReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Unmatched: []Unmatched{
			{Index: 5, Reason: UnmatchedNoDestination},
			{Index: 1, Reason: UnmatchedNoDestination},
		},
		Warnings: []Warning{
			{Index: 3, Code: WarnMissingRating},
			{Index: 0, Code: WarnMissingTitle},
		},
	}

	r.Finalize()

	if r.Unmatched[0].Index != 1 || r.Unmatched[1].Index != 5 {
		t.Fatalf("unmatched 排序不符合契约：%+v", r.Unmatched)
	}
	if r.Warnings[0].Index != 0 || r.Warnings[1].Index != 3 {
		t.Fatalf("warnings 排序不符合契约：%+v", r.Warnings)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestPlanReport_Finalize_EmptySlicesAreArrays(t *testing.T) {
	var r PlanReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"unmatched":[]`)) || !bytes.Contains(b, []byte(`"warnings":[]`)) {
		t.Fatalf("空列表应输出 []：%s", string(b))
	}
}

func TestSourceRating_UnmarshalLegacyFields(t *testing.T) {
	in := []byte(`{"title":"肖申克的救赎 / The Shawshank Redemption","year":"1994","destination_id":"tt0111161","rating":5,"douban_id":"1292052"}`)

	var s SourceRating
	if err := json.Unmarshal(in, &s); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if s.Year != 1994 {
		t.Fatalf("期望 year=1994，实际 %d", s.Year)
	}
	if s.DestinationID != "tt0111161" {
		t.Fatalf("期望 destination_id 别名生效，实际 %q", s.DestinationID)
	}
	if s.Rating != 5 || s.DoubanID != "1292052" {
		t.Fatalf("字段解析不正确：%+v", s)
	}
}

func TestSourceRating_UnmarshalEmptyYearAndNullRating(t *testing.T) {
	var s SourceRating
	if err := json.Unmarshal([]byte(`{"title":"x","year":"","rating":null,"imdb_id":"tt1"}`), &s); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if s.Year != 0 || s.Rating != 0 {
		t.Fatalf("空 year / null rating 应为 0：%+v", s)
	}
}

func TestSourceRating_UnmarshalBadYear(t *testing.T) {
	var s SourceRating
	if err := json.Unmarshal([]byte(`{"title":"x","year":"199x"}`), &s); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "in_progress", "done", "failed"} {
		if _, err := ParseStatus(s); err != nil {
			t.Fatalf("%q 应合法：%v", s, err)
		}
	}
	if _, err := ParseStatus("running"); err == nil {
		t.Fatalf("期望未知状态报错")
	}
}
