package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/rating"
)

func seasonPtr(n int) *int { return &n }

func TestBuild_MergesSeasonsIntoOneEntry(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Show X Season 1", Rating: 4, DestinationID: "tt001"},
		{Title: "Show X Season 2", Rating: 5, DestinationID: "tt002", IsSeries: true},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	want := []domain.PlanEntry{{
		DestinationID: "tt001",
		Rating:        9,
		SourceTitles:  []string{"Show X Season 1", "Show X Season 2"},
		Status:        domain.StatusPending,
		SourceRatings: []int{4, 5},
		Match:         domain.MatchByID,
	}}
	if diff := cmp.Diff(want, res.Entries); diff != "" {
		t.Fatalf("entries 不符合预期 (-want +got):\n%s", diff)
	}
	if res.Stats.SeriesMerged != 1 || res.Stats.Entries != 1 || res.Stats.MatchedByID != 2 {
		t.Fatalf("stats 不符合预期：%+v", res.Stats)
	}
}

func TestBuild_ExistingRatingMarksDone(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Show X Season 1", Rating: 4, DestinationID: "tt001"},
		{Title: "Show X Season 2", Rating: 5, DestinationID: "tt002", IsSeries: true},
	}
	existing := []domain.DestinationRating{{DestinationID: "tt001", Rating: 9}}
	res, err := Build(records, existing, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Status != domain.StatusDone {
		t.Fatalf("已有评分的条目应为 done：%+v", res.Entries)
	}
	if res.Stats.AlreadyRated != 1 {
		t.Fatalf("already_rated 应为 1：%+v", res.Stats)
	}
}

func TestBuild_DuplicateIDsCollapse(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Heat", Rating: 5, DestinationID: "tt0113277"},
		{Title: "Alien", Rating: 3, DestinationID: "tt0078748"},
		{Title: "盗火线", Rating: 4, DestinationID: "tt0113277"},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	seen := map[string]bool{}
	for _, e := range res.Entries {
		if seen[e.DestinationID] {
			t.Fatalf("计划内 imdb_id 重复：%s", e.DestinationID)
		}
		seen[e.DestinationID] = true
	}
	if len(res.Entries) != 2 {
		t.Fatalf("应生成 2 条：%+v", res.Entries)
	}
	if res.Entries[0].Rating != 9 || res.Entries[1].Rating != 6 {
		t.Fatalf("评分均值不符合预期：%+v", res.Entries)
	}
}

func TestBuild_UnmatchedKeepsOriginalIndex(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "", Rating: 4, DestinationID: "tt1"},
		{Title: "Obscure Film", Rating: 3},
		{Title: "Known", Rating: 5, DestinationID: "tt2"},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0].Index != 1 || res.Unmatched[0].Reason != domain.UnmatchedNoDestination {
		t.Fatalf("unmatched 不符合预期：%+v", res.Unmatched)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != domain.WarnMissingTitle || res.Warnings[0].Index != 0 {
		t.Fatalf("warnings 不符合预期：%+v", res.Warnings)
	}
	if res.Stats.Total != 3 || res.Stats.Invalid != 1 || res.Stats.Unmatched != 1 || res.Stats.Entries != 1 {
		t.Fatalf("stats 不符合预期：%+v", res.Stats)
	}
}

func TestBuild_MissingRatingIsWarning(t *testing.T) {
	records := []domain.SourceRating{{Title: "Seen", DestinationID: "tt9"}}
	res, err := Build(records, nil, nil, Options{Strict: true})
	if err != nil {
		t.Fatalf("缺评分不应视为错误：%v", err)
	}
	if len(res.Entries) != 0 || len(res.Warnings) != 1 || res.Warnings[0].Code != domain.WarnMissingRating {
		t.Fatalf("结果不符合预期：%+v", res)
	}
}

func TestBuild_OutOfRange(t *testing.T) {
	records := []domain.SourceRating{{Title: "Bad", Rating: 7, DestinationID: "tt7"}}

	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("非 strict 模式不应返回错误：%v", err)
	}
	if len(res.Entries) != 0 || len(res.Warnings) != 1 || res.Warnings[0].Code != domain.WarnRatingOutOfRange {
		t.Fatalf("结果不符合预期：%+v", res)
	}

	_, err = Build(records, nil, nil, Options{Strict: true})
	var ie *InputError
	if !errors.As(err, &ie) || ie.Index != 0 {
		t.Fatalf("strict 模式应返回 InputError，got=%v", err)
	}
	if !errors.Is(err, rating.ErrOutOfRange) {
		t.Fatalf("错误应包装 ErrOutOfRange，got=%v", err)
	}
}

func TestBuild_DuplicateDoubanRecordIgnored(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "A", Rating: 5, DestinationID: "tt1", DoubanID: "100"},
		{Title: "A", Rating: 1, DestinationID: "tt1", DoubanID: "100"},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Rating != 10 {
		t.Fatalf("重复豆瓣记录应只保留首条：%+v", res.Entries)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != domain.WarnDuplicateSourceRecord || res.Warnings[0].Index != 1 {
		t.Fatalf("warnings 不符合预期：%+v", res.Warnings)
	}
}

func TestBuild_TitleMatchAgainstExisting(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "肖申克的救赎 / The Shawshank Redemption", Year: 1994, Rating: 5},
	}
	existing := []domain.DestinationRating{
		{DestinationID: "tt0068646", Rating: 10, Title: "The Godfather", Year: 1972},
		{DestinationID: "tt0111161", Rating: 10, Title: "The Shawshank Redemption", Year: 1994},
	}
	res, err := Build(records, existing, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("应按标题匹配出 1 条：%+v", res)
	}
	e := res.Entries[0]
	if e.DestinationID != "tt0111161" || e.Match != domain.MatchByTitle || e.Status != domain.StatusDone {
		t.Fatalf("标题匹配结果不符合预期：%+v", e)
	}
	if res.Stats.MatchedByTitle != 1 || res.Stats.Unmatched != 0 {
		t.Fatalf("stats 不符合预期：%+v", res.Stats)
	}
}

func TestBuild_ExistingOutOfRangeIgnored(t *testing.T) {
	records := []domain.SourceRating{{Title: "A", Rating: 3, DestinationID: "tt1"}}
	existing := []domain.DestinationRating{{DestinationID: "tt1", Rating: 11}}
	res, err := Build(records, existing, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if res.Entries[0].Status != domain.StatusPending {
		t.Fatalf("越界的已有评分应被忽略：%+v", res.Entries[0])
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != domain.WarnExistingOutOfRange {
		t.Fatalf("warnings 不符合预期：%+v", res.Warnings)
	}
}

func TestBuild_CheckpointOverlay(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "A", Rating: 3, DestinationID: "tt1"},
		{Title: "B", Rating: 3, DestinationID: "tt2"},
		{Title: "C", Rating: 3, DestinationID: "tt3"},
	}
	cp := checkpoint.State{
		"tt1": domain.StatusDone,
		"tt2": domain.StatusFailed,
	}
	res, err := Build(records, nil, cp, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	got := []domain.Status{res.Entries[0].Status, res.Entries[1].Status, res.Entries[2].Status}
	want := []domain.Status{domain.StatusDone, domain.StatusFailed, domain.StatusPending}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("checkpoint 叠加不符合预期 (-want +got):\n%s", diff)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "权力的游戏 第二季", Rating: 5, DestinationID: "tt2", IsSeries: true, SeasonNumber: seasonPtr(2)},
		{Title: "Heat", Rating: 4, DestinationID: "tt9"},
		{Title: "权力的游戏 第一季", Rating: 4, DestinationID: "tt1", IsSeries: true, SeasonNumber: seasonPtr(1)},
		{Title: "Nobody", Rating: 2},
	}
	a, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	b, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("同一输入两次构建结果不同 (-a +b):\n%s", diff)
	}
	if a.Entries[0].DestinationID != "tt1" || a.Entries[0].Rating != 9 {
		t.Fatalf("第一季应为权威编号：%+v", a.Entries[0])
	}
}

func TestBuild_SingleLetterTitleWordKeepsShowsApart(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Generation X", Rating: 5, DestinationID: "tt100", IsSeries: true},
		{Title: "Generation", Rating: 1, DestinationID: "tt200", IsSeries: true},
		{Title: "Malcolm X", Rating: 4, DestinationID: "tt0104797"},
		{Title: "Malcolm", Rating: 3, DestinationID: "tt0300000"},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	var ids []string
	for _, e := range res.Entries {
		ids = append(ids, e.DestinationID)
		if len(e.SourceTitles) != 1 {
			t.Fatalf("不同作品不应归并：%+v", e)
		}
	}
	if diff := cmp.Diff([]string{"tt100", "tt200", "tt0104797", "tt0300000"}, ids); diff != "" {
		t.Fatalf("entries 不符合预期 (-want +got):\n%s", diff)
	}
	if res.Entries[0].Rating != 10 || res.Entries[1].Rating != 2 {
		t.Fatalf("评分不应互相平均：%+v", res.Entries)
	}
}

func TestBuild_MalformedRecordsAreInvalid(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Good", Rating: 4, DestinationID: "tt1"},
		{},
	}
	bad := domain.Warning{Index: 1, Title: "Bad", Code: domain.WarnMalformedRecord, Message: "记录无法解析"}
	res, err := Build(records, nil, nil, Options{Malformed: []domain.Warning{bad}})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].DestinationID != "tt1" {
		t.Fatalf("entries 不符合预期：%+v", res.Entries)
	}
	if diff := cmp.Diff([]domain.Warning{bad}, res.Warnings); diff != "" {
		t.Fatalf("warnings 不符合预期 (-want +got):\n%s", diff)
	}
	if res.Stats.Total != 2 || res.Stats.Invalid != 1 {
		t.Fatalf("stats 不符合预期：%+v", res.Stats)
	}
}

func TestBuild_HistogramCountsOnlyPlannedRecords(t *testing.T) {
	records := []domain.SourceRating{
		{Title: "Heat", Rating: 5, DestinationID: "tt0113277"},
		{Title: "Lost Film", Rating: 2},
		{Title: "Unrated", Rating: 0, DestinationID: "tt9"},
	}
	res, err := Build(records, nil, nil, Options{})
	if err != nil {
		t.Fatalf("Build 返回错误：%v", err)
	}
	if diff := cmp.Diff(map[int]int{5: 1}, res.Stats.BySourceRating); diff != "" {
		t.Fatalf("by_source_rating 不符合预期 (-want +got):\n%s", diff)
	}
	if res.Stats.Unmatched != 1 || res.Stats.Invalid != 1 {
		t.Fatalf("stats 不符合预期：%+v", res.Stats)
	}
}
