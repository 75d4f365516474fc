package app

import (
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/title"
)

// DefaultSeriesThreshold 是剧集按标题模糊归并的默认词重合度阈值。
const DefaultSeriesThreshold = 0.8

type GroupOptions struct {
	// SeriesThreshold：两条剧集记录的归一化标题词重合度（title.Overlap）不低于该值时归并。
	// 为 0 时使用 DefaultSeriesThreshold。
	SeriesThreshold float64
}

// Group 是归并后的一部作品：同一 IMDb 编号的重复记录，或同一剧集的多季。
// 为了数据局部性，Group 只保存记录下标（指向 []SourceRating）。
type Group struct {
	// DestinationID 是归并后的权威编号：季数最小的成员（第一季）优先；
	// 没有任何成员带季数时取最先出现的成员。
	DestinationID string
	Members       []int

	seasonal  bool
	allSeries bool
	keys      []string
}

// IDs 返回组内出现过的全部 IMDb 编号（按首次出现顺序，去重）。
func (g Group) IDs(records []domain.SourceRating) []string {
	seen := make(map[string]struct{}, len(g.Members))
	out := make([]string, 0, len(g.Members))
	for _, i := range g.Members {
		id := strings.TrimSpace(records[i].DestinationID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GroupSeasons 把来源记录按作品归并为 Group。
//
// 每条记录（按输入顺序）依次尝试：
//  1. 已有组包含相同 IMDb 编号：并入
//  2. 季节性记录：已有季节性组的归一化标题完全相同：并入
//  3. 剧集记录（is_series）：与全部成员均为剧集的组做词重合度比较，取最高分且不低于阈值者；
//     同分取更早的组
//  4. 否则新建一组
//
// “季节性”指 is_series、带 season_number 或标题含季标记；普通电影只按 IMDb 编号去重，
// 避免《玩具总动员 2》《玩具总动员 3》这类续集被误合并。
//
// - groups 保持首次出现顺序（同一输入 => 同一输出）
// - 缺少 IMDb 编号的记录进入 unmatched（Index 为 records 下标），不会被静默丢弃
func GroupSeasons(records []domain.SourceRating, opts GroupOptions) (groups []Group, unmatched []domain.Unmatched) {
	threshold := opts.SeriesThreshold
	if threshold <= 0 {
		threshold = DefaultSeriesThreshold
	}

	byID := make(map[string]int, len(records))
	byKey := make(map[string]int, len(records))
	groups = make([]Group, 0, len(records))
	unmatched = make([]domain.Unmatched, 0, 8)

	for i := range records {
		r := records[i]
		id := strings.TrimSpace(r.DestinationID)
		if id == "" {
			unmatched = append(unmatched, domain.Unmatched{
				Index:  i,
				Record: r,
				Reason: domain.UnmatchedNoDestination,
			})
			continue
		}

		seasonal := r.IsSeries || r.SeasonNumber != nil || title.HasSeasonMarker(r.Title)
		key := title.Normalize(r.Title)

		gi, ok := byID[id]
		if !ok && seasonal && key != "" {
			gi, ok = byKey[key]
			if !ok && r.IsSeries {
				gi, ok = bestFuzzy(groups, key, threshold)
			}
		}

		if !ok {
			gi = len(groups)
			groups = append(groups, Group{
				seasonal:  seasonal,
				allSeries: r.IsSeries,
			})
		}

		g := &groups[gi]
		g.Members = append(g.Members, i)
		g.seasonal = g.seasonal || seasonal
		g.allSeries = g.allSeries && r.IsSeries
		if key != "" && !contains(g.keys, key) {
			g.keys = append(g.keys, key)
		}

		byID[id] = gi
		if seasonal && key != "" {
			if _, exists := byKey[key]; !exists {
				byKey[key] = gi
			}
		}
	}

	for gi := range groups {
		groups[gi].DestinationID = authoritativeID(records, groups[gi].Members)
	}
	return groups, unmatched
}

func bestFuzzy(groups []Group, key string, threshold float64) (int, bool) {
	best, bestScore := -1, 0.0
	for gi := range groups {
		g := groups[gi]
		if !g.seasonal || !g.allSeries {
			continue
		}
		for _, k := range g.keys {
			s := title.Overlap(key, k)
			if s >= threshold && s > bestScore {
				best, bestScore = gi, s
			}
		}
	}
	return best, best >= 0
}

func authoritativeID(records []domain.SourceRating, members []int) string {
	bestIdx, bestSeason := -1, 0
	for _, i := range members {
		s, ok := seasonOf(records[i])
		if !ok {
			continue
		}
		if bestIdx < 0 || s < bestSeason {
			bestIdx, bestSeason = i, s
		}
	}
	if bestIdx < 0 {
		bestIdx = members[0]
	}
	return strings.TrimSpace(records[bestIdx].DestinationID)
}

func seasonOf(r domain.SourceRating) (int, bool) {
	if r.SeasonNumber != nil && *r.SeasonNumber > 0 {
		return *r.SeasonNumber, true
	}
	return title.Season(r.Title)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
