package planner

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/app"
	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/rating"
	"github.com/John-Robertt/douban2imdb/internal/title"
)

// DefaultMatchThreshold 是无编号记录按标题匹配 IMDb 已有评分的默认相似度阈值。
const DefaultMatchThreshold = 0.8

type Options struct {
	SeriesThreshold float64
	MatchThreshold  float64

	// Strict=true 时，豆瓣评分越界直接返回错误；默认只记 warning 并排除该记录。
	Strict bool

	// Malformed 是读取阶段无法解码的记录（Index 对应 records 下标）。
	// 这些位置上的记录是零值占位，直接计为 invalid 并原样带出 warning。
	Malformed []domain.Warning
}

// Result 是一次构建的完整产物。计划只在内存中完整生成，由调用方一次性落盘。
type Result struct {
	Entries   []domain.PlanEntry
	Unmatched []domain.Unmatched
	Warnings  []domain.Warning
	Stats     domain.PlanStats
}

// InputError 表示 Strict 模式下遇到的非法来源记录。
type InputError struct {
	Index int
	Title string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("第 %d 条记录 %q 无效：%v", e.Index, e.Title, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Build 基于来源记录、IMDb 已有评分与 checkpoint 生成确定性的迁移计划（纯函数，不做 I/O）。
//
// 步骤：
//  1. 校验：解码失败 / 缺标题 / 缺评分 / 评分越界的记录排除并记 warning；豆瓣 ID 重复的记录只保留首条
//  2. 无 IMDb 编号的记录尝试按标题匹配 existing（title.Similarity ≥ MatchThreshold）
//  3. 按作品归并（app.GroupSeasons），每组生成一个 PlanEntry，评分取换算后的均值
//  4. existing 中已有合法评分的编号标记为 done；再叠加 checkpoint 中的 done/failed
//
// cp 可以为 nil。
func Build(records []domain.SourceRating, existing []domain.DestinationRating, cp checkpoint.State, opts Options) (Result, error) {
	matchThreshold := opts.MatchThreshold
	if matchThreshold <= 0 {
		matchThreshold = DefaultMatchThreshold
	}

	res := Result{
		Entries:   make([]domain.PlanEntry, 0, len(records)),
		Unmatched: make([]domain.Unmatched, 0, 8),
		Warnings:  make([]domain.Warning, 0, 8),
		Stats: domain.PlanStats{
			Total:          len(records),
			BySourceRating: map[int]int{},
		},
	}

	existingByID, candidates, warns := indexExisting(existing)
	res.Warnings = append(res.Warnings, warns...)

	valid := make([]domain.SourceRating, 0, len(records))
	origin := make([]int, 0, len(records))
	converted := make([]int, 0, len(records))
	byTitle := make([]bool, 0, len(records))
	seenDouban := make(map[string]int, len(records))
	malformed := make(map[int]domain.Warning, len(opts.Malformed))
	for _, w := range opts.Malformed {
		malformed[w.Index] = w
	}

	for i, r := range records {
		if w, bad := malformed[i]; bad {
			res.Warnings = append(res.Warnings, w)
			res.Stats.Invalid++
			continue
		}
		if w, bad := validate(i, r); bad {
			res.Warnings = append(res.Warnings, w)
			res.Stats.Invalid++
			continue
		}
		v, err := rating.Convert(r.Rating)
		if err != nil {
			if opts.Strict {
				return Result{}, &InputError{Index: i, Title: r.Title, Err: err}
			}
			res.Warnings = append(res.Warnings, domain.Warning{
				Index:   i,
				Title:   r.Title,
				Code:    domain.WarnRatingOutOfRange,
				Message: err.Error(),
			})
			res.Stats.Invalid++
			continue
		}
		if id := strings.TrimSpace(r.DoubanID); id != "" {
			if first, dup := seenDouban[id]; dup {
				res.Warnings = append(res.Warnings, domain.Warning{
					Index:   i,
					Title:   r.Title,
					Code:    domain.WarnDuplicateSourceRecord,
					Message: fmt.Sprintf("豆瓣 ID %s 与第 %d 条重复，已忽略", id, first),
				})
				res.Stats.Invalid++
				continue
			}
			seenDouban[id] = i
		}

		matched := false
		if strings.TrimSpace(r.DestinationID) == "" {
			if id, ok := matchByTitle(r, candidates, matchThreshold); ok {
				r.DestinationID = id
				matched = true
			}
		}

		valid = append(valid, r)
		origin = append(origin, i)
		converted = append(converted, v)
		byTitle = append(byTitle, matched)
	}

	groups, unmatched := app.GroupSeasons(valid, app.GroupOptions{SeriesThreshold: opts.SeriesThreshold})
	for _, u := range unmatched {
		u.Index = origin[u.Index]
		res.Unmatched = append(res.Unmatched, u)
	}
	res.Stats.Unmatched = len(res.Unmatched)

	for _, g := range groups {
		e := domain.PlanEntry{
			DestinationID: g.DestinationID,
			SourceTitles:  make([]string, 0, len(g.Members)),
			SourceRatings: make([]int, 0, len(g.Members)),
			Status:        domain.StatusPending,
			Match:         domain.MatchByTitle,
		}
		vals := make([]int, 0, len(g.Members))
		for _, m := range g.Members {
			e.SourceTitles = append(e.SourceTitles, valid[m].Title)
			e.SourceRatings = append(e.SourceRatings, valid[m].Rating)
			res.Stats.BySourceRating[valid[m].Rating]++
			vals = append(vals, converted[m])
			if byTitle[m] {
				res.Stats.MatchedByTitle++
			} else {
				res.Stats.MatchedByID++
				e.Match = domain.MatchByID
			}
		}
		e.Rating = rating.Average(vals)
		res.Stats.SeriesMerged += len(g.IDs(valid)) - 1

		if _, ok := existingByID[e.DestinationID]; ok {
			e.Status = domain.StatusDone
			res.Stats.AlreadyRated++
		} else if cp != nil {
			switch cp.Get(e.DestinationID) {
			case domain.StatusDone:
				e.Status = domain.StatusDone
			case domain.StatusFailed:
				e.Status = domain.StatusFailed
			}
		}
		res.Entries = append(res.Entries, e)
	}
	res.Stats.Entries = len(res.Entries)
	return res, nil
}

func validate(i int, r domain.SourceRating) (domain.Warning, bool) {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return domain.Warning{Index: i, Title: r.Title, Code: domain.WarnMissingTitle, Message: "缺少标题"}, true
	case r.Rating == 0:
		return domain.Warning{Index: i, Title: r.Title, Code: domain.WarnMissingRating, Message: "缺少评分（看过但未打分）"}, true
	default:
		return domain.Warning{}, false
	}
}

// indexExisting 建立 IMDb 已有评分的索引；评分不在 1..10 的条目忽略并记 warning。
// candidates 是带标题、可用于标题匹配的条目（保持输入顺序）。
func indexExisting(existing []domain.DestinationRating) (byID map[string]domain.DestinationRating, candidates []domain.DestinationRating, warns []domain.Warning) {
	byID = make(map[string]domain.DestinationRating, len(existing))
	candidates = make([]domain.DestinationRating, 0, len(existing))
	for i, d := range existing {
		id := strings.TrimSpace(d.DestinationID)
		if id == "" {
			continue
		}
		if !rating.ValidDestination(d.Rating) {
			warns = append(warns, domain.Warning{
				Index:   i,
				Title:   id,
				Code:    domain.WarnExistingOutOfRange,
				Message: fmt.Sprintf("IMDb 已有评分 %d 不在 1..10 之间，已忽略", d.Rating),
			})
			continue
		}
		if _, ok := byID[id]; ok {
			continue
		}
		d.DestinationID = id
		byID[id] = d
		if strings.TrimSpace(d.Title) != "" {
			candidates = append(candidates, d)
		}
	}
	return byID, candidates, warns
}

// matchByTitle 在 candidates 中找相似度最高且不低于阈值的条目；同分取更早的条目。
func matchByTitle(r domain.SourceRating, candidates []domain.DestinationRating, threshold float64) (string, bool) {
	variants := title.Variants(r.Title, r.EnglishTitle)
	best, bestScore := -1, 0.0
	for ci, c := range candidates {
		for _, v := range variants {
			s := title.Similarity(v, c.Title, r.Year, c.Year)
			if s >= threshold && s > bestScore {
				best, bestScore = ci, s
			}
		}
	}
	if best < 0 {
		return "", false
	}
	return candidates[best].DestinationID, true
}
