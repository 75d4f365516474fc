// Package douban 解析本地保存的豆瓣电影页面。
//
// Parse/ParseSubject 都是纯函数：只依赖输入 html，不做网络请求。
package douban

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/title"
)

var (
	subjectRE = regexp.MustCompile(`subject/(\d+)`)
	ratingRE  = regexp.MustCompile(`^rating(\d)`)
	allstarRE = regexp.MustCompile(`allstar(\d+)`)
	imdbRE    = regexp.MustCompile(`\b(tt\d{7,10})\b`)
	latinRE   = regexp.MustCompile(`[A-Za-z]`)

	usDateRE  = regexp.MustCompile(`(\d{4})(?:-\d{2}-\d{2})?\s*[(（][^)）]*美国[^)）]*[)）]`)
	anyYearRE = regexp.MustCompile(`(\d{4})`)
)

// Parse 解析“看过”列表页（movie.douban.com/people/<id>/collect），返回按页面顺序的评分记录。
//
// - 没有星级的条目（看过但未打分）不产出记录，只记 warning
// - 同一页内豆瓣 ID 重复的条目只保留首条
// - 页面里拿不到 IMDb 编号，DestinationID 留空（由详情页或标题匹配补齐）
func Parse(html []byte) ([]domain.SourceRating, []domain.Warning, error) {
	if len(html) == 0 {
		return nil, nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, err
	}

	var (
		out   []domain.SourceRating
		warns []domain.Warning
		seen  = map[string]struct{}{}
	)
	doc.Find(".item").Each(func(i int, s *goquery.Selection) {
		link := s.Find(".title a").First()
		if link.Length() == 0 {
			link = s.Find("a[href*='/subject/']").First()
		}
		href, _ := link.Attr("href")
		m := subjectRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}

		name := normSpace(link.Find("em").First().Text())
		if name == "" {
			name = normSpace(link.Text())
		}

		stars := starsOf(s)
		if stars == 0 {
			warns = append(warns, domain.Warning{
				Index:   i,
				Title:   name,
				Code:    domain.WarnMissingRating,
				Message: fmt.Sprintf("豆瓣 %s 没有星级，已跳过", id),
			})
			return
		}

		r := domain.SourceRating{
			Title:        name,
			Year:         yearOf(s.Find(".intro").First().Text()),
			Rating:       stars,
			DoubanID:     id,
			DoubanURL:    strings.TrimSpace(href),
			EnglishTitle: englishTitle(name),
		}
		if n, ok := title.Season(name); ok {
			r.IsSeries = true
			r.SeasonNumber = &n
		} else if title.HasSeasonMarker(name) {
			r.IsSeries = true
		}
		out = append(out, r)
	})
	return out, warns, nil
}

// Subject 是从条目详情页提取的编号对。
type Subject struct {
	DoubanID      string
	DestinationID string
}

// ParseSubject 解析条目详情页（movie.douban.com/subject/<id>/）。
// 页面不是详情页时 ok=false；是详情页但没有 IMDb 编号时 DestinationID 为空。
func ParseSubject(html []byte) (sub Subject, ok bool, err error) {
	if len(html) == 0 {
		return Subject{}, false, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Subject{}, false, err
	}

	info := doc.Find("#info").First()
	if info.Length() == 0 {
		return Subject{}, false, nil
	}

	for _, sel := range []string{"link[rel='canonical']", "meta[property='og:url']"} {
		n := doc.Find(sel).First()
		v, _ := n.Attr("href")
		if v == "" {
			v, _ = n.Attr("content")
		}
		if m := subjectRE.FindStringSubmatch(v); m != nil {
			sub.DoubanID = m[1]
			break
		}
	}
	if sub.DoubanID == "" {
		return Subject{}, false, nil
	}

	info.Find("a[href*='imdb.com/title/']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := imdbRE.FindStringSubmatch(href); m != nil {
			sub.DestinationID = m[1]
			return false
		}
		return true
	})
	if sub.DestinationID == "" {
		// 新版详情页的 IMDb 编号是纯文本：“IMDb: tt0111161”。
		text := info.Text()
		if idx := strings.Index(text, "IMDb"); idx >= 0 {
			if m := imdbRE.FindStringSubmatch(text[idx:]); m != nil {
				sub.DestinationID = m[1]
			}
		}
	}
	return sub, true, nil
}

// starsOf 读取 rating<N>-t 样式；旧版页面使用 allstar<N*10>。0 表示未打分。
func starsOf(s *goquery.Selection) int {
	stars := 0
	s.Find("[class]").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		cls, _ := n.Attr("class")
		for _, c := range strings.Fields(cls) {
			if m := ratingRE.FindStringSubmatch(c); m != nil {
				stars, _ = strconv.Atoi(m[1])
				return false
			}
			if m := allstarRE.FindStringSubmatch(c); m != nil {
				v, _ := strconv.Atoi(m[1])
				stars = v / 10
				return false
			}
		}
		return true
	})
	return stars
}

// yearOf 从 intro 文本取年份：优先美国上映日期，否则取第一个四位数。
func yearOf(intro string) int {
	if m := usDateRE.FindStringSubmatch(intro); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := anyYearRE.FindStringSubmatch(intro); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// englishTitle 取 “中文名 / 英文名 / 别名” 中第一个含拉丁字母的非首段。
func englishTitle(name string) string {
	parts := strings.Split(name, " / ")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if latinRE.MatchString(p) {
			return p
		}
	}
	return ""
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
