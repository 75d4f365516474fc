package title

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// YearBonus 是两条记录年份一致时给相似度的加分。
const YearBonus = 0.2

// Tokens 把归一化后的标题切成词：按空白分词，每个汉字单独成词。
func Tokens(normalized string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range normalized {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.Is(unicode.Han, r):
			flush()
			out = append(out, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// Overlap 返回两个归一化标题的词重合度（Dice 系数，按多重集计数）：2|A∩B| / (|A|+|B|)。
func Overlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ta))
	for _, t := range ta {
		counts[t]++
	}
	common := 0
	for _, t := range tb {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb))
}

// Similarity 用于把没有 IMDb 编号的豆瓣记录匹配到 IMDb 已有评分：
// Jaro-Winkler(归一化标题，去掉英文冠词) + 年份一致加分，结果截断到 1.0。
// 年份为 0 表示未知，不参与加分。
func Similarity(a, b string, yearA, yearB int) float64 {
	ka, kb := matchKey(a), matchKey(b)
	if ka == "" || kb == "" {
		return 0
	}
	score := matchr.JaroWinkler(ka, kb, false)
	if yearA > 0 && yearA == yearB {
		score += YearBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Variants 拆出豆瓣标题的候选写法：整体、按 " / " 拆分的各部分、英文标题。
// 结果去重且保持顺序。
func Variants(title, english string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 4)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	add(title)
	for _, part := range strings.Split(title, " / ") {
		add(part)
	}
	add(english)
	return out
}

func matchKey(s string) string {
	words := strings.Fields(Normalize(s))
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "the", "a", "an":
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
