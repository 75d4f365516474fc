package title

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// 括号包裹的四位年份：(2019) [2019] （2019） 【2019】
var bracketYearRE = regexp.MustCompile(`[(\[（【]\s*\d{4}\s*[)\]）】]`)

// 季标记：Season 2 / Series 2 / 第2季 / 第二季 / S02 / S02E01。
// 注意：匹配前已经做过 NFKC + case fold，全角数字与大写字母都已归一。
var seasonRE = regexp.MustCompile(`\b(?:season|series)\s*(\d{1,3})\b|第\s*([0-9零〇一二两三四五六七八九十]+)\s*季|\bs(\d{1,2})(?:e\d{1,3})?\b`)

// 只收多字母罗马数字：单字母的 i / v / x 常是标题本身（Malcolm X、Generation X）。
var romanSuffix = map[string]struct{}{
	"ii": {}, "iii": {}, "iv": {}, "vi": {}, "vii": {}, "viii": {}, "ix": {},
}

var folder = cases.Fold()

// fold 做 NFKC + 大小写折叠，并去掉首尾空白。
func fold(s string) string {
	return strings.TrimSpace(folder.String(norm.NFKC.String(s)))
}

// Normalize 把标题归一为分组键。规则（按顺序）：
//  1. NFKC + case fold（全角数字/字母归一为 ASCII，大小写不敏感）
//  2. 去掉括号包裹的四位年份
//  3. 去掉季标记及其之后的全部内容（若标记在开头，则只去掉标记本身）
//  4. 标点与符号替换为空格，连续空白折叠为一个空格
//  5. 反复去掉末尾独立的阿拉伯数字或多字母罗马数字（ii..ix），但至少保留一个词
//
// 结果是不动点：Normalize(Normalize(s)) == Normalize(s)。
func Normalize(s string) string {
	s = fold(s)
	s = bracketYearRE.ReplaceAllString(s, " ")
	s = cutSeason(s)
	s = stripPunct(s)

	words := strings.Fields(s)
	for len(words) > 1 {
		last := words[len(words)-1]
		if !isDigits(last) && !isRoman(last) {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// HasSeasonMarker 判断标题中是否带有季标记。
func HasSeasonMarker(s string) bool {
	return seasonRE.MatchString(fold(s))
}

// Season 从标题的季标记中解析季数。
func Season(s string) (int, bool) {
	m := seasonRE.FindStringSubmatch(fold(s))
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil {
			return n, n > 0
		}
		if n, ok := parseHanNumber(g); ok {
			return n, n > 0
		}
	}
	return 0, false
}

func cutSeason(s string) string {
	loc := seasonRE.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head := strings.TrimSpace(s[:loc[0]])
	if head != "" {
		return head
	}
	return s[:loc[0]] + " " + s[loc[1]:]
}

func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isRoman(s string) bool {
	_, ok := romanSuffix[s]
	return ok
}

var hanDigits = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseHanNumber 解析 0..99 的中文数字（十、十二、二十、二十三 等）。
func parseHanNumber(s string) (int, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return 0, false
	}
	tens, units := 0, 0
	seenTen := false
	for _, r := range rs {
		if r == '十' {
			if seenTen {
				return 0, false
			}
			seenTen = true
			if units == 0 {
				tens = 1
			} else {
				tens = units
			}
			units = 0
			continue
		}
		d, ok := hanDigits[r]
		if !ok {
			return 0, false
		}
		units = d
	}
	return tens*10 + units, true
}
