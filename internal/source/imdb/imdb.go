// Package imdb 读取 IMDb 账户导出的 ratings.csv。
package imdb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/domain"
)

const (
	colConst  = "const"
	colRating = "your rating"
	colTitle  = "title"
	colYear   = "year"
)

// HeaderError 表示 CSV 缺少必需的列。
type HeaderError struct {
	Missing string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("ratings.csv 缺少列 %q", e.Missing)
}

// Parse 读取 ratings.csv，按文件顺序返回已有评分。
//
// - 列按表头名定位（大小写不敏感），兼容不同时期的导出格式
// - Const 为空或评分不是整数的行跳过并记 warning（Index 为数据行下标，从 0 开始）
func Parse(r io.Reader) ([]domain.DestinationRating, []domain.Warning, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &HeaderError{Missing: colConst}
		}
		return nil, nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	for _, c := range []string{colConst, colRating} {
		if _, ok := idx[c]; !ok {
			return nil, nil, &HeaderError{Missing: c}
		}
	}

	var (
		out   []domain.DestinationRating
		warns []domain.Warning
	)
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		id := get(colConst)
		name := get(colTitle)
		if id == "" {
			warns = append(warns, domain.Warning{Index: row, Title: name, Code: domain.WarnExistingInvalid, Message: "缺少 Const，已跳过"})
			continue
		}
		v, err := strconv.Atoi(get(colRating))
		if err != nil {
			warns = append(warns, domain.Warning{Index: row, Title: id, Code: domain.WarnExistingInvalid, Message: fmt.Sprintf("评分不是整数：%q", get(colRating))})
			continue
		}
		year, _ := strconv.Atoi(get(colYear))
		out = append(out, domain.DestinationRating{
			DestinationID: id,
			Rating:        v,
			Title:         name,
			Year:          year,
		})
	}
	return out, warns, nil
}
