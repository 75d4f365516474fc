// Package planfile 负责计划文档与输入列表的读写。
//
// 计划只以完整文档的形式落盘（临时文件 + rename），不存在“写了一半”的计划。
package planfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/infra/fsx"
)

// ErrNotFound 表示输入文件不存在。
var ErrNotFound = errors.New("planfile: not found")

// FormatError 表示输入文件存在但内容不合法。
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("文件格式错误：%s：%v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ReadSource 读取豆瓣评分列表（JSON 数组），逐条解码。
//
// 文件不是 JSON 数组时返回 *FormatError；单条记录解码失败不影响其它记录：
// 该位置返回零值占位（下标与文件一致），并在 malformed 中给出 malformed_record warning。
func ReadSource(path string) (records []domain.SourceRating, malformed []domain.Warning, err error) {
	var raw []json.RawMessage
	if err := readList(path, &raw); err != nil {
		return nil, nil, err
	}
	records = make([]domain.SourceRating, len(raw))
	for i, elem := range raw {
		if err := json.Unmarshal(elem, &records[i]); err != nil {
			records[i] = domain.SourceRating{}
			malformed = append(malformed, domain.Warning{
				Index:   i,
				Title:   titleOf(elem),
				Code:    domain.WarnMalformedRecord,
				Message: fmt.Sprintf("记录无法解析，已跳过：%v", err),
			})
		}
	}
	return records, malformed, nil
}

// titleOf 尽力从损坏的记录里取出标题，便于定位。
func titleOf(elem json.RawMessage) string {
	var head struct {
		Title any `json:"title"`
	}
	if err := json.Unmarshal(elem, &head); err != nil {
		return ""
	}
	if s, ok := head.Title.(string); ok {
		return s
	}
	return ""
}

// ReadExisting 读取 IMDb 已有评分列表。path 为空表示不使用该输入。
func ReadExisting(path string) ([]domain.DestinationRating, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	var out []domain.DestinationRating
	if err := readList(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadPlan 读取计划文档，并校验 imdb_id 唯一与状态合法。
func ReadPlan(path string) ([]domain.PlanEntry, error) {
	var out []domain.PlanEntry
	if err := readList(path, &out); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(out))
	for i, e := range out {
		if strings.TrimSpace(e.DestinationID) == "" {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("第 %d 条缺少 imdb_id", i)}
		}
		if _, ok := seen[e.DestinationID]; ok {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("imdb_id 重复：%s", e.DestinationID)}
		}
		seen[e.DestinationID] = struct{}{}
		if e.Status == "" {
			out[i].Status = domain.StatusPending
			continue
		}
		if _, err := domain.ParseStatus(string(e.Status)); err != nil {
			return nil, &FormatError{Path: path, Err: err}
		}
	}
	return out, nil
}

// WritePlan 原子写入完整计划。entries 为 nil 时写出 []。
func WritePlan(path string, entries []domain.PlanEntry) error {
	if entries == nil {
		entries = []domain.PlanEntry{}
	}
	return fsx.WriteJSON(path, entries)
}

// WriteSource 原子写入豆瓣评分列表（import 命令的产物）。
func WriteSource(path string, records []domain.SourceRating) error {
	if records == nil {
		records = []domain.SourceRating{}
	}
	return fsx.WriteJSON(path, records)
}

// WriteExisting 原子写入 IMDb 已有评分列表。
func WriteExisting(path string, ratings []domain.DestinationRating) error {
	if ratings == nil {
		ratings = []domain.DestinationRating{}
	}
	return fsx.WriteJSON(path, ratings)
}

func readList(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w：%s", ErrNotFound, path)
		}
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &FormatError{Path: path, Err: err}
	}
	return nil
}
