package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SourceRating 是从豆瓣导出的一条评分记录（抓取器产出，创建后不再修改）。
//
// 约束：
// - Rating 为豆瓣 1..5 星；0 表示“看过但未打分”
// - DestinationID 为空表示抓取阶段没拿到 IMDb 编号（需要标题匹配，否则进入 unmatched）
type SourceRating struct {
	Title         string `json:"title"`
	Year          int    `json:"year,omitempty"`
	DestinationID string `json:"imdb_id,omitempty"`
	Rating        int    `json:"rating"`
	IsSeries      bool   `json:"is_series,omitempty"`
	SeasonNumber  *int   `json:"season_number,omitempty"`

	DoubanID     string `json:"douban_id,omitempty"`
	DoubanURL    string `json:"douban_url,omitempty"`
	EnglishTitle string `json:"english_title,omitempty"`
}

// DestinationRating 是 IMDb 上已经存在的评分（可选导入，仅用于跳过与标题匹配）。
type DestinationRating struct {
	DestinationID string `json:"imdb_id"`
	Rating        int    `json:"rating"`
	Title         string `json:"title,omitempty"`
	Year          int    `json:"year,omitempty"`
}

// UnmarshalJSON 兼容旧导出文件：
// - imdb_id 与 destination_id 两种字段名
// - year 既可能是数字也可能是字符串（"2019" / ""）
func (s *SourceRating) UnmarshalJSON(b []byte) error {
	var raw struct {
		Title         string          `json:"title"`
		Year          json.RawMessage `json:"year"`
		IMDbID        string          `json:"imdb_id"`
		DestinationID string          `json:"destination_id"`
		Rating        json.RawMessage `json:"rating"`
		IsSeries      bool            `json:"is_series"`
		SeasonNumber  *int            `json:"season_number"`
		DoubanID      string          `json:"douban_id"`
		DoubanURL     string          `json:"douban_url"`
		EnglishTitle  string          `json:"english_title"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	year, err := flexInt(raw.Year)
	if err != nil {
		return fmt.Errorf("year：%w", err)
	}
	rating, err := flexInt(raw.Rating)
	if err != nil {
		return fmt.Errorf("rating：%w", err)
	}

	*s = SourceRating{
		Title:         raw.Title,
		Year:          year,
		DestinationID: firstNonEmpty(raw.IMDbID, raw.DestinationID),
		Rating:        rating,
		IsSeries:      raw.IsSeries,
		SeasonNumber:  raw.SeasonNumber,
		DoubanID:      raw.DoubanID,
		DoubanURL:     raw.DoubanURL,
		EnglishTitle:  raw.EnglishTitle,
	}
	return nil
}

func (d *DestinationRating) UnmarshalJSON(b []byte) error {
	var raw struct {
		IMDbID        string          `json:"imdb_id"`
		DestinationID string          `json:"destination_id"`
		Rating        json.RawMessage `json:"rating"`
		Title         string          `json:"title"`
		Year          json.RawMessage `json:"year"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	year, err := flexInt(raw.Year)
	if err != nil {
		return fmt.Errorf("year：%w", err)
	}
	rating, err := flexInt(raw.Rating)
	if err != nil {
		return fmt.Errorf("rating：%w", err)
	}
	*d = DestinationRating{
		DestinationID: firstNonEmpty(raw.IMDbID, raw.DestinationID),
		Rating:        rating,
		Title:         raw.Title,
		Year:          year,
	}
	return nil
}

// flexInt 解析 null / 数字 / 数字字符串；空串与 null 视为 0。
func flexInt(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("不是整数：%q", str)
		}
		return n, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("不是整数：%s", s)
	}
	return int(f), nil
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			return x
		}
	}
	return ""
}
