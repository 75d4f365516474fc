package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/logging"
	"github.com/John-Robertt/douban2imdb/internal/planfile"
	"github.com/John-Robertt/douban2imdb/internal/scan"
	"github.com/John-Robertt/douban2imdb/internal/source/douban"
	"github.com/John-Robertt/douban2imdb/internal/source/imdb"
)

// ImportReport 是 import 命令的对外稳定输出。
type ImportReport struct {
	Source   string           `json:"source"`
	Input    string           `json:"input"`
	Output   string           `json:"output"`
	Pages    int              `json:"pages,omitempty"`
	Records  int              `json:"records"`
	WithID   int              `json:"with_imdb_id"`
	Warnings []domain.Warning `json:"warnings"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

func (r *ImportReport) fail(code string, err error) ImportReport {
	r.ErrorCode = code
	r.ErrorMsg = err.Error()
	if r.Warnings == nil {
		r.Warnings = []domain.Warning{}
	}
	return *r
}

// ImportDouban 把 dir 下保存的豆瓣页面转换为评分列表并原子写入 out。
//
// - “看过”列表页产出评分记录；条目详情页只用于补齐 IMDb 编号
// - excludeDirs 为相对 dir 的排除目录（例如旧的备份）
// - 跨页面按豆瓣 ID 去重，保留先扫描到的记录
// - out 已存在时保留其中已知的 IMDb 编号（例如之前手工补齐的）
func ImportDouban(ctx context.Context, dir, out string, excludeDirs []string, log *slog.Logger, obs Observer) ImportReport {
	if log == nil {
		log = logging.Discard()
	}
	obs = orNop(obs)
	rr := ImportReport{Source: "douban", Input: dir, Output: out, Warnings: []domain.Warning{}}

	started := time.Now()
	pages, err := scan.Pages(dir, excludeDirs)
	if err != nil {
		return rr.fail(domain.ErrCodeIOFailed, fmt.Errorf("扫描页面失败：%w", err))
	}
	rr.Pages = len(pages)

	var (
		records  []domain.SourceRating
		seen     = map[string]struct{}{}
		subjects = map[string]string{}
	)
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return rr.fail(domain.ErrCodeIOFailed, err)
		}
		b, err := os.ReadFile(p.AbsPath)
		if err != nil {
			return rr.fail(domain.ErrCodeIOFailed, fmt.Errorf("读取 %s 失败：%w", p.RelPath, err))
		}
		if len(b) == 0 {
			continue
		}

		if sub, ok, err := douban.ParseSubject(b); err == nil && ok {
			if sub.DestinationID != "" {
				subjects[sub.DoubanID] = sub.DestinationID
			}
			continue
		}

		recs, warns, err := douban.Parse(b)
		if err != nil {
			log.Warn("page skipped", logging.FieldPath, p.RelPath, "error", err)
			continue
		}
		for _, w := range warns {
			w.Message = p.RelPath + "：" + w.Message
			rr.Warnings = append(rr.Warnings, w)
		}
		for _, r := range recs {
			if _, dup := seen[r.DoubanID]; dup {
				continue
			}
			seen[r.DoubanID] = struct{}{}
			records = append(records, r)
		}
	}

	known := map[string]string{}
	if prev, _, err := planfile.ReadSource(out); err == nil {
		for _, r := range prev {
			if r.DoubanID != "" && r.DestinationID != "" {
				known[r.DoubanID] = r.DestinationID
			}
		}
	} else if !errors.Is(err, planfile.ErrNotFound) {
		log.Warn("previous export unreadable, ignored", logging.FieldPath, out, "error", err)
	}

	for i := range records {
		id := records[i].DoubanID
		if v, ok := subjects[id]; ok {
			records[i].DestinationID = v
		} else if v, ok := known[id]; ok {
			records[i].DestinationID = v
		}
		if records[i].DestinationID != "" {
			rr.WithID++
		}
	}
	rr.Records = len(records)

	if err := planfile.WriteSource(out, records); err != nil {
		return rr.fail(domain.ErrCodeIOFailed, fmt.Errorf("写入 %s 失败：%w", out, err))
	}
	obs.OnPhaseDone("import", map[string]any{
		"pages":    rr.Pages,
		"records":  rr.Records,
		"with_id":  rr.WithID,
		"warnings": len(rr.Warnings),
	}, time.Since(started))
	log.Info("douban pages imported", "pages", rr.Pages, "records", rr.Records, "with_imdb_id", rr.WithID)
	return rr
}

// ImportIMDb 把 IMDb 导出的 ratings.csv 转换为已有评分列表并原子写入 out。
func ImportIMDb(csvPath, out string, log *slog.Logger, obs Observer) ImportReport {
	if log == nil {
		log = logging.Discard()
	}
	obs = orNop(obs)
	rr := ImportReport{Source: "imdb", Input: csvPath, Output: out, Warnings: []domain.Warning{}}

	started := time.Now()
	f, err := os.Open(csvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rr.fail(domain.ErrCodeInputInvalid, err)
		}
		return rr.fail(domain.ErrCodeIOFailed, err)
	}
	defer f.Close()

	ratings, warns, err := imdb.Parse(f)
	if err != nil {
		return rr.fail(domain.ErrCodeInputInvalid, fmt.Errorf("解析 %s 失败：%w", csvPath, err))
	}
	rr.Warnings = append(rr.Warnings, warns...)
	rr.Records = len(ratings)
	rr.WithID = len(ratings)

	if err := planfile.WriteExisting(out, ratings); err != nil {
		return rr.fail(domain.ErrCodeIOFailed, fmt.Errorf("写入 %s 失败：%w", out, err))
	}
	obs.OnPhaseDone("import", map[string]any{
		"records":  rr.Records,
		"warnings": len(rr.Warnings),
	}, time.Since(started))
	log.Info("imdb ratings imported", "records", rr.Records)
	return rr
}
