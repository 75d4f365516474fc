package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/douban2imdb/internal/infra/fsx"
)

// Sample 返回写满默认值的配置，用于生成示例文件。
func Sample() FileConfig {
	series := DefaultSeriesThreshold
	match := DefaultMatchThreshold
	strict := false
	apply := false
	retries := DefaultMaxRetries
	return FileConfig{
		SourcePath:      DefaultSourcePath,
		ExistingPath:    DefaultExistingPath,
		PlanPath:        DefaultPlanPath,
		CheckpointPath:  DefaultCheckpointPath,
		ReportPath:      DefaultReportPath,
		SeriesThreshold: &series,
		MatchThreshold:  &match,
		Strict:          &strict,
		Apply:           &apply,
		MaxRetries:      &retries,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
	}
}

// WriteSample 在 path 写入示例配置；文件已存在时拒绝覆盖。
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("配置文件已存在：%s", path)
	}
	var buf bytes.Buffer
	buf.WriteString("# douban2imdb 配置；相对路径以本文件所在目录为基准。\n")
	buf.WriteString("# 环境变量 DOUBAN_EXPORT_PATH / IMDB_EXPORT_PATH / MIGRATION_PLAN_PATH / MIGRATION_CHECKPOINT_PATH 优先于本文件。\n\n")
	if err := toml.NewEncoder(&buf).Encode(Sample()); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, buf.Bytes())
}
