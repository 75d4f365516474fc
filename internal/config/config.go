package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/.env 无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是工作目录下自动发现的配置文件名。
const FileName = "douban2imdb.toml"

const (
	DefaultSourcePath      = "data/douban_ratings.json"
	DefaultExistingPath    = "data/imdb_ratings.json"
	DefaultPlanPath        = "data/migration_plan.json"
	DefaultCheckpointPath  = "data/migration_checkpoint.json"
	DefaultReportPath      = "data/report.json"
	DefaultSeriesThreshold = 0.8
	DefaultMatchThreshold  = 0.8
	DefaultMaxRetries      = 3
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
)

// 环境变量名沿用旧版脚本，已有的 .env 可以直接复用。
const (
	EnvSourcePath     = "DOUBAN_EXPORT_PATH"
	EnvExistingPath   = "IMDB_EXPORT_PATH"
	EnvPlanPath       = "MIGRATION_PLAN_PATH"
	EnvCheckpointPath = "MIGRATION_CHECKPOINT_PATH"
)

// CLIArgs 是 CLI 暴露的覆盖项。字符串为空表示未指定；布尔值用 *Set 保留“是否显式指定”，
// 这样 --apply=false 才能覆盖 apply = true。
type CLIArgs struct {
	ConfigPath string

	SourcePath     string
	ExistingPath   string
	PlanPath       string
	CheckpointPath string
	ReportPath     string

	Apply    bool
	ApplySet bool

	Strict    bool
	StrictSet bool

	LogLevel  string
	LogFormat string
}

// FileConfig 对应 douban2imdb.toml 的解析结构。未出现的字段保持 nil/空值。
type FileConfig struct {
	SourcePath     string `toml:"source_path"`
	ExistingPath   string `toml:"existing_path"`
	PlanPath       string `toml:"plan_path"`
	CheckpointPath string `toml:"checkpoint_path"`
	ReportPath     string `toml:"report_path"`

	SeriesThreshold *float64 `toml:"series_threshold"`
	MatchThreshold  *float64 `toml:"match_threshold"`
	Strict          *bool    `toml:"strict"`
	Apply           *bool    `toml:"apply"`
	MaxRetries      *int     `toml:"max_retries"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置，路径均为绝对路径。
type EffectiveConfig struct {
	SourcePath     string
	ExistingPath   string
	PlanPath       string
	CheckpointPath string
	ReportPath     string

	SeriesThreshold float64
	MatchThreshold  float64
	Strict          bool
	Apply           bool
	MaxRetries      int

	LogLevel  string
	LogFormat string

	// ConfigPath 为实际读取的配置文件；没有配置文件时为空。
	ConfigPath string
}

// LookupFunc 与 os.LookupEnv 同签名，便于测试注入。
type LookupFunc func(key string) (string, bool)

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件与 .env，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 给了 --config：必须存在
// 2) 否则读取 <cwd>/douban2imdb.toml（可选）
// 3) <cwd>/.env（可选）只补充进程环境中缺失的变量
//
// 覆盖优先级：CLI > 环境变量 > 配置文件 > 默认值。
// 相对路径：配置文件中的相对配置文件所在目录，其余相对 cwd。
func LoadEffective(cwd string, cli CLIArgs, lookup LookupFunc) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if !exists {
		cfgPath = ""
	}

	envPath := filepath.Join(cwdAbs, ".env")
	dotenv, err := readDotenv(envPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}
	env := func(key string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	}

	return merge(cwdAbs, cli, env, fc, cfgPath)
}

func merge(cwd string, cli CLIArgs, env func(string) string, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	fileBase := cwd
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	errPath := cfgPath
	if errPath == "" {
		errPath = cwd
	}

	// 路径：CLI > env > config > 默认
	pick := func(cliV, envKey, fileV, def string) string {
		switch {
		case strings.TrimSpace(cliV) != "":
			return absCleanFrom(cwd, cliV)
		case envKey != "" && env(envKey) != "":
			return absCleanFrom(cwd, env(envKey))
		case strings.TrimSpace(fileV) != "":
			return absCleanFrom(fileBase, fileV)
		default:
			return absCleanFrom(cwd, def)
		}
	}

	eff := EffectiveConfig{
		SourcePath:      pick(cli.SourcePath, EnvSourcePath, fc.SourcePath, DefaultSourcePath),
		ExistingPath:    pick(cli.ExistingPath, EnvExistingPath, fc.ExistingPath, DefaultExistingPath),
		PlanPath:        pick(cli.PlanPath, EnvPlanPath, fc.PlanPath, DefaultPlanPath),
		CheckpointPath:  pick(cli.CheckpointPath, EnvCheckpointPath, fc.CheckpointPath, DefaultCheckpointPath),
		ReportPath:      pick(cli.ReportPath, "", fc.ReportPath, DefaultReportPath),
		SeriesThreshold: DefaultSeriesThreshold,
		MatchThreshold:  DefaultMatchThreshold,
		MaxRetries:      DefaultMaxRetries,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		ConfigPath:      cfgPath,
	}

	if fc.SeriesThreshold != nil {
		eff.SeriesThreshold = *fc.SeriesThreshold
	}
	if fc.MatchThreshold != nil {
		eff.MatchThreshold = *fc.MatchThreshold
	}
	if fc.MaxRetries != nil {
		eff.MaxRetries = *fc.MaxRetries
	}

	// apply / strict：CLI > config > 默认 false
	if cli.ApplySet {
		eff.Apply = cli.Apply
	} else if fc.Apply != nil {
		eff.Apply = *fc.Apply
	}
	if cli.StrictSet {
		eff.Strict = cli.Strict
	} else if fc.Strict != nil {
		eff.Strict = *fc.Strict
	}

	if v := firstNonEmpty(cli.LogLevel, fc.LogLevel); v != "" {
		eff.LogLevel = strings.ToLower(v)
	}
	if v := firstNonEmpty(cli.LogFormat, fc.LogFormat); v != "" {
		eff.LogFormat = strings.ToLower(v)
	}

	if err := eff.validate(); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: errPath, Err: err}
	}
	return eff, nil
}

func (c EffectiveConfig) validate() error {
	if c.SeriesThreshold <= 0 || c.SeriesThreshold > 1 {
		return fmt.Errorf("series_threshold 必须在 (0,1] 之间，实际是 %v", c.SeriesThreshold)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold 必须在 (0,1] 之间，实际是 %v", c.MatchThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries 必须在 [0,10] 之间，实际是 %d", c.MaxRetries)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log_format 只能是 auto/console/json，实际是 %q", c.LogFormat)
	}
	if c.PlanPath == c.CheckpointPath {
		return fmt.Errorf("plan_path 与 checkpoint_path 不能相同：%q", c.PlanPath)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&fc); err != nil {
		return FileConfig{}, true, fmt.Errorf("parse config: %w", err)
	}
	return fc, true, nil
}

// readDotenv 读取 .env；不存在时返回空表。不修改进程环境。
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			return x
		}
	}
	return ""
}
