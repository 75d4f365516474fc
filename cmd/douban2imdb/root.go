package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/config"
	"github.com/John-Robertt/douban2imdb/internal/logging"
)

// commandContext 持有全局 flag，并按需合并出生效配置。
type commandContext struct {
	cli config.CLIArgs

	// lookup 为空时读取进程环境变量；测试可注入。
	lookup config.LookupFunc
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "douban2imdb",
		Short:         "把豆瓣评分迁移到 IMDb",
		Long:          "douban2imdb 读取豆瓣评分导出与 IMDb 已有评分，生成去重后的迁移计划，并逐条迁移（支持断点续传）。",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&ctx.cli.ConfigPath, "config", "c", "", "配置文件路径（默认读取当前目录下的 "+config.FileName+"）")
	pf.StringVar(&ctx.cli.SourcePath, "source", "", "豆瓣评分 JSON 路径")
	pf.StringVar(&ctx.cli.ExistingPath, "existing", "", "IMDb 已有评分 JSON 路径")
	pf.StringVar(&ctx.cli.PlanPath, "plan", "", "迁移计划路径")
	pf.StringVar(&ctx.cli.CheckpointPath, "checkpoint", "", "checkpoint 路径")
	pf.StringVar(&ctx.cli.ReportPath, "report", "", "plan --apply 写出的报告路径")
	pf.StringVar(&ctx.cli.LogLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&ctx.cli.LogFormat, "log-format", "", "日志格式：auto|console|json")

	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newCheckpointCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// load 合并配置并构造日志器（日志写 stderr）。
func (c *commandContext) load(cmd *cobra.Command) (config.EffectiveConfig, *slog.Logger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, nil, &config.Error{Code: config.ErrCodeInvalid, Err: fmt.Errorf("读取当前目录失败：%w", err)}
	}
	eff, err := config.LoadEffective(cwd, c.cli, c.lookup)
	if err != nil {
		return config.EffectiveConfig{}, nil, err
	}
	log, err := logging.New(logging.Options{
		Level:  eff.LogLevel,
		Format: eff.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return config.EffectiveConfig{}, nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	return eff, log, nil
}

func isTTY(w io.Writer) bool {
	return logging.IsTerminal(w)
}

// pickProgressWriter 选择进度/交互提示的输出位置：默认 stderr，不污染 stdout JSON。
func pickProgressWriter(cmd *cobra.Command) (io.Writer, bool) {
	if isTTY(cmd.ErrOrStderr()) {
		return cmd.ErrOrStderr(), true
	}
	// 仅重定向了 stderr 时，stdout 仍是终端：退化输出到 stdout。
	if isTTY(cmd.OutOrStdout()) {
		return cmd.OutOrStdout(), true
	}
	return nil, false
}
