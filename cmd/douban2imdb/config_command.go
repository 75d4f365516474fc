package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "配置工具",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "在当前目录写出示例配置 " + config.FileName,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return exitWithMessage(cmd, fmt.Errorf("读取当前目录失败：%w", err))
				}
				target = filepath.Join(cwd, config.FileName)
			}
			if err := config.WriteSample(target); err != nil {
				return exitWithMessage(cmd, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "已写入：%s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetPath, "path", "", "输出路径（默认 ./"+config.FileName+"）")
	return cmd
}

// newConfigShowCommand 打印合并后的生效配置，便于排查优先级问题。
func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "显示生效配置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, _, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}
			src := eff.ConfigPath
			if src == "" {
				src = "(无配置文件，使用默认值)"
			}
			rows := [][]string{
				{"config", src},
				{"source_path", eff.SourcePath},
				{"existing_path", eff.ExistingPath},
				{"plan_path", eff.PlanPath},
				{"checkpoint_path", eff.CheckpointPath},
				{"report_path", eff.ReportPath},
				{"series_threshold", fmt.Sprintf("%.2f", eff.SeriesThreshold)},
				{"match_threshold", fmt.Sprintf("%.2f", eff.MatchThreshold)},
				{"strict", fmt.Sprintf("%t", eff.Strict)},
				{"apply", fmt.Sprintf("%t", eff.Apply)},
				{"max_retries", fmt.Sprintf("%d", eff.MaxRetries)},
				{"log_level", eff.LogLevel},
				{"log_format", eff.LogFormat},
			}
			kv := make(map[string]string, len(rows))
			for _, r := range rows {
				kv[r[0]] = r[1]
			}
			emitReport(cmd, kv, "生效配置："+src, func(out, _ io.Writer) {
				fmt.Fprintln(out, renderTable([]string{"key", "value"}, rows, nil))
			})
			return nil
		},
	}
}

func exitWithMessage(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "失败：%v\n", err)
	return exitError{code: exitFailure}
}
