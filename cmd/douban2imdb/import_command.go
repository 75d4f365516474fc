package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "把原始导出转换为 plan 的输入文件",
	}
	importCmd.AddCommand(newImportDoubanCommand(ctx))
	importCmd.AddCommand(newImportIMDbCommand(ctx))
	return importCmd
}

func newImportDoubanCommand(ctx *commandContext) *cobra.Command {
	var (
		out     string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "douban <dir>",
		Short: "解析保存的豆瓣“看过”页面（及条目详情页），写出豆瓣评分 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, log, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}
			target := eff.SourcePath
			if out != "" {
				target, _ = filepath.Abs(out)
			}
			dir, _ := filepath.Abs(args[0])

			obs := importObserver(cmd)
			rr := run.ImportDouban(cmd.Context(), dir, target, exclude, log, obs)
			return emitImport(cmd, rr)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径（默认使用 --source / source_path）")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "排除的子目录（相对 <dir>，可重复或逗号分隔）")
	return cmd
}

func newImportIMDbCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "imdb <ratings.csv>",
		Short: "转换 IMDb 导出的 ratings.csv，写出已有评分 JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, log, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}
			target := eff.ExistingPath
			if out != "" {
				target, _ = filepath.Abs(out)
			}
			in, _ := filepath.Abs(args[0])

			rr := run.ImportIMDb(in, target, log, importObserver(cmd))
			return emitImport(cmd, rr)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出路径（默认使用 --existing / existing_path）")
	return cmd
}

func importObserver(cmd *cobra.Command) run.Observer {
	if w, ok := pickProgressWriter(cmd); ok {
		return newProgressUI(w)
	}
	return nil
}

func emitImport(cmd *cobra.Command, rr run.ImportReport) error {
	summary := fmt.Sprintf("完成：records=%d with_imdb_id=%d warnings=%d", rr.Records, rr.WithID, len(rr.Warnings))
	if rr.ErrorCode != "" {
		summary = fmt.Sprintf("失败：%s", rr.ErrorCode)
	}
	emitReport(cmd, rr, summary, func(out, errw io.Writer) {
		for _, w := range rr.Warnings {
			fmt.Fprintf(errw, "%s: %s\n", w.Code, truncate(w.Message, 160))
		}
		if rr.ErrorCode != "" {
			fmt.Fprintf(errw, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
			return
		}
		fmt.Fprintf(out, "out: %s\n", rr.Output)
	})
	return exitFor(rr.ErrorCode, 0)
}
