package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "生成迁移计划（默认 dry-run，不写文件）",
		Long: `读取豆瓣评分与 IMDb 已有评分，匹配 IMDb 编号、合并分季条目并换算评分。

默认 dry-run：只输出报告。--apply 时原子写入计划文件与 report.json。
已存在的 checkpoint 中 done / failed 的状态会保留到新计划中。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.cli.ApplySet = cmd.Flags().Changed("apply")
			ctx.cli.StrictSet = cmd.Flags().Changed("strict")

			eff, log, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}

			progressW, interactive := pickProgressWriter(cmd)
			var obs run.Observer
			if interactive {
				obs = newProgressUI(progressW)
			}

			rr, entries := run.Plan(cmd.Context(), eff, log, obs)
			emitReport(cmd, rr, planSummary(rr), func(out, errw io.Writer) {
				if len(entries) > 0 && len(entries) <= maxTableRows {
					fmt.Fprintln(out, renderEntries(entries))
				}
				for _, u := range rr.Unmatched {
					fmt.Fprintf(errw, "#%d %s %s\n", u.Index, u.Record.Title, u.Reason)
				}
				if rr.ErrorCode != "" {
					fmt.Fprintf(errw, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
				}
			})
			if interactive && eff.Apply && rr.ErrorCode == "" {
				fmt.Fprintf(progressW, "plan: %s\nreport: %s\n", eff.PlanPath, eff.ReportPath)
			}
			return exitFor(rr.ErrorCode, 0)
		},
	}
	cmd.Flags().BoolVar(&ctx.cli.Apply, "apply", false, "写入计划与报告；支持 --apply=false 覆盖配置中的 apply = true")
	cmd.Flags().BoolVar(&ctx.cli.Strict, "strict", false, "评分超出范围时直接失败（默认记为 warning 并跳过）")
	return cmd
}

// maxTableRows 以内的计划在终端里直接打印成表格。
const maxTableRows = 50

func planSummary(rr domain.PlanReport) string {
	mode := "dry-run"
	if !rr.DryRun {
		mode = "apply"
	}
	if rr.ErrorCode != "" {
		return fmt.Sprintf("失败（%s）：%s", mode, rr.ErrorCode)
	}
	return fmt.Sprintf("完成（%s）：entries=%d pending=%d done=%d failed=%d unmatched=%d warnings=%d",
		mode, rr.Stats.Entries, rr.Pending, rr.Done, rr.Failed, len(rr.Unmatched), len(rr.Warnings),
	)
}

func renderEntries(entries []domain.PlanEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.DestinationID,
			strconv.Itoa(e.Rating),
			string(e.Status),
			e.Match,
			truncate(joinTitles(e.SourceTitles), 60),
		})
	}
	return renderTable(
		[]string{"IMDb", "评分", "状态", "匹配", "豆瓣标题"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}
