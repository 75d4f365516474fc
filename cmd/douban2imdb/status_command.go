package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "查看计划与 checkpoint 合并后的迁移进度",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter domain.Status
			if only != "" {
				s, err := domain.ParseStatus(only)
				if err != nil {
					return fmt.Errorf("--only：%w", err)
				}
				filter = s
			}

			eff, _, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}

			sr := run.Status(eff)
			if filter != "" {
				sr.Entries = filterEntries(sr.Entries, filter)
			}

			emitReport(cmd, sr, statusSummary(sr), func(out, errw io.Writer) {
				if len(sr.Entries) > 0 {
					fmt.Fprintln(out, renderEntries(sr.Entries))
				}
				if sr.ErrorCode != "" {
					fmt.Fprintf(errw, "%s: %s\n", sr.ErrorCode, sr.ErrorMsg)
				}
			})
			return exitFor(sr.ErrorCode, 0)
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "只列出指定状态的条目：pending|done|failed")
	return cmd
}

func filterEntries(entries []domain.PlanEntry, s domain.Status) []domain.PlanEntry {
	out := make([]domain.PlanEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == s {
			out = append(out, e)
		}
	}
	return out
}

func statusSummary(sr run.StatusReport) string {
	if sr.ErrorCode != "" {
		return fmt.Sprintf("失败：%s", sr.ErrorCode)
	}
	return fmt.Sprintf("进度：total=%d done=%d failed=%d pending=%d", sr.Total, sr.Done, sr.Failed, sr.Pending)
}
