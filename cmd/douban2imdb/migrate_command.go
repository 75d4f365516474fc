package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/rater/manual"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "按计划逐条迁移评分（可中断，下次从断点继续）",
		Long: `按计划顺序逐条提示评分：在浏览器中打开 IMDb 页面打分后输入 y 确认。

每条状态变化都会立即写入 checkpoint；Ctrl-C 或输入 q 会停止会话，
未完成的条目下次运行时恢复为 pending。failed 条目需要先执行 checkpoint retry。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit 不能为负数：%d", limit)
			}
			eff, log, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}

			progressW, interactive := pickProgressWriter(cmd)
			var obs run.Observer
			promptW := cmd.ErrOrStderr()
			if interactive {
				obs = newProgressUI(progressW)
				promptW = progressW
			}

			r := manual.New(cmd.InOrStdin(), promptW)
			rr := run.Migrate(cmd.Context(), eff, r, run.MigrateOptions{Limit: limit}, log, obs)

			emitReport(cmd, rr, migrateSummary(rr), func(out, errw io.Writer) {
				for _, f := range rr.Failures {
					fmt.Fprintf(errw, "%s attempts=%d: %s\n", f.DestinationID, f.Attempts, truncate(f.Error, 160))
				}
				if rr.ErrorCode != "" {
					fmt.Fprintf(errw, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
				}
			})
			if interactive && rr.ErrorCode == "" {
				fmt.Fprintf(progressW, "checkpoint: %s\n", eff.CheckpointPath)
			}
			return exitFor(rr.ErrorCode, rr.Failed)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "本次最多处理的条目数（0 表示不限制）")
	return cmd
}

func migrateSummary(rr domain.MigrateReport) string {
	if rr.ErrorCode != "" {
		return fmt.Sprintf("失败：%s", rr.ErrorCode)
	}
	head := "完成"
	if rr.Interrupted {
		head = "已中断"
	}
	return fmt.Sprintf("%s：total=%d attempted=%d done=%d failed=%d remaining=%d recovered=%d",
		head, rr.Total, rr.Attempted, rr.Done, rr.Failed, rr.Remaining, rr.Recovered,
	)
}
