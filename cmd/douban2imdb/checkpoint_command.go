package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/app/run"
	"github.com/John-Robertt/douban2imdb/internal/checkpoint"
	"github.com/John-Robertt/douban2imdb/internal/domain"
)

type retryReport struct {
	CheckpointPath string   `json:"checkpoint_path"`
	Reset          []string `json:"reset"`

	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	cpCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "checkpoint 维护",
	}
	cpCmd.AddCommand(newCheckpointRetryCommand(ctx))
	return cpCmd
}

func newCheckpointRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [imdb_id...]",
		Short: "把 failed 条目重置为 pending（不指定编号时重置全部 failed）",
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, log, err := ctx.load(cmd)
			if err != nil {
				return emitConfigError(cmd, err)
			}

			rr := retryReport{CheckpointPath: eff.CheckpointPath, Reset: []string{}}
			reset, err := run.RetryFailed(eff, args)
			if reset != nil {
				rr.Reset = reset
			}
			if err != nil {
				rr.ErrorCode = retryErrorCode(err)
				rr.ErrorMsg = err.Error()
				log.Error("checkpoint retry failed", "error_code", rr.ErrorCode, "error", err)
			}

			summary := fmt.Sprintf("已重置：%d", len(rr.Reset))
			if rr.ErrorCode != "" {
				summary = fmt.Sprintf("%s（部分失败：%s）", summary, rr.ErrorCode)
			}
			emitReport(cmd, rr, summary, func(out, errw io.Writer) {
				if len(rr.Reset) > 0 {
					fmt.Fprintln(out, strings.Join(rr.Reset, "\n"))
				}
				if rr.ErrorCode != "" {
					fmt.Fprintf(errw, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
				}
			})
			return exitFor(rr.ErrorCode, 0)
		},
	}
}

func retryErrorCode(err error) string {
	switch {
	case errors.Is(err, checkpoint.ErrLocked):
		return domain.ErrCodeLocked
	case errors.Is(err, checkpoint.ErrTransition):
		return domain.ErrCodeInputInvalid
	default:
		return domain.ErrCodeIOFailed
	}
}
