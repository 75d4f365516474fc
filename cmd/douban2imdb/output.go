package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/douban2imdb/internal/config"
)

// errorReport 是命令在产出正式报告之前就失败（例如配置错误）时的输出。
type errorReport struct {
	Command   string `json:"command"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// emitReport 输出命令结果。
//
// stdout 是终端：摘要写 stdout，detail 输出明细（错误明细写 stderr）。
// stdout 非终端：stdout 必须且仅输出一个 JSON 对象，摘要写 stderr。
func emitReport(cmd *cobra.Command, v any, summary string, detail func(out, errw io.Writer)) {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if isTTY(out) {
		fmt.Fprintln(out, summary)
		if detail != nil {
			detail(out, errw)
		}
		return
	}
	enc := json.NewEncoder(out)
	_ = enc.Encode(v)
	fmt.Fprintln(errw, summary)
}

// emitConfigError 输出配置阶段的错误报告，并返回退出码 1。
func emitConfigError(cmd *cobra.Command, err error) error {
	code := config.Code(err)
	if code == "" {
		code = config.ErrCodeInvalid
	}
	rr := errorReport{Command: cmd.Name(), ErrorCode: code, ErrorMsg: err.Error()}
	emitReport(cmd, rr, fmt.Sprintf("失败：%s", err), nil)
	return exitError{code: exitFailure}
}

// exitFor 根据报告的 error_code 与失败计数决定退出码。
func exitFor(errorCode string, failed int) error {
	if errorCode != "" || failed > 0 {
		return exitError{code: exitFailure}
	}
	return nil
}
