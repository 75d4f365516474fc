package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// 退出码：0 成功；1 运行失败（报告中带 error_code，或存在失败条目）；2 参数错误。
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError 表示命令已经输出了报告，只需以 code 退出。
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, in io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n", err)
	path := cmd.CommandPath()
	if found, _, ferr := cmd.Find(args); ferr == nil && found != nil {
		path = found.CommandPath()
	}
	fmt.Fprintf(stderr, "使用 \"%s --help\" 查看详细说明。\n", path)
	return exitUsage
}
