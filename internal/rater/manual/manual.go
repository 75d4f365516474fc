// Package manual 实现终端交互式评分：打印条目链接与目标评分，由用户在浏览器里完成打分后确认。
package manual

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/John-Robertt/douban2imdb/internal/domain"
	"github.com/John-Robertt/douban2imdb/internal/rater"
)

// ErrRetry 表示用户要求重试当前条目（走调用方的退避重试）。
var ErrRetry = errors.New("manual: retry requested")

type Rater struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

func New(in io.Reader, out io.Writer) *Rater {
	return &Rater{in: in, out: out}
}

var _ rater.Rater = (*Rater)(nil)

// Rate 提示用户为 e 打分并等待确认：
// y 完成；s 跳过（rater.ErrSkipped）；r 重试（ErrRetry）；q 或输入结束则退出（rater.ErrQuit）。
func (r *Rater) Rate(ctx context.Context, e domain.PlanEntry) error {
	r.once.Do(r.startReader)

	fmt.Fprintf(r.out, "\n%s  %s\n", e.DestinationID, e.URL())
	fmt.Fprintf(r.out, "  豆瓣：%s%s\n", strings.Join(e.SourceTitles, " | "), stars(e.SourceRatings))
	fmt.Fprintf(r.out, "  目标评分：%d/10\n", e.Rating)

	for {
		fmt.Fprint(r.out, "  完成后输入 y，跳过 s，重试 r，退出 q：")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return ctx.Err()
		case line, ok = <-r.lines:
		}
		if !ok {
			fmt.Fprintln(r.out)
			return rater.ErrQuit
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		case "s", "skip":
			return rater.ErrSkipped
		case "r", "retry":
			return ErrRetry
		case "q", "quit":
			return rater.ErrQuit
		}
	}
}

// startReader 用单个 goroutine 按行读取输入，Rate 通过 channel 接收，
// 这样 ctx 取消时 Rate 可以立即返回，且不会有两个读者争抢同一行。
func (r *Rater) startReader() {
	r.lines = make(chan string)
	go func() {
		defer close(r.lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			r.lines <- sc.Text()
		}
	}()
}

func stars(ratings []int) string {
	if len(ratings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ratings))
	for _, v := range ratings {
		parts = append(parts, strconv.Itoa(v)+"★")
	}
	return "（" + strings.Join(parts, ", ") + "）"
}
