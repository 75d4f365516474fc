// Package rater 定义“把一条计划提交到 IMDb”的抽象。
package rater

import (
	"context"
	"errors"

	"github.com/John-Robertt/douban2imdb/internal/domain"
)

var (
	// ErrSkipped 表示用户跳过该条目：记为 failed，之后可以 checkpoint retry。
	ErrSkipped = errors.New("rater: skipped")
	// ErrQuit 表示用户要求结束本次会话：当前条目保持未完成，下次继续。
	ErrQuit = errors.New("rater: quit")
)

// Rater 为单个条目提交评分。返回 nil 表示评分已在 IMDb 上生效。
// 其余错误视为暂时性失败，由调用方决定是否重试。
type Rater interface {
	Rate(ctx context.Context, e domain.PlanEntry) error
}

// Func 让普通函数满足 Rater。
type Func func(ctx context.Context, e domain.PlanEntry) error

func (f Func) Rate(ctx context.Context, e domain.PlanEntry) error { return f(ctx, e) }
