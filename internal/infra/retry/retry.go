// Package retry 提供有界重试与指数退避。
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	DefaultBase = time.Second
	DefaultMax  = 60 * time.Second
)

// Policy 描述一次有界重试。零值表示只尝试一次、不等待。
type Policy struct {
	// Retries 表示最大重试次数（不含首次尝试）。例如 3 表示最多 4 次尝试。
	Retries int
	Base    time.Duration
	Max     time.Duration

	// Sleep/Jitter 可在测试中替换；为 nil 时使用真实计时器与 math/rand。
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
}

// Permanent 包装一个不应重试的错误。
type Permanent struct{ Err error }

func (e *Permanent) Error() string { return e.Err.Error() }
func (e *Permanent) Unwrap() error { return e.Err }

// Stop 把 err 标记为不可重试。
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Backoff 返回第 attempt 次重试前的等待时长（attempt 从 0 开始）：
// min(base*2^attempt, max)，再加上 [0, 10%) 的随机抖动。
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	max := p.Max
	if max <= 0 {
		max = DefaultMax
	}
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return d + time.Duration(jitter()*0.1*float64(d))
}

// Do 执行 fn，失败时按策略退避重试。
//
// - fn 返回 nil：立即成功
// - fn 返回 Stop(err)：不再重试，返回原始 err
// - ctx 取消：不再重试，返回 ctx 的错误
// - onRetry（可为 nil）在每次等待前调用，attempt 从 1 开始
//
// 返回值 attempts 为实际调用 fn 的次数。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, wait time.Duration, err error)) (attempts int, err error) {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempts, nil
		}
		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return attempts, perm.Err
		}
		if ctx.Err() != nil {
			return attempts, lastErr
		}
		if attempt == retries {
			break
		}
		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt+1, wait, lastErr)
		}
		if err := sleep(ctx, wait); err != nil {
			return attempts, err
		}
	}
	return attempts, lastErr
}

// Sleep 等待 d 或 ctx 取消。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
