package rating

import (
	"errors"
	"fmt"
	"math"
)

const (
	SourceMin      = 1
	SourceMax      = 5
	DestinationMin = 1
	DestinationMax = 10
)

// ErrOutOfRange 表示评分超出豆瓣 1..5 的取值范围。
var ErrOutOfRange = errors.New("rating: out of range")

// RangeError 携带越界的原始值；errors.Is(err, ErrOutOfRange) 为 true。
type RangeError struct {
	Value int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("豆瓣评分必须在 %d..%d 之间，实际为 %d", SourceMin, SourceMax, e.Value)
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }

// Convert 把豆瓣 1..5 星线性换算为 IMDb 1..10 分：round(v*2)，并截断到 [1,10]。
func Convert(v int) (int, error) {
	if v < SourceMin || v > SourceMax {
		return 0, &RangeError{Value: v}
	}
	return clamp(int(math.Round(float64(v)*2)), DestinationMin, DestinationMax), nil
}

// Average 返回已换算评分的均值（四舍五入，.5 进位）。空输入返回 0。
func Average(converted []int) int {
	if len(converted) == 0 {
		return 0
	}
	sum := 0
	for _, v := range converted {
		sum += v
	}
	avg := int(math.Round(float64(sum) / float64(len(converted))))
	return clamp(avg, DestinationMin, DestinationMax)
}

// ValidDestination 判断 IMDb 评分是否在 1..10 之内。
func ValidDestination(v int) bool {
	return v >= DestinationMin && v <= DestinationMax
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
