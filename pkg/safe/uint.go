// Package safe provides helpers for safe numeric conversions with overflow checks.
package safe

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is returned when a value does not fit the requested range.
var ErrOverflow = errors.New("integer overflow")

// ErrUnderflow is returned when a subtraction would go below zero.
var ErrUnderflow = errors.New("integer underflow")

type integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Uint32 converts signed or unsigned integers to uint32 with range validation.
func Uint32[T integer](v T) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d out of uint32 range: %w", v, ErrOverflow)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("value %d out of uint32 range: %w", v, ErrOverflow)
	}
	return uint32(v), nil
}

// Uint64 converts signed or unsigned integers to uint64 while guarding against negatives.
func Uint64[T integer](v T) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d out of uint64 range: %w", v, ErrOverflow)
	}
	return uint64(v), nil
}

// Int64 converts a uint64 amount to int64, rejecting values above math.MaxInt64.
func Int64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d out of int64 range: %w", v, ErrOverflow)
	}
	return int64(v), nil
}

// AddUint64 sums values and fails instead of wrapping around.
func AddUint64(values ...uint64) (uint64, error) {
	var sum uint64
	for _, v := range values {
		if v > math.MaxUint64-sum {
			return 0, fmt.Errorf("sum exceeds uint64: %w", ErrOverflow)
		}
		sum += v
	}
	return sum, nil
}

// SubUint64 returns a-b, or ErrUnderflow when b > a.
func SubUint64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%d - %d: %w", a, b, ErrUnderflow)
	}
	return a - b, nil
}
