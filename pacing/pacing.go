// Package pacing spaces out sequential requests with randomized delays.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"
)

// SleepFunc waits for d or until ctx ends, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Jitter returns a duration drawn uniformly from [lo, hi], both inclusive
// at millisecond resolution. hi below lo yields lo.
func Jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64((hi - lo) / time.Millisecond)
	if span <= 0 {
		return lo
	}
	return lo + time.Duration(rand.Int64N(span+1))*time.Millisecond
}

// Sleep waits for d, returning early with ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
