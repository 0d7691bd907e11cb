package utils

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper blocks for a requested duration. Implementations must return early
// with ctx.Err() when the context is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// WallClock sleeps on real time.
var WallClock Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
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
})

// DelayRange is a closed interval of durations to draw a jittered delay from.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether d lies within the range.
func (r DelayRange) Contains(d time.Duration) bool {
	return d >= r.Min && d <= r.Max
}

// Pick draws a duration uniformly from the range.
func (r DelayRange) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int64N(int64(r.Max-r.Min)+1))
}

// RandomSleep waits for a duration drawn from r.
func RandomSleep(ctx context.Context, s Sleeper, r DelayRange) error {
	return s.Sleep(ctx, r.Pick())
}
