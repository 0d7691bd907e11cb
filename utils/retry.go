package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	// Backoff is the jittered wait between a failed attempt and the next one.
	Backoff DelayRange
	Sleeper Sleeper
	Logger  *Logger
}

// Do executes fn until it succeeds or MaxAttempts is reached. fn always runs
// at least once. The attempt number passed to fn starts at 1. Context
// cancellation stops retrying immediately and is returned unwrapped.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(attempt int) error) error {
	var lastErr error
	sleeper := r.Sleeper
	if sleeper == nil {
		sleeper = WallClock
	}
	attempts := max(r.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if isCancelled(ctx, lastErr) {
			return lastErr
		}

		if attempt < attempts {
			delay := r.Backoff.Pick()
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay.Round(time.Millisecond))
			}
			if err := sleeper.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

func isCancelled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
