package utils

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

type recordingSleeper struct {
	calls []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func quietLogger() *Logger {
	return NewLoggerWithOptions(LoggerOptions{Writer: io.Discard})
}

func TestRetryStopsOnSuccess(t *testing.T) {
	sl := &recordingSleeper{}
	r := &RetryConfig{
		MaxAttempts: 3,
		Backoff:     DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
		Sleeper:     sl,
		Logger:      quietLogger(),
	}

	calls := 0
	err := r.Do(context.Background(), "op", func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if len(sl.calls) != 1 {
		t.Fatalf("sleeps: got %d, want 1", len(sl.calls))
	}
	if !r.Backoff.Contains(sl.calls[0]) {
		t.Errorf("backoff %v outside %v..%v", sl.calls[0], r.Backoff.Min, r.Backoff.Max)
	}
}

func TestRetryExhaustion(t *testing.T) {
	sl := &recordingSleeper{}
	r := &RetryConfig{
		MaxAttempts: 3,
		Backoff:     DelayRange{Min: time.Second, Max: 2 * time.Second},
		Sleeper:     sl,
		Logger:      quietLogger(),
	}
	boom := errors.New("boom")

	calls := 0
	err := r.Do(context.Background(), "op", func(int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err: got %v, want wrapped %v", err, boom)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if len(sl.calls) != 2 {
		t.Errorf("sleeps: got %d, want 2 (none after the last attempt)", len(sl.calls))
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RetryConfig{MaxAttempts: 3, Sleeper: &recordingSleeper{}, Logger: quietLogger()}

	calls := 0
	err := r.Do(ctx, "op", func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestRetryRunsAtLeastOnce(t *testing.T) {
	for _, n := range []int{0, -2} {
		sl := &recordingSleeper{}
		r := &RetryConfig{MaxAttempts: n, Sleeper: sl, Logger: quietLogger()}
		boom := errors.New("boom")

		calls := 0
		err := r.Do(context.Background(), "op", func(int) error {
			calls++
			return boom
		})
		if calls != 1 {
			t.Errorf("MaxAttempts=%d: calls got %d, want 1", n, calls)
		}
		if !errors.Is(err, boom) {
			t.Errorf("MaxAttempts=%d: err got %v, want wrapped %v", n, err, boom)
		}
		if len(sl.calls) != 0 {
			t.Errorf("MaxAttempts=%d: sleeps got %d, want 0", n, len(sl.calls))
		}
	}
}

func TestDelayRangePick(t *testing.T) {
	r := DelayRange{Min: 3 * time.Second, Max: 5 * time.Second}
	for i := 0; i < 200; i++ {
		if d := r.Pick(); !r.Contains(d) {
			t.Fatalf("Pick() = %v outside range", d)
		}
	}

	fixed := DelayRange{Min: time.Second, Max: time.Second}
	if d := fixed.Pick(); d != time.Second {
		t.Errorf("degenerate range: got %v, want 1s", d)
	}
}

func TestWallClockHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := WallClock.Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err: got %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("WallClock.Sleep did not return promptly on cancel")
	}
}
