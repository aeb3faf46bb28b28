package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"
)

var errBusy = errors.New("database is locked")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

// instant replaces time.After and records the requested delays.
func instant(delays *[]time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*delays = append(*delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
}

func testConfig(delays *[]time.Duration) Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		After:        instant(delays),
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.Jitter != JitterDecorrelated {
		t.Errorf("Jitter = %v, want JitterDecorrelated", cfg.Jitter)
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.MinDelay != cfg.InitialDelay {
		t.Errorf("MinDelay = %v, want %v", cfg.MinDelay, cfg.InitialDelay)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{MaxAttempts: 1, InitialDelay: time.Millisecond}, ""},
		{"unlimited attempts", Config{InitialDelay: time.Millisecond}, ""},
		{"negative attempts", Config{MaxAttempts: -1, InitialDelay: time.Millisecond}, "MaxAttempts"},
		{"zero delay", Config{MaxAttempts: 1}, "InitialDelay"},
		{"min above max", Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MinDelay: time.Second, MaxDelay: time.Millisecond}, "MinDelay"},
		{"multiplier below one", Config{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 0.5}, "Multiplier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Normalize()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Normalize() error = %v", err)
				}
				if cfg.Multiplier != 2 || cfg.After == nil || cfg.Rand == nil {
					t.Errorf("defaults not filled: %+v", cfg)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Normalize() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDo_Success(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		calls++
		return nil
	}, isBusy)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Errorf("calls = %d, delays = %v", calls, delays)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	}, isBusy)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", delays, want)
	}
}

func TestDo_NonRetryableReturnedAsIs(t *testing.T) {
	var delays []time.Duration
	constraint := errors.New("CHECK constraint failed")
	calls := 0
	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		calls++
		return constraint
	}, isBusy)
	if err != constraint {
		t.Errorf("Do() error = %v, want the original error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_AttemptsExhausted(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		calls++
		return errBusy
	}, isBusy)

	var exceeded *RetriesExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected RetriesExceededError, got %v", err)
	}
	if exceeded.Attempts != 3 || calls != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", exceeded.Attempts, calls)
	}
	if !errors.Is(err, errBusy) {
		t.Error("RetriesExceededError should unwrap to the last error")
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDo_ContextCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultConfig(), func(context.Context) error {
		calls++
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestDo_ContextCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{InitialDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return errBusy
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if !strings.Contains(err.Error(), errBusy.Error()) {
		t.Errorf("Do() error = %q should mention the last error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_InvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{}, func(context.Context) error { return nil }, nil)
	if err == nil {
		t.Fatal("expected error for zero config")
	}
}

func TestDo_NextDelayAndOnRetry(t *testing.T) {
	var delays []time.Duration
	cfg := testConfig(&delays)
	cfg.MaxAttempts = 4
	cfg.NextDelay = func(_ int, prev time.Duration) time.Duration {
		return prev + 5*time.Millisecond
	}
	var seen []int
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		if !errors.Is(err, errBusy) {
			t.Errorf("OnRetry err = %v", err)
		}
		seen = append(seen, attempt)
	}

	_ = Do(context.Background(), cfg, func(context.Context) error { return errBusy }, nil)

	want := []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("OnRetry attempts = %v", seen)
	}
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		if got := cfg.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestApplyJitter(t *testing.T) {
	base := 100 * time.Millisecond
	cfg := Config{
		MinDelay: 10 * time.Millisecond,
		MaxDelay: time.Second,
		Rand:     rand.New(rand.NewSource(1)),
	}

	cfg.Jitter = JitterNone
	if got := cfg.applyJitter(base); got != base {
		t.Errorf("JitterNone = %v, want %v", got, base)
	}

	for i := 0; i < 100; i++ {
		cfg.Jitter = JitterEqual
		if got := cfg.applyJitter(base); got < cfg.MinDelay || got >= base {
			t.Fatalf("JitterEqual = %v, out of [%v, %v)", got, cfg.MinDelay, base)
		}
		cfg.Jitter = JitterDecorrelated
		if got := cfg.applyJitter(base); got < base || got > base+base/2 {
			t.Fatalf("JitterDecorrelated = %v, out of [%v, %v]", got, base, base+base/2)
		}
	}
}

func TestAlways(t *testing.T) {
	if Always(nil) {
		t.Error("Always(nil) = true")
	}
	if Always(context.Canceled) {
		t.Error("Always(context.Canceled) = true")
	}
	if !Always(context.DeadlineExceeded) || !Always(errBusy) {
		t.Error("Always should accept other errors")
	}
}
