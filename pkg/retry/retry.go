package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// JitterStrategy defines the jitter strategy to use
type JitterStrategy int

const (
	// JitterNone disables jitter
	JitterNone JitterStrategy = iota
	// JitterEqual picks a delay uniformly between MinDelay and the computed delay
	JitterEqual
	// JitterDecorrelated picks a delay between the computed delay and 1.5x of it
	JitterDecorrelated
)

// Config defines retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first one.
	// Zero means retry until the context is done.
	MaxAttempts int
	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration
	// MinDelay is the lower bound for jittered delays (defaults to InitialDelay)
	MinDelay time.Duration
	// MaxDelay caps every delay
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier, 1 keeps the delay constant
	Multiplier float64
	// Jitter defines the jitter algorithm
	Jitter JitterStrategy
	// Rand is the random source for jitter (a local source if nil)
	Rand *rand.Rand
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, nextDelay time.Duration)
	// NextDelay overrides backoff: it receives the previous delay and returns the next one
	NextDelay func(attempt int, prev time.Duration) time.Duration
	// After creates a timer channel (time.After if nil)
	After func(d time.Duration) <-chan time.Time
}

// DefaultConfig returns three attempts with decorrelated jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       JitterDecorrelated,
	}
}

// Normalize validates the configuration and fills optional fields.
func (c *Config) Normalize() error {
	if c.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts cannot be negative")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = max(c.InitialDelay, 5*time.Second)
	}
	if c.MinDelay <= 0 {
		c.MinDelay = min(c.InitialDelay, c.MaxDelay)
	}
	if c.MinDelay > c.MaxDelay {
		return errors.New("retry: MinDelay cannot be greater than MaxDelay")
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.After == nil {
		c.After = time.After
	}
	return nil
}

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// IsRetryableFunc reports whether err should trigger another attempt.
type IsRetryableFunc func(err error) bool

// Always retries every error except context cancellation.
func Always(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// RetriesExceededError is returned when attempts are exhausted. It unwraps to
// the last error, so errors.As still finds driver errors behind it.
type RetriesExceededError struct {
	LastError error
	Attempts  int
}

func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *RetriesExceededError) Unwrap() error {
	return e.LastError
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, or the
// attempts run out. A non-retryable error is returned as is. When ctx is done
// while waiting, the context error is returned.
func Do(ctx context.Context, config Config, fn Func, isRetryable IsRetryableFunc) error {
	cfg := config
	if err := cfg.Normalize(); err != nil {
		return err
	}
	if isRetryable == nil {
		isRetryable = Always
	}

	var (
		lastErr error
		delay   time.Duration
	)
	for attempt := 1; cfg.MaxAttempts == 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (after %d attempts: %v)", err, attempt-1, lastErr)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts || !isRetryable(lastErr) {
			break
		}

		delay = cfg.nextDelay(attempt, delay)
		if deadline, ok := ctx.Deadline(); ok {
			delay = min(delay, time.Until(deadline))
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (after %d attempts: %v)", ctx.Err(), attempt, lastErr)
		case <-cfg.After(delay):
		}
	}

	if !isRetryable(lastErr) {
		return lastErr
	}
	return &RetriesExceededError{LastError: lastErr, Attempts: cfg.MaxAttempts}
}

// nextDelay returns the wait after attempt. prev is zero before the first wait.
func (c Config) nextDelay(attempt int, prev time.Duration) time.Duration {
	if c.NextDelay != nil {
		return clamp(c.NextDelay(attempt, prev), 0, c.MaxDelay)
	}
	return c.applyJitter(c.backoff(attempt))
}

// backoff returns InitialDelay * Multiplier^(attempt-1) capped at MaxDelay.
func (c Config) backoff(attempt int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < attempt; i++ {
		if float64(delay)*c.Multiplier >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
		delay = time.Duration(float64(delay) * c.Multiplier)
	}
	return min(delay, c.MaxDelay)
}

func (c Config) applyJitter(base time.Duration) time.Duration {
	switch c.Jitter {
	case JitterEqual:
		if base <= c.MinDelay {
			return c.MinDelay
		}
		return c.MinDelay + time.Duration(c.Rand.Int63n(int64(base-c.MinDelay)))
	case JitterDecorrelated:
		if base <= 1 {
			return clamp(base, c.MinDelay, c.MaxDelay)
		}
		return clamp(base+time.Duration(c.Rand.Int63n(int64(base/2)+1)), c.MinDelay, c.MaxDelay)
	default:
		return base
	}
}

func clamp(value, lo, hi time.Duration) time.Duration {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
