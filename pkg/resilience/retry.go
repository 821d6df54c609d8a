package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig shapes the exponential backoff between attempts. Zero fields
// take the defaults from withDefaults.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	// Retryable decides whether an error is worth another attempt. Nil
	// retries everything except context cancellation.
	Retryable func(error) bool
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = 0.1
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return cfg
}

// backoff is the pause after the given failed attempt (1-based): the
// initial delay grown geometrically, jittered, and capped at MaxDelay.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d *= 1 + cfg.JitterFraction*(2*rand.Float64()-1)
	switch {
	case d > float64(cfg.MaxDelay):
		return cfg.MaxDelay
	case d <= 0:
		return cfg.InitialDelay
	}
	return time.Duration(d)
}

// RetryValue calls fn until it succeeds, returns a non-retryable error, or
// runs out of attempts. Only the value of the successful attempt is
// returned.
func RetryValue[T any](ctx context.Context, name string, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)
	var zero T
	var lastErr error
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation recovered", "attempt", attempt)
			}
			return v, nil
		}
		lastErr = err
		if !cfg.Retryable(err) {
			return zero, err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}
		wait := cfg.backoff(attempt)
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "error", err, "backoff", wait)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
	}
	return zero, fmt.Errorf("%s: all %d attempts failed: %w", name, cfg.MaxAttempts, lastErr)
}

// Retry is RetryValue for calls that only report an error.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	_, err := RetryValue(ctx, name, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
