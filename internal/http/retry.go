package http

import (
	"context"
	"fmt"
	"time"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
)

// RetryConfig configures retry behavior for upstream calls.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Retryable decides whether a failed attempt may be repeated.
	// Defaults to retrying rate-limited errors only.
	Retryable func(err error) bool

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   config.DefaultMaxRetries,
		InitialDelay:  config.DefaultRetryDelayBase,
		MaxDelay:      config.DefaultRetryDelayMax,
		BackoffFactor: 2.0,
		Retryable:     RateLimitedOnly,
	}
}

// RateLimitedOnly retries upstream throttling and nothing else.
func RateLimitedOnly(err error) bool {
	return errs.KindOf(err).Retryable()
}

// AttemptFunc performs one attempt; attempt starts at 1.
type AttemptFunc[T any] func(attempt int) (T, error)

// RetryFunc is a helper for retrying any function with exponential backoff.
type RetryFunc[T any] func() (T, error)

// RetryWithContext executes fn with retry and context support, retrying every error.
func RetryWithContext[T any](ctx context.Context, fn RetryFunc[T], maxAttempts int, initialDelay time.Duration) (T, error) {
	cfg := RetryConfig{
		MaxAttempts:   maxAttempts,
		InitialDelay:  initialDelay,
		BackoffFactor: 2.0,
		Retryable:     func(error) bool { return true },
	}
	return Do(ctx, cfg, func(int) (T, error) { return fn() })
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is exhausted, or ctx is done. The delay between attempts grows by
// BackoffFactor and is capped at MaxDelay.
func Do[T any](ctx context.Context, cfg RetryConfig, fn AttemptFunc[T]) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 2.0
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = RateLimitedOnly
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if errs.KindOf(lastErr) == errs.KindRateLimited {
		return zero, &errs.Error{
			Kind: errs.KindRateLimited,
			Msg:  fmt.Sprintf("upstream throttled, retries exhausted after %d attempts", cfg.MaxAttempts),
			Err:  lastErr,
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
