package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (not including initial attempt).
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each retry.
	Multiplier float64

	// Jitter is the upper bound of a random duration added to each delay
	// to prevent thundering herd. Zero disables jitter.
	Jitter time.Duration

	// RetryIf decides whether an error is worth retrying.
	// Nil means errors.IsTransient: network resets, timeouts and
	// 429/5xx-equivalents retry, everything else propagates immediately.
	RetryIf func(error) bool
}

// DefaultRetryConfig returns sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       0,
	}
}

func (cfg RetryConfig) shouldRetry(err error) bool {
	if cfg.RetryIf != nil {
		return cfg.RetryIf(err)
	}
	return eserrors.IsTransient(err)
}

// Retry executes fn with exponential backoff.
// Delay grows as min(initial * multiplier^attempt, maxDelay) + random(0, jitter).
// Only errors the config classifies as retryable are retried; anything else
// returns immediately. A cancelled context aborts the loop with ctx.Err().
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !cfg.shouldRetry(err) {
			return err
		}
		lastErr = err

		// Last attempt, don't wait
		if attempt >= cfg.MaxRetries {
			break
		}

		waitDelay := delay
		if cfg.Jitter > 0 {
			waitDelay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitDelay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}

// RetryWithResult executes a function that returns a value with retry logic.
// Same semantics as Retry for functions that return both a result and an error.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		if !cfg.shouldRetry(err) {
			return zero, err
		}
		lastErr = err

		// Last attempt, don't wait
		if attempt >= cfg.MaxRetries {
			break
		}

		waitDelay := delay
		if cfg.Jitter > 0 {
			waitDelay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(waitDelay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
