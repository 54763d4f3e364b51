package resilience

import (
	"context"
	"time"
)

// WithTimeout races fn against a deadline derived from ctx. On expiry it
// returns the deadline error immediately; fn keeps running on its own
// goroutine until it observes the cancelled context and releases its
// resources, but its eventual result is discarded, never used.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so a late fn can deliver its result and exit.
	done := make(chan outcome, 1)

	go func() {
		value, err := fn(tctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-tctx.Done():
		var zero T
		return zero, tctx.Err()
	}
}
