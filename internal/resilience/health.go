package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthTicker periodically polls every breaker in a registry and logs
// state transitions. Polling goes through Stats(), which also moves an
// idle OPEN breaker to HALF_OPEN once its recovery timeout elapses;
// without a tick that evaluation waits for the next request.
type HealthTicker struct {
	registry *BreakerRegistry
	interval time.Duration

	mu       sync.Mutex
	lastSeen map[string]string
	stopCh   chan struct{}
	stopped  bool
}

// NewHealthTicker creates a ticker over registry. A non-positive
// interval falls back to 30 seconds.
func NewHealthTicker(registry *BreakerRegistry, interval time.Duration) *HealthTicker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthTicker{
		registry: registry,
		interval: interval,
		lastSeen: make(map[string]string),
		stopCh:   make(chan struct{}),
	}
}

// Start polls until Stop or context cancellation. Blocks; run it on its
// own goroutine.
func (h *HealthTicker) Start(ctx context.Context) error {
	h.Poll()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case <-ticker.C:
			h.Poll()
		}
	}
}

// Stop stops the ticker. Safe to call multiple times.
func (h *HealthTicker) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	close(h.stopCh)
}

// Poll snapshots every breaker once and logs any state change since the
// previous poll. Breakers start closed, so a first observation in any
// other state logs as a transition.
func (h *HealthTicker) Poll() {
	for _, cb := range h.registry.All() {
		stats := cb.Stats()

		h.mu.Lock()
		prev, seen := h.lastSeen[stats.Name]
		h.lastSeen[stats.Name] = stats.State
		h.mu.Unlock()

		if !seen {
			prev = StateClosed.String()
		}
		if stats.State == prev {
			continue
		}

		attrs := []any{
			slog.String("dependency", stats.Name),
			slog.String("from", prev),
			slog.String("to", stats.State),
			slog.Int("consecutive_failures", stats.ConsecutiveFailures),
			slog.Float64("error_rate", stats.ErrorRate),
		}
		if stats.State == StateOpen.String() {
			slog.Warn("circuit state changed", attrs...)
			continue
		}
		slog.Info("circuit state changed", attrs...)
	}
}
