package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter caps outbound request rate for one named dependency.
// Two gates must both pass: a sliding-window counter (hard cap per window)
// and a token bucket (smooths bursts). A healthy dependency can still be
// limited by policy, independent of circuit state.
type RateLimiter struct {
	name         string
	maxRequests  int
	window       time.Duration
	burst        int
	pollInterval time.Duration

	mu     sync.Mutex
	stamps []time.Time
	bucket *rate.Limiter
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRequestsPerWindow sets the sliding-window cap.
func WithRequestsPerWindow(n int, window time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.maxRequests = n
		rl.window = window
	}
}

// WithBurst sets the token bucket burst size.
func WithBurst(n int) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.burst = n
	}
}

// WithPollInterval sets how often Wait re-checks for a free slot.
func WithPollInterval(d time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.pollInterval = d
	}
}

// NewRateLimiter creates a rate limiter for the named dependency.
// Defaults: 60 requests per minute, burst of 10, 50ms poll interval.
func NewRateLimiter(name string, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		name:         name,
		maxRequests:  60,
		window:       time.Minute,
		burst:        10,
		pollInterval: 50 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(rl)
	}

	if rl.maxRequests < 1 {
		rl.maxRequests = 1
	}
	if rl.burst < 1 {
		rl.burst = 1
	}
	if rl.window <= 0 {
		rl.window = time.Minute
	}

	refill := rl.window / time.Duration(rl.maxRequests)
	rl.bucket = rate.NewLimiter(rate.Every(refill), rl.burst)

	return rl
}

// Name returns the limiter name.
func (rl *RateLimiter) Name() string {
	return rl.name
}

// Allow reports whether a request may proceed now, consuming a slot if so.
// Non-blocking.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.prune(now)

	if len(rl.stamps) >= rl.maxRequests {
		return false
	}
	if !rl.bucket.Allow() {
		return false
	}

	rl.stamps = append(rl.stamps, now)
	return true
}

// Wait polls until a slot frees or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.pollInterval):
		}
	}
}

// Remaining returns how many window slots are currently free.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(time.Now())
	return rl.maxRequests - len(rl.stamps)
}

// prune drops stamps older than the window. Callers must hold mu.
// Stamps are appended in order, so a single scan from the front suffices.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.stamps) && !rl.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.stamps = append(rl.stamps[:0], rl.stamps[i:]...)
	}
}

// LimiterRegistry maps dependency names to their rate limiters.
type LimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

// NewLimiterRegistry creates an empty registry.
func NewLimiterRegistry() *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*RateLimiter),
	}
}

// GetOrCreate returns the limiter for name, creating it with opts on first use.
func (r *LimiterRegistry) GetOrCreate(name string, opts ...RateLimiterOption) *RateLimiter {
	r.mu.RLock()
	rl, ok := r.limiters[name]
	r.mu.RUnlock()
	if ok {
		return rl
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rl, ok := r.limiters[name]; ok {
		return rl
	}
	rl = NewRateLimiter(name, opts...)
	r.limiters[name] = rl
	return rl
}

// Get returns the limiter for name if it exists.
func (r *LimiterRegistry) Get(name string) (*RateLimiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.limiters[name]
	return rl, ok
}

// All returns every registered limiter, sorted by name for stable output.
func (r *LimiterRegistry) All() []*RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RateLimiter, 0, len(r.limiters))
	for _, rl := range r.limiters {
		out = append(out, rl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
