package resilience

import (
	"errors"
	"sort"
	"sync"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is the normal state where requests are allowed.
	StateClosed State = iota
	// StateOpen is when the circuit is tripped and requests are blocked.
	StateOpen
	// StateHalfOpen is when the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// windowBucket accumulates call outcomes for one bucket interval.
type windowBucket struct {
	start    time.Time
	calls    int
	failures int
	slow     int
}

// rollingWindow is a fixed ring of time buckets. Buckets are lazily reset
// when their slot is revisited, so stale data never leaks into totals.
// Not safe for concurrent use; callers hold the breaker mutex.
type rollingWindow struct {
	buckets []windowBucket
	bucket  time.Duration
}

func newRollingWindow(size int, bucket time.Duration) *rollingWindow {
	return &rollingWindow{
		buckets: make([]windowBucket, size),
		bucket:  bucket,
	}
}

func (w *rollingWindow) slot(now time.Time) *windowBucket {
	idx := int(now.UnixNano()/int64(w.bucket)) % len(w.buckets)
	b := &w.buckets[idx]
	start := now.Truncate(w.bucket)
	if !b.start.Equal(start) {
		*b = windowBucket{start: start}
	}
	return b
}

func (w *rollingWindow) record(now time.Time, failed, slow bool) {
	b := w.slot(now)
	b.calls++
	if failed {
		b.failures++
	}
	if slow {
		b.slow++
	}
}

func (w *rollingWindow) totals(now time.Time) (calls, failures, slow int) {
	cutoff := now.Add(-w.bucket * time.Duration(len(w.buckets)))
	for i := range w.buckets {
		b := &w.buckets[i]
		if b.start.IsZero() || b.start.Before(cutoff) {
			continue
		}
		calls += b.calls
		failures += b.failures
		slow += b.slow
	}
	return calls, failures, slow
}

func (w *rollingWindow) reset() {
	for i := range w.buckets {
		w.buckets[i] = windowBucket{}
	}
}

// CircuitBreaker implements the circuit breaker pattern for one named
// dependency. It trips OPEN on consecutive failures, on a high error rate
// over a rolling window once call volume is meaningful, or on a high
// slow-call ratio. After recoveryTimeout it admits a bounded number of
// trial calls (HALF_OPEN) and closes again after enough successes.
type CircuitBreaker struct {
	name string

	failureThreshold       int
	errorRateThreshold     float64
	volumeThreshold        int
	slowCallThreshold      time.Duration
	slowCallRatioThreshold float64
	recoveryTimeout        time.Duration
	successThreshold       int
	halfOpenMaxCalls       int

	mu                sync.Mutex
	state             State
	window            *rollingWindow
	consecutiveFails  int
	openedAt          time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the consecutive-failure count that trips the circuit.
func WithFailureThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.failureThreshold = n
	}
}

// WithErrorRateThreshold sets the windowed error rate (0..1) that trips the
// circuit once call volume reaches the volume threshold.
func WithErrorRateThreshold(rate float64) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.errorRateThreshold = rate
	}
}

// WithVolumeThreshold sets the minimum windowed call count before the
// error-rate and slow-call-ratio rules apply.
func WithVolumeThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.volumeThreshold = n
	}
}

// WithSlowCallThreshold sets the latency above which a call counts as slow.
func WithSlowCallThreshold(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.slowCallThreshold = d
	}
}

// WithSlowCallRatioThreshold sets the windowed slow-call ratio (0..1) that
// trips the circuit once call volume reaches the volume threshold.
func WithSlowCallRatioThreshold(rate float64) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.slowCallRatioThreshold = rate
	}
}

// WithRecoveryTimeout sets the time to wait in OPEN before trial calls start.
func WithRecoveryTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.recoveryTimeout = d
	}
}

// WithSuccessThreshold sets the consecutive successes needed to close from HALF_OPEN.
func WithSuccessThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.successThreshold = n
	}
}

// WithHalfOpenMaxCalls caps the number of trial calls admitted in HALF_OPEN.
func WithHalfOpenMaxCalls(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.halfOpenMaxCalls = n
	}
}

// WithWindow sets the rolling window as a number of buckets of the given duration.
func WithWindow(buckets int, bucket time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.window = newRollingWindow(buckets, bucket)
	}
}

// NewCircuitBreaker creates a new circuit breaker with the given name.
// Defaults: 5 consecutive failures, 50% error rate over 10 calls in a
// 10x1s window, 5s slow-call threshold at 80% ratio, 30 second recovery,
// 2 successes to close, 3 trial calls.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                   name,
		failureThreshold:       5,
		errorRateThreshold:     0.5,
		volumeThreshold:        10,
		slowCallThreshold:      5 * time.Second,
		slowCallRatioThreshold: 0.8,
		recoveryTimeout:        30 * time.Second,
		successThreshold:       2,
		halfOpenMaxCalls:       3,
		state:                  StateClosed,
		window:                 newRollingWindow(10, time.Second),
	}

	for _, opt := range opts {
		opt(cb)
	}

	// The trial budget must cover the success threshold.
	if cb.halfOpenMaxCalls < cb.successThreshold {
		cb.halfOpenMaxCalls = cb.successThreshold
	}

	return cb
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeRecover(time.Now())
	return cb.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// Stats is a point-in-time snapshot of breaker health.
type Stats struct {
	Name                string  `json:"name"`
	State               string  `json:"state"`
	Calls               int     `json:"calls"`
	Failures            int     `json:"failures"`
	SlowCalls           int     `json:"slow_calls"`
	ErrorRate           float64 `json:"error_rate"`
	SlowRate            float64 `json:"slow_rate"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
}

// Stats returns a snapshot of the breaker's rolling-window health.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.maybeRecover(now)
	calls, failures, slow := cb.window.totals(now)

	s := Stats{
		Name:                cb.name,
		State:               cb.state.String(),
		Calls:               calls,
		Failures:            failures,
		SlowCalls:           slow,
		ConsecutiveFailures: cb.consecutiveFails,
	}
	if calls > 0 {
		s.ErrorRate = float64(failures) / float64(calls)
		s.SlowRate = float64(slow) / float64(calls)
	}
	return s
}

// maybeRecover moves OPEN to HALF_OPEN once the recovery timeout has elapsed.
// Callers must hold mu.
func (cb *CircuitBreaker) maybeRecover(now time.Time) {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.recoveryTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
	}
}

// Allow reports whether a request would currently be admitted.
// It never consumes a HALF_OPEN trial slot; Execute does that.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeRecover(time.Now())
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return cb.halfOpenCalls < cb.halfOpenMaxCalls
	default: // StateOpen
		return false
	}
}

// tryAcquire admits a call, consuming a trial slot when half-open.
func (cb *CircuitBreaker) tryAcquire() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeRecover(time.Now())
	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.halfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default: // StateOpen
		return false
	}
}

// record books the outcome of an admitted call.
func (cb *CircuitBreaker) record(latency time.Duration, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	slow := cb.slowCallThreshold > 0 && latency >= cb.slowCallThreshold
	cb.window.record(now, failed, slow)

	switch cb.state {
	case StateHalfOpen:
		if failed {
			cb.trip(now)
			return
		}
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.successThreshold {
			cb.close()
		}

	case StateClosed:
		if failed {
			cb.consecutiveFails++
		} else {
			cb.consecutiveFails = 0
		}
		if cb.shouldTrip(now) {
			cb.trip(now)
		}
	}
}

// shouldTrip evaluates the trip rules. Callers must hold mu.
func (cb *CircuitBreaker) shouldTrip(now time.Time) bool {
	if cb.failureThreshold > 0 && cb.consecutiveFails >= cb.failureThreshold {
		return true
	}

	calls, failures, slow := cb.window.totals(now)
	if calls < cb.volumeThreshold || calls == 0 {
		return false
	}
	if cb.errorRateThreshold > 0 && float64(failures)/float64(calls) >= cb.errorRateThreshold {
		return true
	}
	if cb.slowCallRatioThreshold > 0 && float64(slow)/float64(calls) >= cb.slowCallRatioThreshold {
		return true
	}
	return false
}

func (cb *CircuitBreaker) trip(now time.Time) {
	cb.state = StateOpen
	cb.openedAt = now
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}

func (cb *CircuitBreaker) close() {
	cb.state = StateClosed
	cb.consecutiveFails = 0
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
	cb.window.reset()
}

// RecordSuccess records a successful call observed outside Execute.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.record(0, false)
}

// RecordFailure records a failed call observed outside Execute.
func (cb *CircuitBreaker) RecordFailure() {
	cb.record(0, true)
}

// openError builds the distinguishable circuit-open error for this breaker.
func (cb *CircuitBreaker) openError() error {
	return eserrors.New(eserrors.ErrCodeCircuitOpen, "circuit open for "+cb.name, ErrCircuitOpen).
		WithDetail("dependency", cb.name)
}

// Execute runs fn through the circuit breaker.
// Returns a circuit-open error without calling fn when the circuit is open
// or the half-open trial budget is exhausted.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.tryAcquire() {
		return cb.openError()
	}

	start := time.Now()
	err := fn()
	cb.record(time.Since(start), err != nil)
	return err
}

// ExecuteWithFallback runs fn through the circuit breaker, invoking fallback
// instead when the call is not admitted. A nil fallback yields the
// circuit-open error.
func (cb *CircuitBreaker) ExecuteWithFallback(fn func() error, fallback func() error) error {
	if !cb.tryAcquire() {
		if fallback != nil {
			return fallback()
		}
		return cb.openError()
	}

	start := time.Now()
	err := fn()
	cb.record(time.Since(start), err != nil)
	return err
}

// CircuitExecuteWithResult runs a value-returning fn through the breaker.
// When the call is not admitted the caller-supplied fallback is used; with
// no fallback the zero value and a circuit-open error are returned.
func CircuitExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	if !cb.tryAcquire() {
		if fallback != nil {
			return fallback()
		}
		var zero T
		return zero, cb.openError()
	}

	start := time.Now()
	result, err := fn()
	cb.record(time.Since(start), err != nil)
	return result, err
}

// BreakerRegistry maps dependency names to their circuit breakers.
type BreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for name, creating it with opts on first use.
func (r *BreakerRegistry) GetOrCreate(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, opts...)
	r.breakers[name] = cb
	return cb
}

// Get returns the breaker for name if it exists.
func (r *BreakerRegistry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// All returns every registered breaker, sorted by name for stable output.
func (r *BreakerRegistry) All() []*CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
