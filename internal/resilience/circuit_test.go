package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// TS07: Circuit breaker opens after consecutive failures
func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	// Given: a circuit breaker tripping after 3 consecutive failures
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(3),
		WithRecoveryTimeout(1*time.Second),
	)

	// When: recording 3 failures
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error {
			return errors.New("error")
		})
	}

	// Then: circuit is open
	assert.Equal(t, StateOpen, cb.State())

	// And: requests are rejected with a distinguishable error
	err := cb.Execute(func() error {
		return nil // Would succeed if called
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.True(t, eserrors.IsCircuitOpen(err))
}

// TS08: Circuit breaker recovers through half-open trials
func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	// Given: an open circuit breaker needing 2 successes to close
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(2),
		WithRecoveryTimeout(50*time.Millisecond),
		WithSuccessThreshold(2),
	)

	// Trip the circuit
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return errors.New("error")
		})
	}
	require.Equal(t, StateOpen, cb.State())

	// When: waiting for the recovery timeout
	time.Sleep(60 * time.Millisecond)

	// Then: circuit is half-open and admits trial requests
	require.Equal(t, StateHalfOpen, cb.State())

	executed := 0
	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error {
			executed++
			return nil
		})
		assert.NoError(t, err)
	}

	// And: after enough successes the circuit closes
	assert.Equal(t, 2, executed)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReOpens(t *testing.T) {
	// Given: a circuit in half-open state
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(2),
		WithRecoveryTimeout(50*time.Millisecond),
	)

	// Trip and wait for half-open
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// When: the trial request fails
	_ = cb.Execute(func() error {
		return errors.New("still failing")
	})

	// Then: circuit reopens
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenCapsTrialCalls(t *testing.T) {
	// Given: a half-open circuit with a trial budget of 3
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithRecoveryTimeout(10*time.Millisecond),
		WithSuccessThreshold(3),
		WithHalfOpenMaxCalls(3),
	)
	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	// When: three trial calls are in flight
	release := make(chan struct{})
	started := make(chan struct{}, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	for i := 0; i < 3; i++ {
		<-started
	}

	// Then: a fourth call is rejected while the budget is consumed
	err := cb.Execute(func() error { return nil })
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	// And: once the trials succeed the circuit closes
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ErrorRateTripsAtVolume(t *testing.T) {
	// Given: a breaker tripping on 50% errors over at least 10 calls
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(100), // Keep the consecutive rule out of the way
		WithErrorRateThreshold(0.5),
		WithVolumeThreshold(10),
		WithRecoveryTimeout(1*time.Second),
	)

	// When: 10 calls with 6 failures, never more than 4 in a row
	outcomes := []bool{true, false, true, false, true, false, true, true, true, true}
	for _, fail := range outcomes {
		fail := fail
		_ = cb.Execute(func() error {
			if fail {
				return errors.New("error")
			}
			return nil
		})
	}

	// Then: the windowed error rate trips the circuit
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_NoTripBelowVolume(t *testing.T) {
	// Given: a breaker requiring 10 calls before rate rules apply
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(100),
		WithErrorRateThreshold(0.5),
		WithVolumeThreshold(10),
	)

	// When: only 5 calls, all failing
	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}

	// Then: circuit stays closed
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SlowCallRatioTrips(t *testing.T) {
	// Given: a breaker where calls over 5ms count as slow
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(100),
		WithErrorRateThreshold(0.99),
		WithSlowCallThreshold(5*time.Millisecond),
		WithSlowCallRatioThreshold(0.5),
		WithVolumeThreshold(4),
	)

	// When: 4 slow but successful calls
	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error {
			time.Sleep(10 * time.Millisecond)
			return nil
		})
	}

	// Then: the slow-call ratio trips the circuit
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	// Given: a circuit breaker with some failures (but not tripped)
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(5),
		WithRecoveryTimeout(1*time.Second),
	)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("error") })
	}
	require.Equal(t, 3, cb.ConsecutiveFailures())

	// When: a success occurs
	err := cb.Execute(func() error { return nil })

	// Then: the consecutive count resets
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.ConsecutiveFailures())
}

func TestCircuitBreaker_FallbackUsedWhenOpen(t *testing.T) {
	// Given: an open circuit breaker
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithRecoveryTimeout(1*time.Second),
	)
	_ = cb.Execute(func() error { return errors.New("error") })

	// When: executing with fallback
	fallbackCalled := false
	result, err := CircuitExecuteWithResult(cb,
		func() (string, error) {
			return "primary", nil
		},
		func() (string, error) {
			fallbackCalled = true
			return "fallback", nil
		},
	)

	// Then: fallback is used
	assert.NoError(t, err)
	assert.True(t, fallbackCalled)
	assert.Equal(t, "fallback", result)
}

func TestCircuitBreaker_NoFallbackReturnsCircuitOpen(t *testing.T) {
	// Given: an open circuit breaker
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithRecoveryTimeout(1*time.Second),
	)
	_ = cb.Execute(func() error { return errors.New("error") })

	// When: executing without fallback
	result, err := CircuitExecuteWithResult[int](cb,
		func() (int, error) { return 7, nil },
		nil,
	)

	// Then: the zero value and a circuit-open error come back
	assert.Error(t, err)
	assert.Equal(t, 0, result)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, eserrors.ErrCodeCircuitOpen, eserrors.GetCode(err))
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	// Given: a circuit breaker with generous thresholds
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(100),
		WithErrorRateThreshold(0.99),
		WithVolumeThreshold(1000),
		WithRecoveryTimeout(1*time.Second),
	)

	// When: concurrent requests
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var failCount atomic.Int32

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := cb.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return errors.New("error")
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	// Then: all requests complete without panic
	assert.Equal(t, int32(20), successCount.Load()+failCount.Load())
}

func TestCircuitBreaker_Allow_WhenClosed(t *testing.T) {
	cb := NewCircuitBreaker("test")

	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_Allow_WhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(1),
		WithRecoveryTimeout(1*time.Second),
	)

	// Trip the circuit
	_ = cb.Execute(func() error { return errors.New("error") })

	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_RecordFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", WithFailureThreshold(3))

	// When: recording failures manually
	cb.RecordFailure()
	cb.RecordFailure()

	// Then: failure count increases
	assert.Equal(t, 2, cb.ConsecutiveFailures())
	assert.Equal(t, StateClosed, cb.State())

	// And: one more trips it
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_RecordSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", WithFailureThreshold(5))

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, 2, cb.ConsecutiveFailures())

	// When: recording success
	cb.RecordSuccess()

	// Then: consecutive failures reset
	assert.Equal(t, 0, cb.ConsecutiveFailures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("serper", WithFailureThreshold(10))

	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errors.New("error") })

	stats := cb.Stats()
	assert.Equal(t, "serper", stats.Name)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 2, stats.Calls)
	assert.Equal(t, 1, stats.Failures)
	assert.InDelta(t, 0.5, stats.ErrorRate, 0.001)
}

func TestNewCircuitBreaker_DefaultValues(t *testing.T) {
	cb := NewCircuitBreaker("test-circuit")

	assert.Equal(t, "test-circuit", cb.Name())
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 0.5, cb.errorRateThreshold)
	assert.Equal(t, 10, cb.volumeThreshold)
	assert.Equal(t, 30*time.Second, cb.recoveryTimeout)
	assert.Equal(t, 2, cb.successThreshold)
	assert.Equal(t, 3, cb.halfOpenMaxCalls)
	assert.Equal(t, StateClosed, cb.State())
}

func TestNewCircuitBreaker_TrialBudgetCoversSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test",
		WithSuccessThreshold(5),
		WithHalfOpenMaxCalls(2),
	)

	assert.Equal(t, 5, cb.halfOpenMaxCalls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}

func TestErrCircuitOpen_Error(t *testing.T) {
	assert.Equal(t, "circuit breaker is open", ErrCircuitOpen.Error())
}

func TestBreakerRegistry_GetOrCreate(t *testing.T) {
	// Given: an empty registry
	reg := NewBreakerRegistry()

	// When: fetching the same name twice
	cb1 := reg.GetOrCreate("firecrawl", WithFailureThreshold(3))
	cb2 := reg.GetOrCreate("firecrawl", WithFailureThreshold(99))

	// Then: the same breaker instance is returned
	assert.Same(t, cb1, cb2)
	assert.Equal(t, 3, cb1.failureThreshold)
}

func TestBreakerRegistry_All_SortedByName(t *testing.T) {
	reg := NewBreakerRegistry()
	reg.GetOrCreate("serper")
	reg.GetOrCreate("firecrawl")
	reg.GetOrCreate("local")

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "firecrawl", all[0].Name())
	assert.Equal(t, "local", all[1].Name())
	assert.Equal(t, "serper", all[2].Name())
}

func TestBreakerRegistry_Get_Missing(t *testing.T) {
	reg := NewBreakerRegistry()

	_, ok := reg.Get("nope")
	assert.False(t, ok)
}
