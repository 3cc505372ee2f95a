package retry

import (
	"math/rand/v2"
	"sync"
	"time"
)

// State is one of the three circuit-breaker states (spec §3.1).
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// CircuitBreakerStats holds admission/trip counters for observability.
type CircuitBreakerStats struct {
	Trips     int64
	Resets    int64
	Successes int64
	Failures  int64
}

// CircuitBreaker implements the closed/open/half-open state machine of spec §4.1,
// including progressive recovery while approaching ResetTime and probabilistic
// half-open admission.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	resetTime time.Duration

	state           State
	failureCount    int
	lastFailureTime time.Time
	stats           CircuitBreakerStats

	// now is overridable for deterministic tests.
	now func() time.Time
	// rand01 returns a float in [0,1); overridable for deterministic tests.
	rand01 func() float64
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures (while closed) and attempts recovery after resetTime.
func NewCircuitBreaker(threshold int, resetTime time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		resetTime: resetTime,
		state:     StateClosed,
		now:       time.Now,
		rand01:    rand.Float64,
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *CircuitBreaker) Stats() CircuitBreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// TimeToRetry returns the remaining duration before an open breaker performs
// its unconditional half-open transition. Zero if the breaker isn't open.
func (b *CircuitBreaker) TimeToRetry() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return 0
	}
	remaining := b.resetTime - b.now().Sub(b.lastFailureTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanExecute reports whether a request may proceed, applying the progressive
// recovery and half-open sampling rules of spec §4.1.
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return b.rand01() < 0.3
	case StateOpen:
		elapsed := b.now().Sub(b.lastFailureTime)
		if elapsed >= b.resetTime {
			b.state = StateHalfOpen
			return true
		}
		half := b.resetTime / 2
		if elapsed >= half {
			progress := float64(elapsed-half) / float64(b.resetTime-half)
			return b.rand01() < progress
		}
		return false
	default:
		return false
	}
}

// RecordSuccess closes the breaker (from half-open) and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.stats.Resets++
	}
	b.failureCount = 0
	b.stats.Successes++
}

// RecordFailure increments the failure counter and trips the breaker once the
// threshold is reached (closed) or re-opens it immediately (half-open).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Failures++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.threshold {
			b.state = StateOpen
			b.stats.Trips++
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.failureCount = b.threshold
		b.stats.Trips++
	case StateOpen:
		// already open; refresh last-failure time only
	}
}
