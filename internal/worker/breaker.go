package worker

import (
	"sync"
	"time"
)

// Clock abstracts time for breaker tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed allows all calls through.
	StateClosed BreakerState = iota
	// StateOpen rejects all calls until the reset timeout elapses.
	StateOpen
	// StateHalfOpen allows a single trial call.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s BreakerState) String() string {
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

// CircuitBreaker protects a capability from a persistently broken worker.
// Every call failure increments a rolling counter; once the counter reaches
// the failure threshold the breaker opens and calls fail immediately until
// the reset timeout elapses, at which point one trial call is allowed.
// A successful trial closes the breaker and resets the counter; a failed
// trial reopens it and restarts the timer.
//
// The breaker is an explicit state machine with an injected clock so
// transitions are unit-testable without real delays.
type CircuitBreaker struct {
	mu sync.Mutex

	state         BreakerState
	failures      int
	threshold     int
	resetTimeout  time.Duration
	lastFailure   time.Time
	trialInFlight bool
	clock         Clock

	// onStateChange is an optional transition hook.
	onStateChange func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker. A nil clock uses system time.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration, clock Clock) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &CircuitBreaker{
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        clock,
	}
}

// SetOnStateChange sets a hook invoked on every state transition.
func (b *CircuitBreaker) SetOnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen when
// the breaker is open and the reset timeout has not elapsed, and when a
// half-open trial call is already in flight.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess records a successful call. In half-open state it closes the
// breaker and resets the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		b.failures = 0
		b.transitionLocked(StateClosed)
	case StateClosed:
		b.failures = 0
	}
}

// CancelTrial releases a half-open trial slot when the call was abandoned
// before producing an outcome, so a later call can run the trial instead.
func (b *CircuitBreaker) CancelTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// RecordFailure records a failed call. It increments the rolling counter and
// opens the breaker when the threshold is reached; a half-open failure
// reopens it and restarts the reset timer.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.clock.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.threshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.trialInFlight = false
		b.transitionLocked(StateOpen)
	}
}

// State returns the current breaker state, applying the open→half-open
// transition if the reset timeout has elapsed.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.clock.Now().Sub(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Failures returns the current rolling failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transitionLocked changes state and fires the hook. Caller must hold the lock.
func (b *CircuitBreaker) transitionLocked(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
