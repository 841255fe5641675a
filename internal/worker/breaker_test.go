package worker

import (
	"errors"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBreakerStartsClosed(t *testing.T) {
	b := NewCircuitBreaker(5, 30*time.Second, newFakeClock())

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected call allowed, got %v", err)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(5, 30*time.Second, clock)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		if b.State() != StateClosed {
			t.Fatalf("expected closed after %d failures, got %s", i+1, b.State())
		}
	}

	b.RecordFailure() // 5th consecutive failure
	if b.State() != StateOpen {
		t.Fatalf("expected open after 5 failures, got %s", b.State())
	}
	if b.Failures() != 5 {
		t.Errorf("expected failure counter 5, got %d", b.Failures())
	}

	// Calls inside the reset window fail immediately.
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerHalfOpenTrialSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, clock)

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	clock.Advance(30 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %s", b.State())
	}

	// One trial call is allowed through.
	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call allowed, got %v", err)
	}
	// A second concurrent call is rejected while the trial is in flight.
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected concurrent trial rejected, got %v", err)
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("expected closed after trial success, got %s", b.State())
	}
	if b.Failures() != 0 {
		t.Errorf("expected failure counter reset, got %d", b.Failures())
	}
}

func TestBreakerHalfOpenTrialFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, clock)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(30 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call allowed, got %v", err)
	}
	b.RecordFailure()

	if b.State() != StateOpen {
		t.Fatalf("expected reopened breaker, got %s", b.State())
	}

	// The reset timer restarted: calls are rejected again until it elapses.
	clock.Advance(29 * time.Second)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen before restarted timer elapses, got %v", err)
	}
	clock.Advance(1 * time.Second)
	if err := b.Allow(); err != nil {
		t.Errorf("expected trial allowed after restarted timer, got %v", err)
	}
}

func TestBreakerCancelledTrialReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(2, 30*time.Second, clock)

	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(30 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call allowed, got %v", err)
	}
	// The trial call was abandoned without an outcome.
	b.CancelTrial()

	if b.State() != StateHalfOpen {
		t.Fatalf("expected breaker to stay half-open, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("expected next call to take over the trial slot, got %v", err)
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("expected closed after the retried trial succeeds, got %s", b.State())
	}
}

func TestBreakerSuccessResetsRollingCounter(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second, newFakeClock())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	if b.Failures() != 0 {
		t.Errorf("expected counter reset on success, got %d", b.Failures())
	}

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Errorf("expected closed at 2/3 failures, got %s", b.State())
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 10*time.Second, clock)

	var transitions []string
	b.SetOnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	b.RecordFailure()
	clock.Advance(10 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial allowed, got %v", err)
	}
	b.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i, tr := range want {
		if transitions[i] != tr {
			t.Errorf("transition %d: expected %s, got %s", i, tr, transitions[i])
		}
	}
}
