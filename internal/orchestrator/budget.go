package orchestrator

import (
	"sync"
)

// BudgetStatus represents the current state of budget consumption.
type BudgetStatus int

const (
	// BudgetOK indicates usage is below the warning threshold (<80%).
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates usage is between warning and exhaustion (80-99%).
	BudgetWarning
	// BudgetExhausted indicates the budget is fully consumed (>=100%).
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the default fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// BudgetTracker monitors cost-unit consumption against a configured budget.
// Cost units are the opaque per-task estimates supplied by the caller; a
// task's estimate is charged when the task completes or fails.
type BudgetTracker struct {
	// budget is the maximum allowed cost units. Zero means unlimited.
	budget float64
	// used is the current consumption.
	used float64
	// warningThreshold is the fraction (0.0-1.0) at which warnings begin.
	warningThreshold float64
	// warned indicates a warning has already been reported.
	warned bool
	// mu protects mutable state.
	mu sync.RWMutex
}

// NewBudgetTracker creates a tracker with the specified cost-unit budget.
func NewBudgetTracker(budget float64) *BudgetTracker {
	return &BudgetTracker{
		budget:           budget,
		warningThreshold: DefaultWarningThreshold,
	}
}

// Charge adds the specified cost units to the usage counter. It returns
// true the first time usage crosses the warning threshold, so the caller
// can report the warning exactly once.
func (t *BudgetTracker) Charge(units float64) (crossedWarning bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used += units
	if t.budget <= 0 || t.warned {
		return false
	}
	if t.used/t.budget >= t.warningThreshold {
		t.warned = true
		return true
	}
	return false
}

// Check returns the current budget status based on usage fraction.
func (t *BudgetTracker) Check() BudgetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.budget <= 0 {
		return BudgetOK // no budget limit set
	}

	fraction := t.used / t.budget
	if fraction >= 1.0 {
		return BudgetExhausted
	}
	if fraction >= t.warningThreshold {
		return BudgetWarning
	}
	return BudgetOK
}

// CanStartNew returns true if new tasks may be dispatched.
// In-progress tasks are always allowed to finish naturally.
func (t *BudgetTracker) CanStartNew() bool {
	return t.Check() != BudgetExhausted
}

// Usage returns used units, the budget, and the usage fraction (0.0-1.0).
func (t *BudgetTracker) Usage() (used, budget, fraction float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	used = t.used
	budget = t.budget
	if budget > 0 {
		fraction = used / budget
	}
	return used, budget, fraction
}
