package worker

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned when a capability's circuit breaker is open
// and the call was rejected without contacting the worker.
var ErrCircuitOpen = errors.New("circuit open")

// ErrUnknownCapability is returned when no worker is registered for a
// requested capability.
var ErrUnknownCapability = errors.New("unknown capability")

// TimeoutError indicates a worker call exceeded its per-attempt deadline.
type TimeoutError struct {
	// TaskID is the task being attempted.
	TaskID string
	// Capability is the worker type that timed out.
	Capability string
	// Attempt is the 1-indexed attempt number.
	Attempt int
	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: %s worker timed out after %v (attempt %d)",
		e.TaskID, e.Capability, e.Timeout, e.Attempt)
}

// InvalidResultError indicates a worker returned structurally invalid
// output: a failure status, a malformed result, or a missing required
// deliverable. It is retryable.
type InvalidResultError struct {
	// TaskID is the task being attempted.
	TaskID string
	// Reason explains what was wrong with the result.
	Reason string
}

func (e *InvalidResultError) Error() string {
	return fmt.Sprintf("task %s: invalid worker result: %s", e.TaskID, e.Reason)
}

// RetriesExhaustedError wraps the last attempt error after the proxy has
// used up its retry budget for a task.
type RetriesExhaustedError struct {
	// TaskID is the task that failed.
	TaskID string
	// Attempts is the number of attempts made.
	Attempts int
	// Last is the error from the final attempt.
	Last error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("task %s: failed after %d attempts: %v", e.TaskID, e.Attempts, e.Last)
}

// Unwrap exposes the final attempt error for errors.Is/As.
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}
