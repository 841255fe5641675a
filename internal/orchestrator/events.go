// Package orchestrator coordinates graph execution across the worker pool
// and reports progress, issues and final results back to the caller.
package orchestrator

import (
	"time"
)

// EventType represents the type of run event.
type EventType string

const (
	// EventRunStarted indicates a graph execution has begun.
	EventRunStarted EventType = "run_started"
	// EventLevelStarted indicates dispatch of a new level has begun.
	EventLevelStarted EventType = "level_started"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed after retries.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped.
	EventTaskSkipped EventType = "task_skipped"
	// EventProgress provides periodic updates on run execution.
	EventProgress EventType = "progress"
	// EventAnomaly indicates a task ran far longer than its estimate.
	EventAnomaly EventType = "anomaly"
	// EventBudgetWarning indicates cost usage crossed the warning threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventGateWarning indicates a quality-gate configuration problem.
	EventGateWarning EventType = "gate_warning"
	// EventPaused indicates dispatch is paused.
	EventPaused EventType = "paused"
	// EventResumed indicates dispatch resumed after a pause.
	EventResumed EventType = "resumed"
	// EventRunFinished indicates the execution reached a final status.
	EventRunFinished EventType = "run_finished"
)

// Event represents a run event emitted by the orchestrator.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// Level is the graph level the event relates to, if applicable.
	Level int
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Percentage is the completion percentage (for progress events).
	Percentage int
	// InProgress, Pending and Blocked count task states (for progress events).
	InProgress int
	Pending    int
	Blocked    int
	// CostUnits is the estimated cost consumed so far (for progress events).
	CostUnits float64
	// Elapsed is the run duration so far (for progress events).
	Elapsed time.Duration
}
