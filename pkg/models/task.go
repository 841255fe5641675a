package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is being executed by a worker.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed after exhausting retries.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was not attempted, usually because
	// a dependency failed or the run was aborted first.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Priority represents the scheduling priority of a task.
type Priority string

const (
	// PriorityCritical marks tasks whose failure should never be silent.
	PriorityCritical Priority = "critical"
	// PriorityHigh marks important tasks.
	PriorityHigh Priority = "high"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityLow marks optional tasks.
	PriorityLow Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns a numeric rank for comparison; higher means more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// DeliverableSpec describes an artifact a task is expected to produce.
type DeliverableSpec struct {
	// Path is the artifact path the worker must write.
	Path string `json:"path" yaml:"path"`
	// Type is a free-form artifact type (e.g. "source", "doc", "report").
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// Required indicates the task result is structurally invalid without it.
	Required bool `json:"required" yaml:"required"`
}

// Task represents a unit of work in a task graph.
type Task struct {
	// ID is the unique identifier for this task within its graph.
	ID string `json:"id"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Capability is the worker type required (e.g. "code-generator").
	Capability string `json:"capability"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Priority is the scheduling priority of the task.
	Priority Priority `json:"priority"`
	// EstimatedCost is an opaque numeric budget estimate for the task.
	EstimatedCost float64 `json:"estimated_cost,omitempty"`
	// DeliverableSpecs lists the artifacts the task is expected to produce.
	DeliverableSpecs []DeliverableSpec `json:"deliverable_specs,omitempty"`
	// ValidationCriteria lists acceptance predicates for the task's output.
	ValidationCriteria []string `json:"validation_criteria,omitempty"`
	// Status is the current state of the task. Transitions are owned
	// exclusively by the scheduler once execution starts.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task entered running, if it did.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it did.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// SkipReason records why the task was skipped, if it was.
	SkipReason string `json:"skip_reason,omitempty"`
}
