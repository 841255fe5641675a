package models

import "time"

// ValidationStatus represents the validation state of a single deliverable.
type ValidationStatus string

const (
	// ValidationPassed indicates the deliverable met its criteria.
	ValidationPassed ValidationStatus = "passed"
	// ValidationFailed indicates the deliverable did not meet its criteria.
	ValidationFailed ValidationStatus = "failed"
	// ValidationSkipped indicates no criteria were evaluated.
	ValidationSkipped ValidationStatus = "skipped"
)

// Deliverable is an artifact produced by a task.
type Deliverable struct {
	// TaskID is the task that produced the artifact.
	TaskID string `json:"task_id"`
	// Path is the artifact path.
	Path string `json:"path"`
	// Type is a free-form artifact type.
	Type string `json:"type,omitempty"`
	// Content is the artifact content.
	Content []byte `json:"content,omitempty"`
	// Validation is the validation state of the deliverable.
	Validation ValidationStatus `json:"validation"`
}

// ResultStatus represents the status of a single worker call.
type ResultStatus string

const (
	// ResultSuccess indicates the worker produced a usable result.
	ResultSuccess ResultStatus = "success"
	// ResultFailure indicates the worker could not complete the task.
	ResultFailure ResultStatus = "failure"
)

// TaskRequest is the outbound call shape for one task attempt.
// The core treats the worker as an opaque capability endpoint.
type TaskRequest struct {
	// TaskID identifies the task being attempted.
	TaskID string `json:"task_id"`
	// Description is the task description.
	Description string `json:"description,omitempty"`
	// Capability is the worker type being addressed.
	Capability string `json:"capability"`
	// Context carries caller-supplied context data for the worker.
	Context map[string]string `json:"context,omitempty"`
	// DeliverableSpecs lists the artifacts the worker must produce.
	DeliverableSpecs []DeliverableSpec `json:"deliverable_specs,omitempty"`
	// ValidationCriteria lists acceptance predicates for the output.
	ValidationCriteria []string `json:"validation_criteria,omitempty"`
}

// TaskResult is the inbound response shape for one task attempt.
type TaskResult struct {
	// Status is success or failure.
	Status ResultStatus `json:"status"`
	// Deliverables are the artifacts the worker produced.
	Deliverables []Deliverable `json:"deliverables,omitempty"`
	// ValidationPassed reports whether the worker's own checks passed.
	ValidationPassed bool `json:"validation_passed"`
	// ErrorDetail explains a failure status.
	ErrorDetail string `json:"error_detail,omitempty"`
}

// IssueCategory classifies a run issue.
type IssueCategory string

const (
	// IssueTimeout indicates a worker call exceeded its deadline.
	IssueTimeout IssueCategory = "timeout"
	// IssueInvalidResult indicates a worker returned structurally invalid output.
	IssueInvalidResult IssueCategory = "invalid-result"
	// IssueDependency indicates a task was skipped because a dependency failed.
	IssueDependency IssueCategory = "dependency"
	// IssueResourceExhausted indicates the run budget was exhausted or a
	// capability's circuit opened.
	IssueResourceExhausted IssueCategory = "resource-exhausted"
	// IssueMergeConflict indicates two tasks produced conflicting artifacts.
	IssueMergeConflict IssueCategory = "merge-conflict"
)

// Severity grades an issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Issue describes a problem encountered during a run together with the
// recovery action that was chosen for it.
type Issue struct {
	// Category classifies the issue.
	Category IssueCategory `json:"category"`
	// Severity grades the issue.
	Severity Severity `json:"severity"`
	// TaskID is the originating task, if any.
	TaskID string `json:"task_id,omitempty"`
	// Description explains what happened.
	Description string `json:"description"`
	// Resolution records the recovery action taken (retry, skip, escalate).
	Resolution string `json:"resolution,omitempty"`
}

// RunStatus is the overall outcome of a graph execution.
type RunStatus string

const (
	// RunCompleted indicates every task completed and all blocking gates passed.
	RunCompleted RunStatus = "completed"
	// RunPartial indicates the run finished but some tasks failed or were skipped.
	RunPartial RunStatus = "partial"
	// RunFailed indicates the run was aborted or a blocking gate failed.
	RunFailed RunStatus = "failed"
)

// ResourceUsage summarizes what a run consumed.
type ResourceUsage struct {
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
	// CostUnitsEstimated is the sum of estimated cost over all tasks.
	CostUnitsEstimated float64 `json:"cost_units_estimated"`
	// CostUnitsCompleted is the sum of estimated cost over completed tasks.
	CostUnitsCompleted float64 `json:"cost_units_completed"`
	// WorkerCalls is the total number of worker call attempts.
	WorkerCalls int `json:"worker_calls"`
}

// ExecutionResult is the run-level record produced by one graph execution.
type ExecutionResult struct {
	// RunID identifies the execution.
	RunID string `json:"run_id"`
	// Status is the overall outcome.
	Status RunStatus `json:"status"`
	// Completed, Failed and Skipped count terminal task states.
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	// CompletedTaskIDs lists the tasks that completed, sorted by ID.
	CompletedTaskIDs []string `json:"completed_task_ids,omitempty"`
	// Deliverables are the aggregated artifacts from completed tasks.
	Deliverables []Deliverable `json:"deliverables,omitempty"`
	// GateOutcomes are the quality-gate results.
	GateOutcomes []GateOutcome `json:"gate_outcomes,omitempty"`
	// Issues itemizes everything that went wrong, with resolutions.
	Issues []Issue `json:"issues,omitempty"`
	// Usage summarizes resource consumption.
	Usage ResourceUsage `json:"usage"`
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
