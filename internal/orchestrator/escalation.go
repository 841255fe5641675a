package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmcgauley/PM-Agents-sub001/internal/aggregate"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Action is the recovery decision for a failure.
type Action int

const (
	// ActionRetry indicates the failure is transient and worth another
	// attempt. The worker proxy performs these retries itself; by the
	// time a failure reaches the scheduler the retry budget is spent.
	ActionRetry Action = iota
	// ActionSkip indicates the task is abandoned and its dependents are
	// skipped, but the rest of the run continues.
	ActionSkip
	// ActionEscalate indicates the run cannot safely continue and must
	// return a partial result to the caller.
	ActionEscalate
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionSkip:
		return "skip"
	case ActionEscalate:
		return "escalate"
	default:
		return "unknown"
	}
}

// Classify maps a failure to a recovery action. Merge conflicts and
// budget exhaustion escalate; everything else abandons the one task and
// lets the run continue.
func Classify(err error) Action {
	var conflict *aggregate.MergeConflictError
	switch {
	case errors.As(err, &conflict):
		return ActionEscalate
	case errors.Is(err, context.DeadlineExceeded) && !isTaskTimeout(err):
		// Run-level deadline, not a single worker call timing out.
		return ActionEscalate
	case errors.Is(err, worker.ErrCircuitOpen):
		return ActionSkip
	case isRetryable(err):
		return ActionRetry
	default:
		return ActionSkip
	}
}

// Categorize maps a failure to an issue category. Retry wrappers are
// unwrapped so the category reflects the underlying cause.
func Categorize(err error) models.IssueCategory {
	var exhausted *worker.RetriesExhaustedError
	if errors.As(err, &exhausted) && exhausted.Last != nil {
		err = exhausted.Last
	}

	var (
		timeout  *worker.TimeoutError
		invalid  *worker.InvalidResultError
		conflict *aggregate.MergeConflictError
	)
	switch {
	case errors.As(err, &timeout):
		return models.IssueTimeout
	case errors.As(err, &invalid):
		return models.IssueInvalidResult
	case errors.As(err, &conflict):
		return models.IssueMergeConflict
	case errors.Is(err, worker.ErrCircuitOpen):
		return models.IssueResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return models.IssueResourceExhausted
	default:
		return models.IssueInvalidResult
	}
}

// IssueFor builds the issue record for a failed task.
func IssueFor(taskID string, err error, action Action) models.Issue {
	severity := models.SeverityError
	if action == ActionEscalate {
		severity = models.SeverityCritical
	}
	return models.Issue{
		Category:    Categorize(err),
		Severity:    severity,
		TaskID:      taskID,
		Description: err.Error(),
		Resolution:  action.String(),
	}
}

// DependencyIssue builds the issue record for a task skipped because a
// dependency failed.
func DependencyIssue(taskID, dependencyID string) models.Issue {
	return models.Issue{
		Category:    models.IssueDependency,
		Severity:    models.SeverityWarning,
		TaskID:      taskID,
		Description: fmt.Sprintf("dependency %s failed", dependencyID),
		Resolution:  ActionSkip.String(),
	}
}

// isRetryable reports whether the error is a transient per-call failure
// that the proxy's retry loop recovers from.
func isRetryable(err error) bool {
	var (
		timeout *worker.TimeoutError
		invalid *worker.InvalidResultError
	)
	return errors.As(err, &timeout) || errors.As(err, &invalid)
}

// isTaskTimeout reports whether a deadline error came from a single
// worker call rather than the run budget.
func isTaskTimeout(err error) bool {
	var timeout *worker.TimeoutError
	var exhausted *worker.RetriesExhaustedError
	return errors.As(err, &timeout) || errors.As(err, &exhausted)
}
