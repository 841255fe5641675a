package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bmcgauley/PM-Agents-sub001/internal/aggregate"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

func TestClassifyMergeConflictEscalates(t *testing.T) {
	err := &aggregate.MergeConflictError{Path: "main.go", TaskIDs: []string{"a", "b"}}
	if got := Classify(err); got != ActionEscalate {
		t.Errorf("expected escalate, got %s", got)
	}
}

func TestClassifyRunDeadlineEscalates(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != ActionEscalate {
		t.Errorf("expected escalate for a run deadline, got %s", got)
	}
}

func TestClassifyTaskTimeoutRetries(t *testing.T) {
	err := &worker.TimeoutError{TaskID: "t", Capability: "lint", Attempt: 1, Timeout: time.Second}
	if got := Classify(err); got != ActionRetry {
		t.Errorf("expected retry for a single call timeout, got %s", got)
	}
}

func TestClassifyExhaustedRetriesSkips(t *testing.T) {
	err := &worker.RetriesExhaustedError{
		TaskID:   "t",
		Attempts: 3,
		Last:     &worker.TimeoutError{TaskID: "t", Capability: "lint", Attempt: 3, Timeout: time.Second},
	}
	if got := Classify(err); got != ActionSkip {
		t.Errorf("expected skip after exhausted retries, got %s", got)
	}
}

func TestClassifyCircuitOpenSkips(t *testing.T) {
	err := errors.Join(worker.ErrCircuitOpen)
	if got := Classify(err); got != ActionSkip {
		t.Errorf("expected skip for an open circuit, got %s", got)
	}
}

func TestCategorizeUnwrapsRetryWrapper(t *testing.T) {
	err := &worker.RetriesExhaustedError{
		TaskID:   "t",
		Attempts: 3,
		Last:     &worker.TimeoutError{TaskID: "t", Capability: "lint", Attempt: 3, Timeout: time.Second},
	}
	if got := Categorize(err); got != models.IssueTimeout {
		t.Errorf("expected timeout category from the underlying cause, got %s", got)
	}
}

func TestCategorizeCircuitOpen(t *testing.T) {
	if got := Categorize(worker.ErrCircuitOpen); got != models.IssueResourceExhausted {
		t.Errorf("expected resource-exhausted, got %s", got)
	}
}

func TestCategorizeInvalidResult(t *testing.T) {
	err := &worker.InvalidResultError{TaskID: "t", Reason: "missing deliverable"}
	if got := Categorize(err); got != models.IssueInvalidResult {
		t.Errorf("expected invalid-result, got %s", got)
	}
}

func TestIssueForEscalationIsCritical(t *testing.T) {
	err := &aggregate.MergeConflictError{Path: "x", TaskIDs: []string{"a", "b"}}
	issue := IssueFor("", err, ActionEscalate)

	if issue.Category != models.IssueMergeConflict {
		t.Errorf("expected merge-conflict category, got %s", issue.Category)
	}
	if issue.Severity != models.SeverityCritical {
		t.Errorf("expected critical severity, got %s", issue.Severity)
	}
	if issue.Resolution != "escalate" {
		t.Errorf("expected escalate resolution, got %q", issue.Resolution)
	}
}

func TestDependencyIssue(t *testing.T) {
	issue := DependencyIssue("child", "parent")

	if issue.Category != models.IssueDependency {
		t.Errorf("expected dependency category, got %s", issue.Category)
	}
	if issue.TaskID != "child" {
		t.Errorf("expected child as originating task, got %q", issue.TaskID)
	}
	if issue.Severity != models.SeverityWarning {
		t.Errorf("expected warning severity, got %s", issue.Severity)
	}
}
