package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bmcgauley/PM-Agents-sub001/internal/graph"
	"github.com/bmcgauley/PM-Agents-sub001/internal/orchestrator/policy"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// fastPolicy keeps retry waits short enough for tests.
func fastPolicy() *policy.Config {
	cfg := policy.Default()
	cfg.Retry.BackoffInitial = time.Millisecond
	cfg.Retry.BackoffMax = 5 * time.Millisecond
	cfg.Timeout.Base = 2 * time.Second
	return cfg
}

func newTask(id, capability string, deps ...string) *models.Task {
	return &models.Task{
		ID:            id,
		Description:   "test task " + id,
		Capability:    capability,
		DependsOn:     deps,
		Priority:      models.PriorityMedium,
		EstimatedCost: 1,
	}
}

// orderRecorder tracks start/finish order of tasks across goroutines.
type orderRecorder struct {
	mu     sync.Mutex
	events []string
}

func (o *orderRecorder) record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *orderRecorder) indexOf(event string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.events {
		if e == event {
			return i
		}
	}
	return -1
}

func successWorker(rec *orderRecorder, content string) worker.WorkerFunc {
	return func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
		if rec != nil {
			rec.record("start:" + req.TaskID)
		}
		time.Sleep(2 * time.Millisecond)
		result := &models.TaskResult{Status: models.ResultSuccess, ValidationPassed: true}
		result.Deliverables = append(result.Deliverables, models.Deliverable{
			TaskID:     req.TaskID,
			Path:       req.TaskID + ".out",
			Content:    []byte(content),
			Validation: models.ValidationPassed,
		})
		if rec != nil {
			rec.record("done:" + req.TaskID)
		}
		return result, nil
	}
}

func TestExecuteDiamondOrdering(t *testing.T) {
	rec := &orderRecorder{}
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(rec, "ok"))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{
			newTask("A", "build"),
			newTask("B", "build"),
			newTask("C", "build", "A", "B"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunCompleted {
		t.Errorf("expected completed run, got %s (issues: %v)", result.Status, result.Issues)
	}
	if result.Completed != 3 {
		t.Errorf("expected 3 completed, got %d", result.Completed)
	}
	if len(result.CompletedTaskIDs) != 3 || result.CompletedTaskIDs[0] != "A" {
		t.Errorf("expected sorted completed ids, got %v", result.CompletedTaskIDs)
	}
	if len(result.Deliverables) != 3 {
		t.Errorf("expected 3 deliverables, got %d", len(result.Deliverables))
	}

	// C must start only after both A and B finished.
	cStart := rec.indexOf("start:C")
	if cStart < rec.indexOf("done:A") || cStart < rec.indexOf("done:B") {
		t.Errorf("expected C to start after A and B completed, order: %v", rec.events)
	}
	if result.Usage.WorkerCalls != 3 {
		t.Errorf("expected 3 worker calls, got %d", result.Usage.WorkerCalls)
	}
}

func TestExecuteCycleReturnsError(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))

	orch := New(registry, WithPolicy(fastPolicy()))
	_, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{
			newTask("A", "build", "B"),
			newTask("B", "build", "A"),
		},
	})

	var cycle *graph.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestExecuteDependencyFailureSkipsDependents(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))
	registry.Register("flaky", worker.WorkerFunc(func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
		return nil, fmt.Errorf("worker crashed")
	}))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{
			newTask("A", "flaky"),
			newTask("B", "build", "A"),
			newTask("C", "build"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunPartial {
		t.Errorf("expected partial run, got %s", result.Status)
	}
	if result.Failed != 1 || result.Skipped != 1 || result.Completed != 1 {
		t.Errorf("expected 1 failed / 1 skipped / 1 completed, got %d/%d/%d",
			result.Failed, result.Skipped, result.Completed)
	}

	var depIssue bool
	for _, issue := range result.Issues {
		if issue.Category == models.IssueDependency && issue.TaskID == "B" {
			depIssue = true
		}
	}
	if !depIssue {
		t.Errorf("expected a dependency issue for B, got %v", result.Issues)
	}
}

func TestExecuteLowPrioritySkipIsSilent(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("flaky", worker.WorkerFunc(func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
		return nil, fmt.Errorf("worker crashed")
	}))

	cfg := fastPolicy()
	cfg.Escalation.PriorityFloor = models.PriorityMedium

	low := newTask("B", "flaky", "A")
	low.Priority = models.PriorityLow

	orch := New(registry, WithPolicy(cfg))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{newTask("A", "flaky"), low},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Skipped != 1 {
		t.Errorf("expected B skipped, got %d skipped", result.Skipped)
	}
	for _, issue := range result.Issues {
		if issue.Category == models.IssueDependency {
			t.Errorf("expected no dependency issue below the priority floor, got %v", issue)
		}
	}
}

func TestExecuteMergeConflictFailsRun(t *testing.T) {
	registry := worker.NewRegistry()
	conflicting := func(content string) worker.WorkerFunc {
		return func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
			return &models.TaskResult{
				Status:           models.ResultSuccess,
				ValidationPassed: true,
				Deliverables: []models.Deliverable{{
					TaskID:  req.TaskID,
					Path:    "shared.txt",
					Content: []byte(content),
				}},
			}, nil
		}
	}
	registry.Register("left", conflicting("version one"))
	registry.Register("right", conflicting("version two"))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{newTask("A", "left"), newTask("B", "right")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunFailed {
		t.Errorf("expected failed run on merge conflict, got %s", result.Status)
	}
	var conflictIssue bool
	for _, issue := range result.Issues {
		if issue.Category == models.IssueMergeConflict && issue.Resolution == "escalate" {
			conflictIssue = true
		}
	}
	if !conflictIssue {
		t.Errorf("expected an escalated merge-conflict issue, got %v", result.Issues)
	}
	if len(result.Deliverables) != 0 {
		t.Errorf("expected conflicting path excluded, got %v", result.Deliverables)
	}
}

func TestExecuteResourceBudgetAborts(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("fast", successWorker(nil, "ok"))
	registry.Register("slow", worker.WorkerFunc(func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
		select {
		case <-time.After(10 * time.Second):
			return &models.TaskResult{Status: models.ResultSuccess, ValidationPassed: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{
			newTask("quick", "fast"),
			newTask("stuck", "slow"),
			newTask("later", "fast", "quick"),
		},
		ResourceBudget: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunFailed {
		t.Errorf("expected failed run after budget abort, got %s", result.Status)
	}

	var exhausted bool
	for _, issue := range result.Issues {
		if issue.Category == models.IssueResourceExhausted && issue.Severity == models.SeverityCritical {
			exhausted = true
		}
	}
	if !exhausted {
		t.Errorf("expected a resource-exhausted issue, got %v", result.Issues)
	}

	// The sibling that finished in time keeps its deliverable.
	var quickKept bool
	for _, d := range result.Deliverables {
		if d.TaskID == "quick" {
			quickKept = true
		}
	}
	if !quickKept {
		t.Errorf("expected quick's deliverable in the partial result, got %v", result.Deliverables)
	}
}

func TestExecuteBlockingGateForcesFailure(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks:   []*models.Task{newTask("A", "build")},
		Metrics: map[string]float64{"coverage": 40},
		QualityGates: []models.QualityGate{
			{Name: "coverage", Type: models.GateCoverageThreshold, Threshold: 80, Blocking: true},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunFailed {
		t.Errorf("expected blocking gate to fail the run, got %s", result.Status)
	}
	if len(result.GateOutcomes) != 1 || result.GateOutcomes[0].Passed {
		t.Errorf("expected a failed gate outcome, got %v", result.GateOutcomes)
	}
}

func TestExecuteNonBlockingGateLeavesCompleted(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks:   []*models.Task{newTask("A", "build")},
		Metrics: map[string]float64{"coverage": 40},
		QualityGates: []models.QualityGate{
			{Name: "coverage", Type: models.GateCoverageThreshold, Threshold: 80, Blocking: false},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.RunCompleted {
		t.Errorf("expected an advisory gate not to change status, got %s", result.Status)
	}
	if len(result.GateOutcomes) != 1 || result.GateOutcomes[0].Passed {
		t.Errorf("expected the gate recorded as failed, got %v", result.GateOutcomes)
	}
}

func TestExecuteCostBudgetSkipsLaterLevels(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))

	expensive := newTask("A", "build")
	expensive.EstimatedCost = 10

	orch := New(registry, WithPolicy(fastPolicy()))
	result, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks:      []*models.Task{expensive, newTask("B", "build", "A")},
		CostBudget: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Completed != 1 || result.Skipped != 1 {
		t.Errorf("expected A completed and B skipped, got %d completed / %d skipped",
			result.Completed, result.Skipped)
	}
	if result.Status != models.RunPartial {
		t.Errorf("expected partial run, got %s", result.Status)
	}
}

func TestExecuteEmitsLifecycleEvents(t *testing.T) {
	registry := worker.NewRegistry()
	registry.Register("build", successWorker(nil, "ok"))

	orch := New(registry, WithPolicy(fastPolicy()))

	seen := make(map[EventType]bool)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range orch.Events() {
			seen[ev.Type] = true
			if ev.Type == EventRunFinished {
				return
			}
		}
	}()

	if _, err := orch.Execute(context.Background(), ExecuteRequest{
		Tasks: []*models.Task{newTask("A", "build")},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wg.Wait()

	for _, want := range []EventType{EventRunStarted, EventLevelStarted, EventTaskStarted, EventTaskCompleted, EventRunFinished} {
		if !seen[want] {
			t.Errorf("expected %s event", want)
		}
	}
}
