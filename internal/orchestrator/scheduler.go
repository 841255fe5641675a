package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bmcgauley/PM-Agents-sub001/internal/aggregate"
	"github.com/bmcgauley/PM-Agents-sub001/internal/graph"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// runState carries the mutable state of one graph execution. The level
// loop is single-threaded control logic; tasks inside a level run
// concurrently and report back through the mutex-guarded sections here.
type runState struct {
	orch       *Orchestrator
	graph      *graph.Graph
	req        ExecuteRequest
	pool       *worker.Pool
	monitor    *Monitor
	budget     *BudgetTracker
	aggregator *aggregate.Aggregator
	result     *models.ExecutionResult

	mu      sync.Mutex
	aborted bool
}

// executeLevels walks the graph level by level. Every task in a level
// reaches a terminal state before the next level is dispatched; an
// escalated failure stops dispatch and leaves the remaining tasks skipped.
func (r *runState) executeLevels(ctx context.Context) {
	for level, ids := range r.graph.Levels() {
		if r.isAborted() {
			break
		}
		if err := r.orch.pause.WaitIfPaused(ctx); err != nil {
			r.abortRun(err)
			break
		}
		if ctx.Err() != nil {
			r.abortRun(ctx.Err())
			break
		}

		r.orch.logger.Log("level %d: dispatching %d task(s)", level, len(ids))
		r.orch.emitter.Emit(Event{Type: EventLevelStarted, Level: level})

		var eg errgroup.Group
		for _, id := range ids {
			task := r.graph.GetTask(id)
			eg.Go(func() error {
				r.runTask(ctx, task)
				return nil
			})
		}
		eg.Wait()
	}

	r.skipRemaining()
}

// runTask drives one task from pending to a terminal state.
func (r *runState) runTask(ctx context.Context, task *models.Task) {
	if depID := r.failedDependency(task); depID != "" {
		r.skipForDependency(task, depID)
		return
	}
	if ctx.Err() != nil {
		r.abortRun(ctx.Err())
		r.skipTask(task, "run budget exhausted")
		return
	}
	if !r.budget.CanStartNew() {
		r.mu.Lock()
		r.result.Issues = append(r.result.Issues, models.Issue{
			Category:    models.IssueResourceExhausted,
			Severity:    models.SeverityWarning,
			TaskID:      task.ID,
			Description: "cost budget exhausted before dispatch",
			Resolution:  ActionSkip.String(),
		})
		r.mu.Unlock()
		r.skipTask(task, "cost budget exhausted")
		return
	}

	r.start(task)

	proxy, err := r.pool.Acquire(ctx, task.Capability)
	if err != nil {
		r.fail(ctx, task, err)
		return
	}
	defer r.pool.Release(task.Capability)

	result, err := proxy.Execute(ctx, models.TaskRequest{
		TaskID:             task.ID,
		Description:        task.Description,
		Capability:         task.Capability,
		Context:            r.req.ContextData,
		DeliverableSpecs:   task.DeliverableSpecs,
		ValidationCriteria: task.ValidationCriteria,
	})
	if err != nil {
		r.fail(ctx, task, err)
		return
	}
	r.complete(task, result)
}

// failedDependency returns the ID of a dependency that did not complete,
// or "" when every dependency completed. Dependencies are in earlier
// levels, so their statuses are settled by the level barrier.
func (r *runState) failedDependency(task *models.Task) string {
	for _, depID := range task.DependsOn {
		dep := r.graph.GetTask(depID)
		if dep != nil && dep.Status != models.TaskStatusCompleted {
			return depID
		}
	}
	return ""
}

func (r *runState) start(task *models.Task) {
	now := time.Now()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &now
	r.monitor.OnStart(task.ID)
	r.orch.emitter.Emit(Event{Type: EventTaskStarted, TaskID: task.ID})
}

func (r *runState) complete(task *models.Task, result *models.TaskResult) {
	now := time.Now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now

	r.aggregator.Add(task.ID, result)
	if anomaly := r.monitor.OnComplete(task.ID, task.EstimatedCost); anomaly {
		r.orch.logger.Log("task %s: duration exceeded twice its estimate", task.ID)
		r.orch.emitter.Emit(Event{Type: EventAnomaly, TaskID: task.ID,
			Message: "duration exceeded twice the estimate"})
	}
	if crossed := r.budget.Charge(task.EstimatedCost); crossed {
		used, budget, _ := r.budget.Usage()
		r.orch.emitter.Emit(Event{Type: EventBudgetWarning,
			Message:   "cost budget nearly exhausted",
			CostUnits: used})
		r.orch.logger.Log("budget warning: %.1f of %.1f cost units used", used, budget)
	}

	r.mu.Lock()
	r.result.Completed++
	r.result.CompletedTaskIDs = append(r.result.CompletedTaskIDs, task.ID)
	r.mu.Unlock()

	r.orch.emitter.Emit(Event{Type: EventTaskCompleted, TaskID: task.ID})
}

func (r *runState) fail(ctx context.Context, task *models.Task, err error) {
	now := time.Now()
	task.Status = models.TaskStatusFailed
	task.CompletedAt = &now
	task.Error = err.Error()

	r.monitor.OnFail(task.ID)
	r.budget.Charge(task.EstimatedCost)

	// A failure caused by the run deadline is a budget problem, not a
	// task problem.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		r.abortRun(err)
		r.mu.Lock()
		r.result.Failed++
		r.mu.Unlock()
		r.orch.emitter.Emit(Event{Type: EventTaskFailed, TaskID: task.ID, Error: err})
		return
	}

	action := Classify(err)
	if action == ActionRetry {
		// The proxy already spent the retry budget on transient errors;
		// nothing left for the scheduler but to move on.
		action = ActionSkip
	}

	r.mu.Lock()
	r.result.Failed++
	r.result.Issues = append(r.result.Issues, IssueFor(task.ID, err, action))
	if action == ActionEscalate {
		r.aborted = true
	}
	r.mu.Unlock()

	r.orch.logger.Log("task %s failed (%s): %v", task.ID, action, err)
	r.orch.emitter.Emit(Event{Type: EventTaskFailed, TaskID: task.ID, Error: err})
}

// skipForDependency marks a task skipped because a dependency did not
// complete. Tasks below the priority floor are skipped silently.
func (r *runState) skipForDependency(task *models.Task, depID string) {
	silent := task.Priority.Rank() < r.orch.policy.Escalation.PriorityFloor.Rank()
	if !silent {
		r.mu.Lock()
		r.result.Issues = append(r.result.Issues, DependencyIssue(task.ID, depID))
		r.mu.Unlock()
	}
	r.skipTask(task, "dependency failed")
}

func (r *runState) skipTask(task *models.Task, reason string) {
	task.Status = models.TaskStatusSkipped
	task.SkipReason = reason

	r.monitor.OnSkip(task.ID)
	r.mu.Lock()
	r.result.Skipped++
	r.mu.Unlock()

	r.orch.emitter.Emit(Event{Type: EventTaskSkipped, TaskID: task.ID, Message: reason})
}

// skipRemaining marks every still-pending task skipped after an abort or
// deadline, so the partial result accounts for the whole graph.
func (r *runState) skipRemaining() {
	for _, id := range r.graph.TaskIDs() {
		task := r.graph.GetTask(id)
		if task.Status == models.TaskStatusPending {
			r.skipTask(task, "run aborted")
		}
	}
}

// abortRun records a run-level stop exactly once.
func (r *runState) abortRun(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		return
	}
	r.aborted = true

	description := "run stopped"
	if cause != nil {
		description = cause.Error()
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		description = "run resource budget exhausted"
	}
	r.result.Issues = append(r.result.Issues, models.Issue{
		Category:    models.IssueResourceExhausted,
		Severity:    models.SeverityCritical,
		Description: description,
		Resolution:  ActionEscalate.String(),
	})
}

func (r *runState) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// highestSeverity returns the worst severity among recorded issues.
func (r *runState) highestSeverity() models.Severity {
	r.mu.Lock()
	defer r.mu.Unlock()

	highest := models.SeverityInfo
	for _, issue := range r.result.Issues {
		if models.SeverityRank(issue.Severity) > models.SeverityRank(highest) {
			highest = issue.Severity
		}
	}
	return highest
}

// progressEvent snapshots the run for a periodic progress update.
func (r *runState) progressEvent() Event {
	running := r.monitor.Running()
	remaining := r.monitor.Remaining()

	r.mu.Lock()
	blocked := r.result.Skipped
	r.mu.Unlock()

	pending := remaining - running
	if pending < 0 {
		pending = 0
	}
	return Event{
		Type:       EventProgress,
		Percentage: r.monitor.Percentage(),
		InProgress: running,
		Pending:    pending,
		Blocked:    blocked,
		CostUnits:  r.monitor.CompletedCost(),
		Elapsed:    time.Since(r.result.StartedAt),
	}
}
