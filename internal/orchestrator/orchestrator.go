package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bmcgauley/PM-Agents-sub001/internal/aggregate"
	"github.com/bmcgauley/PM-Agents-sub001/internal/gates"
	"github.com/bmcgauley/PM-Agents-sub001/internal/graph"
	"github.com/bmcgauley/PM-Agents-sub001/internal/orchestrator/policy"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// ExecuteRequest is the caller's description of one run.
type ExecuteRequest struct {
	// Tasks is the task graph to execute.
	Tasks []*models.Task
	// ContextData is passed through to every worker call.
	ContextData map[string]string
	// QualityGates are evaluated against the finished run.
	QualityGates []models.QualityGate
	// Metrics carries caller-declared metric values for gate evaluation.
	Metrics map[string]float64
	// ResourceBudget is the wall-clock budget for the run. Zero means
	// no deadline beyond the caller's context.
	ResourceBudget time.Duration
	// CostBudget is the cost-unit budget for the run. Zero means unlimited.
	CostBudget float64
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the clock used by circuit breakers (mainly for testing).
func WithClock(c worker.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithWorkDir enables file-based pause/resume/cancel signals rooted at
// the given directory.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) { o.workDir = dir }
}

// WithPauseController sets a custom pause controller (mainly for testing).
func WithPauseController(p *PauseController) Option {
	return func(o *Orchestrator) { o.pause = p }
}

// Orchestrator executes task graphs against a worker registry.
type Orchestrator struct {
	registry *worker.Registry
	policy   *policy.Config
	logger   *DebugLogger
	emitter  *EventEmitter
	pause    *PauseController
	clock    worker.Clock
	workDir  string
}

// New creates an orchestrator over the given worker registry.
func New(registry *worker.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		policy:   policy.Default(),
		logger:   NopLogger(),
		pause:    NewPauseController(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.policy == nil {
		o.policy = policy.Default()
	}
	o.policy.Validate()
	o.emitter = NewEventEmitter(o.policy.Progress.EventBuffer)
	return o
}

// Events returns the run event stream. Consuming it is optional; a full
// buffer drops events rather than blocking execution.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Pause pauses dispatch of new tasks.
func (o *Orchestrator) Pause() { o.pause.Pause() }

// Resume resumes dispatch after a pause.
func (o *Orchestrator) Resume() { o.pause.Resume() }

// Execute runs the task graph and returns the run-level result. Graph
// validation errors (cycles, unknown dependencies) are returned as plain
// errors; every failure past validation lands in the result's issue list
// instead, so a troubled run still returns everything it produced.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*models.ExecutionResult, error) {
	g := graph.New()
	g.SetDebugLog(o.logger.Log)
	if err := g.Build(req.Tasks); err != nil {
		return nil, fmt.Errorf("graph validation: %w", err)
	}

	if req.ResourceBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.ResourceBudget)
		defer cancel()
	}

	var watcher *SignalWatcher
	if o.workDir != "" {
		w, err := NewSignalWatcher(o.workDir, o.pause, o.emitter)
		if err != nil {
			o.logger.Log("signal watcher unavailable: %v", err)
		}
		watcher = w
		defer watcher.Close()
	}

	run := &runState{
		orch:       o,
		graph:      g,
		req:        req,
		pool:       worker.NewPool(o.registry, o.policy.Concurrency.MaxPerCapability, o.workerConfig(), o.clock),
		monitor:    NewMonitor(g.Size(), g.TotalEstimatedCost()),
		budget:     NewBudgetTracker(req.CostBudget),
		aggregator: aggregate.New(),
		result: &models.ExecutionResult{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
		},
	}

	o.logger.Log("run %s: %d tasks in %d levels, total cost %.1f",
		run.result.RunID, g.Size(), len(g.Levels()), g.TotalEstimatedCost())
	o.emitter.Emit(Event{Type: EventRunStarted, Message: run.result.RunID})

	stopProgress := o.startProgressTicker(run)
	run.executeLevels(ctx)
	stopProgress()

	o.finalize(run)
	return run.result, nil
}

// workerConfig maps the policy onto the worker proxy configuration.
func (o *Orchestrator) workerConfig() worker.Config {
	p := o.policy
	return worker.Config{
		MaxRetries:        p.Retry.MaxRetries,
		Timeout:           p.Timeout.Base,
		TimeoutMultiplier: p.Timeout.Multiplier,
		TimeoutCeiling:    p.Timeout.Ceiling,
		BackoffInitial:    p.Retry.BackoffInitial,
		BackoffMultiplier: p.Retry.BackoffMultiplier,
		BackoffMax:        p.Retry.BackoffMax,
		FailureThreshold:  p.Breaker.FailureThreshold,
		ResetTimeout:      p.Breaker.ResetTimeout,
	}
}

// startProgressTicker emits periodic progress events until stopped.
func (o *Orchestrator) startProgressTicker(run *runState) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(o.policy.Progress.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				o.emitter.Emit(run.progressEvent())
			}
		}
	}()
	return func() { close(done) }
}

// finalize merges deliverables, evaluates gates and settles the final
// status on the run's result.
func (o *Orchestrator) finalize(run *runState) {
	res := run.result

	merged := run.aggregator.Merge()
	res.Deliverables = merged.Deliverables
	for _, conflict := range merged.Conflicts {
		res.Issues = append(res.Issues, IssueFor("", conflict, ActionEscalate))
		run.aborted = true
	}

	outcome := gates.Evaluate(models.GateInput{
		ErrorCount:      res.Failed + len(merged.Conflicts),
		HighestSeverity: run.highestSeverity(),
		Metrics:         run.req.Metrics,
	}, run.req.QualityGates)
	res.GateOutcomes = outcome.Outcomes
	for _, w := range outcome.ConfigWarnings {
		o.logger.Log("gate configuration: %s", w)
		o.emitter.Emit(Event{Type: EventGateWarning, Message: w})
	}

	switch {
	case run.aborted || !outcome.BlockingPassed():
		res.Status = models.RunFailed
	case res.Failed > 0 || res.Skipped > 0:
		res.Status = models.RunPartial
	default:
		res.Status = models.RunCompleted
	}

	sort.Strings(res.CompletedTaskIDs)
	res.FinishedAt = time.Now()
	res.Usage = models.ResourceUsage{
		Elapsed:            res.FinishedAt.Sub(res.StartedAt),
		CostUnitsEstimated: run.graph.TotalEstimatedCost(),
		CostUnitsCompleted: run.monitor.CompletedCost(),
		WorkerCalls:        int(run.pool.TotalCalls()),
	}

	o.logger.Log("run %s finished: %s (%d completed, %d failed, %d skipped)",
		res.RunID, res.Status, res.Completed, res.Failed, res.Skipped)
	o.emitter.Emit(Event{
		Type:    EventRunFinished,
		Message: string(res.Status),
		Elapsed: res.Usage.Elapsed,
	})
}
