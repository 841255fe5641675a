// Package worker provides the capability-endpoint abstraction: a registry of
// worker implementations, per-capability proxies with retry and circuit
// breaking, and a pool bounding concurrent use of each capability.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Worker is a capability endpoint that executes one task attempt.
// Implementations must honor context cancellation promptly.
type Worker interface {
	Execute(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error)

// Execute calls the wrapped function.
func (f WorkerFunc) Execute(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
	return f(ctx, req)
}

// Registry maps capability names to worker implementations. New domains are
// added by registering a new implementation under a new capability name.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// Register binds a worker implementation to a capability name.
// Registering the same capability twice replaces the previous worker.
func (r *Registry) Register(capability string, w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[capability] = w
}

// Get returns the worker for a capability.
func (r *Registry) Get(capability string) (Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[capability]
	return w, ok
}

// Capabilities returns the registered capability names, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.workers))
	for name := range r.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EchoWorker is a trivial worker that produces every required deliverable
// with placeholder content. It stands in for real content producers during
// dry runs and tests.
type EchoWorker struct{}

// Execute produces the requested deliverables without doing any work.
func (EchoWorker) Execute(ctx context.Context, req models.TaskRequest) (*models.TaskResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.TaskResult{
		Status:           models.ResultSuccess,
		ValidationPassed: true,
	}
	for _, spec := range req.DeliverableSpecs {
		result.Deliverables = append(result.Deliverables, models.Deliverable{
			TaskID:     req.TaskID,
			Path:       spec.Path,
			Type:       spec.Type,
			Content:    []byte(fmt.Sprintf("placeholder for %s (task %s)\n", spec.Path, req.TaskID)),
			Validation: models.ValidationSkipped,
		})
	}
	return result, nil
}
