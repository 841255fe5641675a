// Package graph provides a dependency graph for task scheduling.
package graph

import (
	"sort"
	"sync"

	"github.com/gammazero/toposort"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Graph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
// After a successful Build the node and edge sets are never mutated;
// only task status transitions happen during execution, and those are
// owned by the scheduler.
type Graph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// levels caches the concurrency levels computed during Build.
	levels [][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *Graph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of tasks and computes
// the concurrency levels. Returns UnknownDependencyError if a dependency
// references a task not in the set, and CycleError if the dependency
// relation is cyclic. On error the graph must not be executed.
func (g *Graph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return &DuplicateTaskError{TaskID: task.ID}
		}
		if task.Status == "" {
			task.Status = models.TaskStatusPending
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return &UnknownDependencyError{TaskID: task.ID, DependencyID: depID}
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return &CycleError{Path: cycle}
	}

	g.levels = g.buildLevelsLocked()

	g.debugLog("[graph.Build] graph built: %d nodes, %d levels", len(g.nodes), len(g.levels))
	return nil
}

// findCycleLocked returns the ID sequence of a dependency cycle, or nil if
// the graph is acyclic. Uses depth-first search with coloring; the returned
// path closes the cycle by repeating the first ID.
func (g *Graph) findCycleLocked() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range sortedIDs(g.edges[id]) {
			switch colors[depID] {
			case 1:
				// Back edge found; extract the cycle from the stack.
				start := 0
				for i, sid := range stack {
					if sid == depID {
						start = i
						break
					}
				}
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, depID)
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range g.sortedNodeIDsLocked() {
		if colors[id] == 0 && visit(id) {
			return cycle
		}
	}
	return nil
}

// buildLevelsLocked assigns each task the level 1 + max(level of its
// dependencies), or 0 when it has none, then groups task IDs by level.
// Within a level, IDs are sorted for deterministic scheduling order.
// The graph must already be known acyclic.
func (g *Graph) buildLevelsLocked() [][]string {
	level := make(map[string]int, len(g.nodes))

	var assign func(id string) int
	assign = func(id string) int {
		if l, ok := level[id]; ok {
			return l
		}
		l := 0
		for _, depID := range g.edges[id] {
			if dl := assign(depID) + 1; dl > l {
				l = dl
			}
		}
		level[id] = l
		return l
	}

	maxLevel := -1
	for id := range g.nodes {
		if l := assign(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for id, l := range level {
		levels[l] = append(levels[l], id)
	}
	for _, ids := range levels {
		sort.Strings(ids)
	}
	return levels
}

// Levels returns the cached concurrency levels: an ordered list of disjoint
// task-ID sets with no intra-level dependency. Every task appears in exactly
// one level, and a task's level is strictly greater than the level of every
// dependency. Valid only after a successful Build.
func (g *Graph) Levels() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([][]string, len(g.levels))
	for i, ids := range g.levels {
		out[i] = append([]string(nil), ids...)
	}
	return out
}

// TopologicalSort returns task IDs in an order where all dependencies come
// before the tasks that depend on them.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if cycle := g.findCycleLocked(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	var edges []toposort.Edge
	for _, id := range g.sortedNodeIDsLocked() {
		deps := g.edges[id]
		if len(deps) == 0 {
			// Ensure isolated tasks are included in the ordering.
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range deps {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CycleError{Path: g.findCycleLocked()}
	}

	order := make([]string, 0, len(g.nodes))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// GetTask returns the task for a given ID, or nil if not found.
func (g *Graph) GetTask(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// TaskIDs returns all task IDs, sorted.
func (g *Graph) TaskIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodeIDsLocked()
}

// GetDependencies returns the IDs of tasks that the given task depends on.
func (g *Graph) GetDependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// GetDependents returns the IDs of tasks that depend on the given task.
func (g *Graph) GetDependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// TotalEstimatedCost returns the sum of estimated cost over all tasks.
func (g *Graph) TotalEstimatedCost() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var total float64
	for _, task := range g.nodes {
		total += task.EstimatedCost
	}
	return total
}

// sortedNodeIDsLocked returns node IDs in sorted order for deterministic
// traversal. Caller must hold the lock.
func (g *Graph) sortedNodeIDsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
