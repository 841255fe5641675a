package graph

import (
	"fmt"
	"strings"
)

// CycleError indicates a circular dependency was found in the task graph.
// It carries the offending ID sequence; the last element repeats the first
// to close the cycle.
type CycleError struct {
	// Path is the cycle as a sequence of task IDs.
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

// UnknownDependencyError indicates a task references a dependency ID that
// does not exist in the graph.
type UnknownDependencyError struct {
	// TaskID is the task declaring the dependency.
	TaskID string
	// DependencyID is the missing dependency.
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.DependencyID)
}

// DuplicateTaskError indicates two tasks in the same graph share an ID.
type DuplicateTaskError struct {
	// TaskID is the duplicated identifier.
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task id %s", e.TaskID)
}
