// Package aggregate merges deliverables produced by independent tasks
// into a single result set and surfaces path-level conflicts.
package aggregate

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// MergeConflictError reports that two or more tasks produced different
// content for the same deliverable path.
type MergeConflictError struct {
	Path    string
	TaskIDs []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict at %q between tasks %s", e.Path, strings.Join(e.TaskIDs, ", "))
}

// Result is the merged view over every deliverable added so far.
type Result struct {
	// Deliverables holds one entry per distinct path, ordered by path.
	Deliverables []models.Deliverable
	// Conflicts lists every path where tasks disagreed on content.
	Conflicts []*MergeConflictError
}

// Aggregator collects deliverables from completed tasks. It is safe for
// concurrent use; workers running in the same level add results as they
// finish.
type Aggregator struct {
	mu      sync.Mutex
	byPath  map[string][]models.Deliverable
	results map[string]*models.TaskResult
}

func New() *Aggregator {
	return &Aggregator{
		byPath:  make(map[string][]models.Deliverable),
		results: make(map[string]*models.TaskResult),
	}
}

// Add records a task's result and its deliverables. Deliverables with an
// empty path are ignored; the proxy rejects them before they get here.
func (a *Aggregator) Add(taskID string, result *models.TaskResult) {
	if result == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results[taskID] = result
	for _, d := range result.Deliverables {
		if d.Path == "" {
			continue
		}
		if d.TaskID == "" {
			d.TaskID = taskID
		}
		a.byPath[d.Path] = append(a.byPath[d.Path], d)
	}
}

// ResultFor returns the stored result for a task, or nil.
func (a *Aggregator) ResultFor(taskID string) *models.TaskResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results[taskID]
}

// Merge resolves every collected path. Byte-identical duplicates collapse
// to a single deliverable; differing content at the same path becomes a
// conflict, and the path is excluded from the merged set.
func (a *Aggregator) Merge() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	paths := make([]string, 0, len(a.byPath))
	for p := range a.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out Result
	for _, p := range paths {
		entries := a.byPath[p]
		if conflict := conflictAt(p, entries); conflict != nil {
			out.Conflicts = append(out.Conflicts, conflict)
			continue
		}
		out.Deliverables = append(out.Deliverables, entries[0])
	}
	return out
}

// conflictAt returns a conflict when entries for a path differ in content.
// All entries byte-identical means the path merged cleanly.
func conflictAt(path string, entries []models.Deliverable) *MergeConflictError {
	first := entries[0]
	clean := true
	for _, d := range entries[1:] {
		if !bytes.Equal(d.Content, first.Content) {
			clean = false
			break
		}
	}
	if clean {
		return nil
	}

	seen := make(map[string]bool, len(entries))
	ids := make([]string, 0, len(entries))
	for _, d := range entries {
		if !seen[d.TaskID] {
			seen[d.TaskID] = true
			ids = append(ids, d.TaskID)
		}
	}
	sort.Strings(ids)
	return &MergeConflictError{Path: path, TaskIDs: ids}
}
