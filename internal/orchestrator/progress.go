package orchestrator

import (
	"sync"
	"time"
)

// anomalyFactor is the multiple of a task's estimate beyond which its
// actual duration is flagged.
const anomalyFactor = 2.0

// Monitor tracks per-task timings during a run and derives completion
// percentage and an estimated time to completion.
//
// Cost units are opaque; for duration comparisons one cost unit is read
// as one second, which is only used to decide whether a task overran.
type Monitor struct {
	mu sync.Mutex

	now func() time.Time

	totalCost  float64
	totalTasks int

	starts map[string]time.Time

	completedCost float64
	terminal      int
	running       int

	// ratioSum accumulates actual-seconds / estimated-cost over completed
	// tasks; ratioCount is the number of samples.
	ratioSum   float64
	ratioCount int

	anomalies []string
}

// NewMonitor creates a monitor for a graph with the given totals.
func NewMonitor(totalTasks int, totalCost float64) *Monitor {
	return &Monitor{
		now:        time.Now,
		totalCost:  totalCost,
		totalTasks: totalTasks,
		starts:     make(map[string]time.Time),
	}
}

// OnStart records that a task began executing.
func (m *Monitor) OnStart(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts[taskID] = m.now()
	m.running++
}

// OnComplete records a successful task. It returns true when the task's
// actual duration exceeded twice its estimate; the flag is informational
// and never alters scheduling.
func (m *Monitor) OnComplete(taskID string, estimatedCost float64) (anomaly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.finishLocked(taskID)
	m.completedCost += estimatedCost

	if estimatedCost > 0 {
		seconds := elapsed.Seconds()
		m.ratioSum += seconds / estimatedCost
		m.ratioCount++
		if seconds > anomalyFactor*estimatedCost {
			m.anomalies = append(m.anomalies, taskID)
			return true
		}
	}
	return false
}

// OnFail records a failed task.
func (m *Monitor) OnFail(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishLocked(taskID)
}

// OnSkip records a task that reached terminal state without running.
func (m *Monitor) OnSkip(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminal++
}

func (m *Monitor) finishLocked(taskID string) time.Duration {
	m.terminal++
	start, ok := m.starts[taskID]
	if !ok {
		return 0
	}
	delete(m.starts, taskID)
	if m.running > 0 {
		m.running--
	}
	return m.now().Sub(start)
}

// Percentage returns run completion as 0-100, weighted by estimated cost
// when estimates are present, by task count otherwise.
func (m *Monitor) Percentage() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalCost > 0 {
		return clampPercent(m.completedCost / m.totalCost)
	}
	if m.totalTasks > 0 {
		return clampPercent(float64(m.terminal) / float64(m.totalTasks))
	}
	return 100
}

func clampPercent(fraction float64) int {
	p := int(fraction * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// EstimatedCompletion projects the remaining run duration from the mean
// actual-to-estimate ratio of tasks completed so far. Before any task
// completes it falls back to the graph's declared total estimate read as
// seconds.
func (m *Monitor) EstimatedCompletion() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.totalCost - m.completedCost
	if remaining <= 0 {
		return 0
	}

	ratio := 1.0 // one cost unit per second until evidence says otherwise
	if m.ratioCount > 0 {
		ratio = m.ratioSum / float64(m.ratioCount)
	}
	return time.Duration(remaining * ratio * float64(time.Second))
}

// Running returns the number of tasks currently executing.
func (m *Monitor) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Remaining returns the number of tasks not yet in a terminal state.
func (m *Monitor) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalTasks - m.terminal
}

// CompletedCost returns the estimated cost charged for completed tasks.
func (m *Monitor) CompletedCost() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completedCost
}

// Anomalies lists tasks whose duration exceeded twice their estimate.
func (m *Monitor) Anomalies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.anomalies))
	copy(out, m.anomalies)
	return out
}
