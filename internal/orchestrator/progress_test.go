package orchestrator

import (
	"testing"
	"time"
)

// tickClock returns a now-func that advances by the given steps on each call.
func tickClock(start time.Time, steps ...time.Duration) func() time.Time {
	i := 0
	now := start
	return func() time.Time {
		if i < len(steps) {
			now = now.Add(steps[i])
			i++
		}
		return now
	}
}

func TestPercentageWeightedByCost(t *testing.T) {
	m := NewMonitor(4, 10)

	if got := m.Percentage(); got != 0 {
		t.Errorf("expected 0%% before any completion, got %d", got)
	}

	m.OnStart("a")
	m.OnComplete("a", 4)
	if got := m.Percentage(); got != 40 {
		t.Errorf("expected 40%% after 4 of 10 cost units, got %d", got)
	}
}

func TestPercentageFallsBackToCount(t *testing.T) {
	m := NewMonitor(2, 0)

	m.OnStart("a")
	m.OnComplete("a", 0)
	if got := m.Percentage(); got != 50 {
		t.Errorf("expected 50%% after 1 of 2 tasks, got %d", got)
	}
}

func TestAnomalyFlaggedAtTwiceEstimate(t *testing.T) {
	m := NewMonitor(2, 4)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// First task: 2 cost units, 5s actual -> over 2x.
	m.now = tickClock(base, 0, 5*time.Second)
	m.OnStart("slow")
	if anomaly := m.OnComplete("slow", 2); !anomaly {
		t.Error("expected 5s against a 2-unit estimate to be flagged")
	}

	// Second task: 2 cost units, 3s actual -> within 2x.
	m.now = tickClock(base, 0, 3*time.Second)
	m.OnStart("ok")
	if anomaly := m.OnComplete("ok", 2); anomaly {
		t.Error("expected 3s against a 2-unit estimate not to be flagged")
	}

	anomalies := m.Anomalies()
	if len(anomalies) != 1 || anomalies[0] != "slow" {
		t.Errorf("expected [slow], got %v", anomalies)
	}
}

func TestEstimatedCompletionFallback(t *testing.T) {
	m := NewMonitor(3, 30)

	// No completions yet: one cost unit reads as one second.
	if got := m.EstimatedCompletion(); got != 30*time.Second {
		t.Errorf("expected 30s fallback, got %v", got)
	}
}

func TestEstimatedCompletionUsesObservedRatio(t *testing.T) {
	m := NewMonitor(2, 20)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// 10 cost units took 20s: ratio 2 seconds per unit.
	m.now = tickClock(base, 0, 20*time.Second)
	m.OnStart("a")
	m.OnComplete("a", 10)

	if got := m.EstimatedCompletion(); got != 20*time.Second {
		t.Errorf("expected remaining 10 units * 2s = 20s, got %v", got)
	}
}

func TestRunningAndRemainingCounts(t *testing.T) {
	m := NewMonitor(3, 3)

	m.OnStart("a")
	m.OnStart("b")
	if got := m.Running(); got != 2 {
		t.Errorf("expected 2 running, got %d", got)
	}

	m.OnFail("a")
	m.OnSkip("c")
	if got := m.Running(); got != 1 {
		t.Errorf("expected 1 running after a failure, got %d", got)
	}
	if got := m.Remaining(); got != 1 {
		t.Errorf("expected 1 remaining, got %d", got)
	}
}
