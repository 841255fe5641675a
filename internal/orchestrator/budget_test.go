package orchestrator

import (
	"testing"
)

func TestBudgetUnlimitedWhenZero(t *testing.T) {
	tr := NewBudgetTracker(0)
	tr.Charge(1000000)

	if got := tr.Check(); got != BudgetOK {
		t.Errorf("expected OK with no budget set, got %s", got)
	}
	if !tr.CanStartNew() {
		t.Error("expected dispatch to stay open with no budget set")
	}
}

func TestBudgetStatusTransitions(t *testing.T) {
	tr := NewBudgetTracker(100)

	tr.Charge(50)
	if got := tr.Check(); got != BudgetOK {
		t.Errorf("expected OK at 50%%, got %s", got)
	}

	tr.Charge(35)
	if got := tr.Check(); got != BudgetWarning {
		t.Errorf("expected Warning at 85%%, got %s", got)
	}

	tr.Charge(20)
	if got := tr.Check(); got != BudgetExhausted {
		t.Errorf("expected Exhausted at 105%%, got %s", got)
	}
	if tr.CanStartNew() {
		t.Error("expected dispatch blocked once exhausted")
	}
}

func TestBudgetWarningReportedOnce(t *testing.T) {
	tr := NewBudgetTracker(100)

	if crossed := tr.Charge(50); crossed {
		t.Error("expected no warning at 50%")
	}
	if crossed := tr.Charge(35); !crossed {
		t.Error("expected warning crossing 80%")
	}
	if crossed := tr.Charge(5); crossed {
		t.Error("expected warning reported only once")
	}
}

func TestBudgetUsage(t *testing.T) {
	tr := NewBudgetTracker(200)
	tr.Charge(50)

	used, budget, fraction := tr.Usage()
	if used != 50 || budget != 200 || fraction != 0.25 {
		t.Errorf("expected 50/200 (0.25), got %v/%v (%v)", used, budget, fraction)
	}
}
