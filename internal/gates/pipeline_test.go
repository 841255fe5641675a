package gates

import (
	"strings"
	"testing"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

func TestZeroErrorsGate(t *testing.T) {
	gate := models.QualityGate{Name: "no-errors", Type: models.GateZeroErrors, Blocking: true}

	ev := Evaluate(models.GateInput{ErrorCount: 0}, []models.QualityGate{gate})
	if !ev.Outcomes[0].Passed {
		t.Errorf("expected pass with zero errors: %s", ev.Outcomes[0].Detail)
	}

	ev = Evaluate(models.GateInput{ErrorCount: 2}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected failure with two errors")
	}
	if ev.BlockingPassed() {
		t.Error("expected blocking failure to be reported")
	}
}

func TestCoverageGate(t *testing.T) {
	gate := models.QualityGate{Name: "coverage", Type: models.GateCoverageThreshold, Threshold: 80}

	ev := Evaluate(models.GateInput{Metrics: map[string]float64{"coverage": 85.5}}, []models.QualityGate{gate})
	if !ev.Outcomes[0].Passed {
		t.Errorf("expected 85.5 >= 80 to pass: %s", ev.Outcomes[0].Detail)
	}

	ev = Evaluate(models.GateInput{Metrics: map[string]float64{"coverage": 79.9}}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected 79.9 < 80 to fail")
	}
}

func TestCoverageGateMissingMetric(t *testing.T) {
	gate := models.QualityGate{Name: "branch-cov", Type: models.GateCoverageThreshold, Threshold: 70, Metric: "branch_coverage"}

	ev := Evaluate(models.GateInput{Metrics: map[string]float64{"coverage": 90}}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected failure when the named metric is absent")
	}
	if !strings.Contains(ev.Outcomes[0].Detail, "branch_coverage") {
		t.Errorf("expected detail to name the missing metric, got %q", ev.Outcomes[0].Detail)
	}
}

func TestSecuritySeverityGate(t *testing.T) {
	// Rank 1 allows warnings but not errors.
	gate := models.QualityGate{Name: "sec", Type: models.GateSecuritySeverity, Threshold: 1}

	ev := Evaluate(models.GateInput{HighestSeverity: models.SeverityWarning}, []models.QualityGate{gate})
	if !ev.Outcomes[0].Passed {
		t.Errorf("expected warning severity to pass: %s", ev.Outcomes[0].Detail)
	}

	ev = Evaluate(models.GateInput{HighestSeverity: models.SeverityError}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected error severity to exceed rank 1")
	}
}

func TestCustomPredicateGate(t *testing.T) {
	gate := models.QualityGate{
		Name: "cost-sane",
		Type: models.GateCustomPredicate,
		Predicate: func(in models.GateInput) bool {
			return in.Metrics["cost"] < 100
		},
	}

	ev := Evaluate(models.GateInput{Metrics: map[string]float64{"cost": 42}}, []models.QualityGate{gate})
	if !ev.Outcomes[0].Passed {
		t.Error("expected predicate to accept cost 42")
	}

	ev = Evaluate(models.GateInput{Metrics: map[string]float64{"cost": 150}}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected predicate to reject cost 150")
	}
}

func TestCustomPredicateMissing(t *testing.T) {
	gate := models.QualityGate{Name: "broken", Type: models.GateCustomPredicate}

	ev := Evaluate(models.GateInput{}, []models.QualityGate{gate})
	if ev.Outcomes[0].Passed {
		t.Error("expected a predicate-less custom gate to fail")
	}
}

func TestDuplicateGatesMergeToStrictest(t *testing.T) {
	configured := []models.QualityGate{
		{Name: "cov-low", Type: models.GateCoverageThreshold, Threshold: 60},
		{Name: "cov-high", Type: models.GateCoverageThreshold, Threshold: 90, Blocking: true},
		{Name: "err-loose", Type: models.GateZeroErrors, Threshold: 5},
		{Name: "err-tight", Type: models.GateZeroErrors, Threshold: 0},
	}

	ev := Evaluate(models.GateInput{
		ErrorCount: 1,
		Metrics:    map[string]float64{"coverage": 75},
	}, configured)

	if len(ev.Outcomes) != 2 {
		t.Fatalf("expected duplicates to merge to 2 outcomes, got %d", len(ev.Outcomes))
	}
	if len(ev.ConfigWarnings) != 2 {
		t.Errorf("expected 2 merge warnings, got %v", ev.ConfigWarnings)
	}

	// Coverage merged to the higher minimum (90) and picked up blocking.
	cov := ev.Outcomes[0]
	if cov.Passed {
		t.Errorf("expected 75 < 90 to fail after merge: %s", cov.Detail)
	}
	if !cov.Blocking {
		t.Error("expected merged gate to inherit blocking from either duplicate")
	}

	// Errors merged to the lower maximum (0).
	if ev.Outcomes[1].Passed {
		t.Errorf("expected 1 error > 0 to fail after merge: %s", ev.Outcomes[1].Detail)
	}
}

func TestCoverageGatesOnDistinctMetricsStayIndependent(t *testing.T) {
	configured := []models.QualityGate{
		{Name: "line", Type: models.GateCoverageThreshold, Threshold: 90, Metric: "coverage", Blocking: true},
		{Name: "branch", Type: models.GateCoverageThreshold, Threshold: 80, Metric: "branch-coverage", Blocking: true},
	}

	ev := Evaluate(models.GateInput{
		Metrics: map[string]float64{"coverage": 95, "branch-coverage": 10},
	}, configured)

	if len(ev.Outcomes) != 2 {
		t.Fatalf("expected gates over different metrics to stay separate, got %d outcomes", len(ev.Outcomes))
	}
	if len(ev.ConfigWarnings) != 0 {
		t.Errorf("expected no merge warnings for distinct metrics, got %v", ev.ConfigWarnings)
	}
	if !ev.Outcomes[0].Passed {
		t.Errorf("expected line coverage 95 >= 90 to pass: %s", ev.Outcomes[0].Detail)
	}
	if ev.Outcomes[1].Passed {
		t.Errorf("expected branch coverage 10 < 80 to fail: %s", ev.Outcomes[1].Detail)
	}
	if ev.BlockingPassed() {
		t.Error("expected the failing blocking branch-coverage gate to block the run")
	}
}

func TestCoverageGateEmptyMetricMergesWithDefault(t *testing.T) {
	// Metric "" means "coverage", so these two measure the same criterion.
	configured := []models.QualityGate{
		{Name: "implicit", Type: models.GateCoverageThreshold, Threshold: 60},
		{Name: "explicit", Type: models.GateCoverageThreshold, Threshold: 90, Metric: "coverage"},
	}

	ev := Evaluate(models.GateInput{Metrics: map[string]float64{"coverage": 75}}, configured)
	if len(ev.Outcomes) != 1 {
		t.Fatalf("expected implicit and explicit coverage gates to merge, got %d outcomes", len(ev.Outcomes))
	}
	if len(ev.ConfigWarnings) != 1 {
		t.Errorf("expected a merge warning, got %v", ev.ConfigWarnings)
	}
	if ev.Outcomes[0].Passed {
		t.Errorf("expected merged threshold 90 to fail at 75: %s", ev.Outcomes[0].Detail)
	}
}

func TestCustomGatesNeverMerge(t *testing.T) {
	configured := []models.QualityGate{
		{Name: "p1", Type: models.GateCustomPredicate, Predicate: func(models.GateInput) bool { return true }},
		{Name: "p2", Type: models.GateCustomPredicate, Predicate: func(models.GateInput) bool { return false }},
	}

	ev := Evaluate(models.GateInput{}, configured)
	if len(ev.Outcomes) != 2 {
		t.Fatalf("expected both custom gates evaluated, got %d outcomes", len(ev.Outcomes))
	}
	if !ev.Outcomes[0].Passed || ev.Outcomes[1].Passed {
		t.Error("expected each predicate evaluated independently")
	}
}

func TestFailedFilter(t *testing.T) {
	configured := []models.QualityGate{
		{Name: "ok", Type: models.GateZeroErrors},
		{Name: "bad", Type: models.GateCoverageThreshold, Threshold: 80},
	}
	ev := Evaluate(models.GateInput{Metrics: map[string]float64{"coverage": 10}}, configured)

	failed := ev.Failed()
	if len(failed) != 1 || failed[0].Name != "bad" {
		t.Errorf("expected exactly the failing gate, got %v", failed)
	}
}

func TestUnknownGateType(t *testing.T) {
	ev := Evaluate(models.GateInput{}, []models.QualityGate{{Name: "weird", Type: "made-up"}})
	if ev.Outcomes[0].Passed {
		t.Error("expected unknown gate type to fail closed")
	}
}
