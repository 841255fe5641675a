package models

// GateType identifies the kind of quality gate.
type GateType string

const (
	// GateZeroErrors passes when the error count is at or below the threshold.
	GateZeroErrors GateType = "zero-errors"
	// GateCoverageThreshold passes when the coverage metric meets the threshold.
	GateCoverageThreshold GateType = "coverage-threshold"
	// GateSecuritySeverity passes when no issue exceeds the severity threshold.
	GateSecuritySeverity GateType = "security-severity"
	// GateCustomPredicate delegates the decision to a caller-supplied predicate.
	GateCustomPredicate GateType = "custom-predicate"
)

// Valid returns true if the gate type is a known value.
func (t GateType) Valid() bool {
	switch t {
	case GateZeroErrors, GateCoverageThreshold, GateSecuritySeverity, GateCustomPredicate:
		return true
	default:
		return false
	}
}

// GateInput is the evidence a gate is evaluated against.
type GateInput struct {
	// ErrorCount is the number of task failures plus failed deliverable
	// validations in the run.
	ErrorCount int
	// HighestSeverity is the most severe issue raised during the run.
	HighestSeverity Severity
	// Metrics carries caller-declared metrics (e.g. "coverage") by name.
	Metrics map[string]float64
}

// GatePredicate is a caller-supplied acceptance check for custom gates.
type GatePredicate func(GateInput) bool

// QualityGate is one configured acceptance criterion for a run.
type QualityGate struct {
	// Name identifies the gate in outcomes and warnings.
	Name string `json:"name" yaml:"name"`
	// Type selects the evaluation rule.
	Type GateType `json:"type" yaml:"type"`
	// Threshold parameterizes the rule. Its meaning depends on Type:
	// maximum error count, minimum coverage, or maximum severity rank.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// Metric names the metric a coverage-threshold gate reads.
	// Defaults to "coverage" when empty.
	Metric string `json:"metric,omitempty" yaml:"metric,omitempty"`
	// Blocking gates force the run to failed when they do not pass.
	Blocking bool `json:"blocking" yaml:"blocking"`
	// Predicate is required for custom-predicate gates and ignored otherwise.
	Predicate GatePredicate `json:"-" yaml:"-"`
}

// GateOutcome records the evaluation of a single gate.
type GateOutcome struct {
	// Name is the gate name.
	Name string `json:"name"`
	// Type is the gate type.
	Type GateType `json:"type"`
	// Passed reports whether the gate passed.
	Passed bool `json:"passed"`
	// Blocking mirrors the gate's blocking flag.
	Blocking bool `json:"blocking"`
	// Detail explains the outcome.
	Detail string `json:"detail,omitempty"`
}

// SeverityRank returns a numeric rank for a severity; higher is worse.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 0
	default:
		return 0
	}
}
