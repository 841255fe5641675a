// Package gates evaluates quality gates against the evidence collected
// from a completed run.
package gates

import (
	"fmt"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// Evaluation is the outcome of running every configured gate.
type Evaluation struct {
	// Outcomes holds one entry per evaluated gate, in configuration order
	// after duplicate merging.
	Outcomes []models.GateOutcome
	// ConfigWarnings reports gates that were merged, skipped, or otherwise
	// misconfigured. Warnings never fail a run on their own.
	ConfigWarnings []string
}

// BlockingPassed reports whether every blocking gate passed.
func (e Evaluation) BlockingPassed() bool {
	for _, o := range e.Outcomes {
		if o.Blocking && !o.Passed {
			return false
		}
	}
	return true
}

// Failed returns the outcomes of gates that did not pass.
func (e Evaluation) Failed() []models.GateOutcome {
	var out []models.GateOutcome
	for _, o := range e.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Evaluate runs every gate against the input. Duplicate gates over the
// same criterion collapse to the most restrictive configuration before
// evaluation.
func Evaluate(input models.GateInput, configured []models.QualityGate) Evaluation {
	var ev Evaluation

	merged, warnings := mergeDuplicates(configured)
	ev.ConfigWarnings = warnings

	for _, g := range merged {
		ev.Outcomes = append(ev.Outcomes, evaluateOne(input, g))
	}
	return ev
}

func evaluateOne(input models.GateInput, g models.QualityGate) models.GateOutcome {
	out := models.GateOutcome{Name: g.Name, Type: g.Type, Blocking: g.Blocking}

	switch g.Type {
	case models.GateZeroErrors:
		max := int(g.Threshold)
		out.Passed = input.ErrorCount <= max
		out.Detail = fmt.Sprintf("%d error(s), at most %d allowed", input.ErrorCount, max)

	case models.GateCoverageThreshold:
		metric := g.Metric
		if metric == "" {
			metric = "coverage"
		}
		value, ok := input.Metrics[metric]
		if !ok {
			out.Passed = false
			out.Detail = fmt.Sprintf("metric %q not reported", metric)
			break
		}
		out.Passed = value >= g.Threshold
		out.Detail = fmt.Sprintf("%s %.1f, at least %.1f required", metric, value, g.Threshold)

	case models.GateSecuritySeverity:
		rank := models.SeverityRank(input.HighestSeverity)
		max := int(g.Threshold)
		out.Passed = rank <= max
		out.Detail = fmt.Sprintf("highest severity %s (rank %d), at most rank %d allowed",
			input.HighestSeverity, rank, max)

	case models.GateCustomPredicate:
		if g.Predicate == nil {
			out.Passed = false
			out.Detail = "custom gate has no predicate"
			break
		}
		out.Passed = g.Predicate(input)
		if out.Passed {
			out.Detail = "predicate accepted"
		} else {
			out.Detail = "predicate rejected"
		}

	default:
		out.Passed = false
		out.Detail = fmt.Sprintf("unknown gate type %q", g.Type)
	}
	return out
}

// gateKey identifies the criterion a gate measures. Gates over different
// metrics are distinct criteria even when they share a type.
type gateKey struct {
	gateType models.GateType
	metric   string
}

func criterionOf(g models.QualityGate) gateKey {
	metric := g.Metric
	if g.Type == models.GateCoverageThreshold && metric == "" {
		metric = "coverage"
	}
	return gateKey{gateType: g.Type, metric: metric}
}

// mergeDuplicates collapses gates sharing a type and metric into one gate
// carrying the most restrictive threshold. Custom-predicate gates never
// merge; each predicate is its own criterion.
func mergeDuplicates(configured []models.QualityGate) ([]models.QualityGate, []string) {
	var (
		out      []models.QualityGate
		warnings []string
		index    = make(map[gateKey]int)
	)

	for _, g := range configured {
		if g.Type == models.GateCustomPredicate {
			out = append(out, g)
			continue
		}
		key := criterionOf(g)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, g)
			continue
		}

		kept := &out[i]
		warnings = append(warnings, fmt.Sprintf(
			"duplicate %s gate %q merged into %q with the stricter threshold", g.Type, g.Name, kept.Name))

		switch g.Type {
		case models.GateCoverageThreshold:
			// Higher minimum is stricter.
			if g.Threshold > kept.Threshold {
				kept.Threshold = g.Threshold
			}
		default:
			// Lower maximum is stricter.
			if g.Threshold < kept.Threshold {
				kept.Threshold = g.Threshold
			}
		}
		if g.Blocking {
			kept.Blocking = true
		}
	}
	return out, warnings
}
