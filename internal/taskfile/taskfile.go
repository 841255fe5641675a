// Package taskfile loads task graphs and run settings from YAML files.
package taskfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

// File is the YAML shape of a run description.
type File struct {
	// Context is passed through to every worker call.
	Context map[string]string `yaml:"context"`
	// Budget holds per-run limits.
	Budget Budget `yaml:"budget"`
	// Metrics carries caller-declared metric values for gate evaluation.
	Metrics map[string]float64 `yaml:"metrics"`
	// Gates lists the quality gates for the run.
	Gates []Gate `yaml:"gates"`
	// Tasks is the task graph.
	Tasks []Entry `yaml:"tasks"`
}

// Budget holds per-run limits.
type Budget struct {
	// Run is the wall-clock budget, e.g. "10m". Empty means no deadline.
	Run string `yaml:"run"`
	// CostUnits is the cost budget. Zero means unlimited.
	CostUnits float64 `yaml:"cost_units"`
}

// Gate is the YAML shape of one quality gate.
type Gate struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Threshold float64 `yaml:"threshold"`
	Metric    string  `yaml:"metric"`
	Blocking  bool    `yaml:"blocking"`
}

// Entry is the YAML shape of one task.
type Entry struct {
	ID                 string        `yaml:"id"`
	Description        string        `yaml:"description"`
	Capability         string        `yaml:"capability"`
	DependsOn          []string      `yaml:"depends_on"`
	Priority           string        `yaml:"priority"`
	EstimatedCost      float64       `yaml:"estimated_cost"`
	Deliverables       []Deliverable `yaml:"deliverables"`
	ValidationCriteria []string      `yaml:"validation_criteria"`
}

// Deliverable is the YAML shape of one expected artifact.
type Deliverable struct {
	Path     string `yaml:"path"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// Load reads and validates a task file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates task file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("task file defines no tasks")
	}
	for i, entry := range f.Tasks {
		if entry.ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if entry.Capability == "" {
			return fmt.Errorf("task %s: missing capability", entry.ID)
		}
		if entry.Priority != "" && !models.Priority(entry.Priority).Valid() {
			return fmt.Errorf("task %s: unknown priority %q", entry.ID, entry.Priority)
		}
		if entry.EstimatedCost < 0 {
			return fmt.Errorf("task %s: negative estimated cost", entry.ID)
		}
	}
	if f.Budget.Run != "" {
		if _, err := time.ParseDuration(f.Budget.Run); err != nil {
			return fmt.Errorf("budget.run: %w", err)
		}
	}
	for _, gate := range f.Gates {
		if !models.GateType(gate.Type).Valid() {
			return fmt.Errorf("gate %s: unknown type %q", gate.Name, gate.Type)
		}
		if gate.Type == string(models.GateCustomPredicate) {
			return fmt.Errorf("gate %s: custom-predicate gates cannot be declared in a task file", gate.Name)
		}
	}
	return nil
}

// ModelTasks converts the entries to model tasks ready for graph building.
func (f *File) ModelTasks() []*models.Task {
	now := time.Now()
	tasks := make([]*models.Task, 0, len(f.Tasks))
	for _, entry := range f.Tasks {
		priority := models.Priority(entry.Priority)
		if entry.Priority == "" {
			priority = models.PriorityMedium
		}

		specs := make([]models.DeliverableSpec, 0, len(entry.Deliverables))
		for _, d := range entry.Deliverables {
			specs = append(specs, models.DeliverableSpec{
				Path:     d.Path,
				Type:     d.Type,
				Required: d.Required,
			})
		}

		tasks = append(tasks, &models.Task{
			ID:                 entry.ID,
			Description:        entry.Description,
			Capability:         entry.Capability,
			DependsOn:          entry.DependsOn,
			Priority:           priority,
			EstimatedCost:      entry.EstimatedCost,
			DeliverableSpecs:   specs,
			ValidationCriteria: entry.ValidationCriteria,
			Status:             models.TaskStatusPending,
			CreatedAt:          now,
		})
	}
	return tasks
}

// QualityGates converts the gate entries to model gates.
func (f *File) QualityGates() []models.QualityGate {
	gates := make([]models.QualityGate, 0, len(f.Gates))
	for _, g := range f.Gates {
		gates = append(gates, models.QualityGate{
			Name:      g.Name,
			Type:      models.GateType(g.Type),
			Threshold: g.Threshold,
			Metric:    g.Metric,
			Blocking:  g.Blocking,
		})
	}
	return gates
}

// RunBudget returns the parsed wall-clock budget, or zero when unset.
func (f *File) RunBudget() time.Duration {
	if f.Budget.Run == "" {
		return 0
	}
	d, err := time.ParseDuration(f.Budget.Run)
	if err != nil {
		return 0
	}
	return d
}
