package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bmcgauley/PM-Agents-sub001/internal/graph"
	"github.com/bmcgauley/PM-Agents-sub001/internal/taskfile"
)

var planCmd = &cobra.Command{
	Use:   "plan <taskfile>",
	Short: "Validate a task file and print its execution plan",
	Long: `Validate the task graph in a YAML task file without executing it.

Prints the dependency levels in dispatch order: tasks in the same level
have no dependencies on each other and would run concurrently. Cycles
and references to unknown tasks are reported as errors.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	file, err := taskfile.Load(args[0])
	if err != nil {
		return err
	}
	tasks := file.ModelTasks()

	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return fmt.Errorf("graph validation: %w", err)
	}

	fmt.Printf("%s %d tasks, %d levels, %.1f estimated cost units\n",
		color.GreenString("✓"), g.Size(), len(g.Levels()), g.TotalEstimatedCost())

	for i, level := range g.Levels() {
		fmt.Printf("\nLevel %d:\n", i)
		for _, id := range level {
			task := g.GetTask(id)
			line := fmt.Sprintf("  %s (%s, %s, %.1f units)",
				task.ID, task.Capability, task.Priority, task.EstimatedCost)
			if len(task.DependsOn) > 0 {
				line += fmt.Sprintf(" after %v", task.DependsOn)
			}
			fmt.Println(line)
		}
	}

	if len(file.Gates) > 0 {
		fmt.Printf("\nGates:\n")
		for _, gate := range file.Gates {
			mode := "advisory"
			if gate.Blocking {
				mode = "blocking"
			}
			fmt.Printf("  %s (%s, threshold %.1f, %s)\n", gate.Name, gate.Type, gate.Threshold, mode)
		}
	}
	return nil
}
