package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bmcgauley/PM-Agents-sub001/internal/state"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

var (
	statusRunID string
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent run history",
	Long: `Display recent runs from the project state database.

Shows each run's outcome, task counts, cost usage and timing.
Use --run <id> to show the per-task outcomes of one run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "Show per-task outcomes for one run ID")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Run 'pmcore run <taskfile>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if statusRunID != "" {
		return showRun(db, statusRunID)
	}
	return listRuns(db)
}

func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No run history. Run 'pmcore run <taskfile>' to start.")
		return nil
	}

	for _, run := range runs {
		elapsed := ""
		if run.FinishedAt != nil {
			elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %s  %d/%d/%d  cost %.1f/%.1f  %s  %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			colorStatus(run.Status),
			run.Completed, run.Failed, run.Skipped,
			run.CostCompleted, run.CostEstimated,
			elapsed, run.ID)
	}
	return nil
}

func showRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}

	fmt.Printf("Run %s: %s\n", run.ID, colorStatus(run.Status))
	fmt.Printf("  Started: %s\n", run.StartedAt.Local().Format(time.RFC1123))
	fmt.Printf("  Tasks:   %d completed, %d failed, %d skipped (%d worker calls)\n",
		run.Completed, run.Failed, run.Skipped, run.WorkerCalls)

	tasks, err := db.RunTasks(id)
	if err != nil {
		return fmt.Errorf("list run tasks: %w", err)
	}
	for _, t := range tasks {
		symbol := color.YellowString("-")
		switch t.Status {
		case models.TaskStatusCompleted:
			symbol = color.GreenString("✓")
		case models.TaskStatusFailed:
			symbol = color.RedString("✗")
		}
		line := fmt.Sprintf("  %s %s (%s)", symbol, t.TaskID, t.Capability)
		if t.Error != "" {
			line += ": " + t.Error
		} else if t.SkipReason != "" {
			line += ": " + t.SkipReason
		}
		fmt.Println(line)
	}
	return nil
}
