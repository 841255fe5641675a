package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bmcgauley/PM-Agents-sub001/internal/config"
	"github.com/bmcgauley/PM-Agents-sub001/internal/orchestrator"
	"github.com/bmcgauley/PM-Agents-sub001/internal/state"
	"github.com/bmcgauley/PM-Agents-sub001/internal/taskfile"
	"github.com/bmcgauley/PM-Agents-sub001/internal/worker"
	"github.com/bmcgauley/PM-Agents-sub001/pkg/models"
)

var (
	runBudget     string
	runCostBudget float64
	runNoSave     bool
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run <taskfile>",
	Short: "Execute a task file with dependency-aware scheduling",
	Long: `Execute the task graph described in a YAML task file.

Tasks are grouped into levels by their dependencies. Tasks within a
level run concurrently, bounded by the per-capability worker limit.
Failed dependencies skip their dependents; merge conflicts and budget
exhaustion abort the run.

While a run is in flight it can be controlled from another terminal by
dropping signal files into .pmcore/signals/ ("pause", "resume",
"cancel").

Run history is persisted to .pmcore/state.db unless --no-save is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskFile,
}

func init() {
	runCmd.Flags().StringVar(&runBudget, "budget", "", "Wall-clock budget for the run, e.g. 10m (overrides task file and config)")
	runCmd.Flags().Float64Var(&runCostBudget, "cost-budget", 0, "Cost-unit budget for the run (overrides task file and config)")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not persist the run to the state database")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress per-task event output, print only the summary")
}

func runTaskFile(cmd *cobra.Command, args []string) (retErr error) {
	// Recover from panics and report them
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	verbose := os.Getenv("PMCORE_DEBUG") != ""

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	file, err := taskfile.Load(args[0])
	if err != nil {
		return err
	}
	tasks := file.ModelTasks()
	if verbose {
		fmt.Printf("[DEBUG] Loaded %d tasks from %s\n", len(tasks), args[0])
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	budget, costBudget, err := resolveBudgets(cmd, file, cfg)
	if err != nil {
		return err
	}

	registry := worker.NewRegistry()
	for _, t := range tasks {
		registry.Register(t.Capability, worker.EchoWorker{})
	}
	if verbose {
		fmt.Printf("[DEBUG] Registered capabilities: %v\n", registry.Capabilities())
	}

	opts := []orchestrator.Option{
		orchestrator.WithPolicy(cfg.ToPolicy()),
		orchestrator.WithWorkDir(workDir),
	}
	if cfg.Debug.Log {
		opts = append(opts, orchestrator.WithLogger(orchestrator.NewDebugLoggerForDir(workDir)))
	}
	orch := orchestrator.New(registry, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Events() {
			if !runQuiet {
				printEvent(ev)
			}
			if ev.Type == orchestrator.EventRunFinished {
				return
			}
		}
	}()

	result, err := orch.Execute(ctx, orchestrator.ExecuteRequest{
		Tasks:          tasks,
		ContextData:    file.Context,
		QualityGates:   file.QualityGates(),
		Metrics:        file.Metrics,
		ResourceBudget: budget,
		CostBudget:     costBudget,
	})
	if err != nil {
		return err
	}
	<-done

	printSummary(result)

	if !runNoSave {
		if err := saveRun(workDir, result, tasks); err != nil {
			fmt.Printf("Warning: could not persist run: %v\n", err)
		}
	}

	if result.Status == models.RunFailed {
		return fmt.Errorf("run %s failed", result.RunID)
	}
	return nil
}

// resolveBudgets picks the run budgets: flag, then task file, then config.
func resolveBudgets(cmd *cobra.Command, file *taskfile.File, cfg *config.Config) (time.Duration, float64, error) {
	budget := file.RunBudget()
	if cmd.Flags().Changed("budget") {
		d, err := time.ParseDuration(runBudget)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --budget %q: %w", runBudget, err)
		}
		budget = d
	} else if budget == 0 {
		budget = cfg.Budget.Run
	}

	costBudget := file.Budget.CostUnits
	if cmd.Flags().Changed("cost-budget") {
		costBudget = runCostBudget
	} else if costBudget == 0 {
		costBudget = cfg.Budget.CostUnits
	}
	return budget, costBudget, nil
}

func saveRun(workDir string, result *models.ExecutionResult, tasks []*models.Task) error {
	db, err := state.OpenProject(workDir)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	return db.SaveRun(result, tasks)
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventLevelStarted:
		fmt.Printf("%s level %d: %s\n", color.CyanString("→"), ev.Level, ev.Message)
	case orchestrator.EventTaskStarted:
		fmt.Printf("  %s %s started\n", color.CyanString("•"), ev.TaskID)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("  %s %s completed\n", color.GreenString("✓"), ev.TaskID)
	case orchestrator.EventTaskFailed:
		fmt.Printf("  %s %s failed: %v\n", color.RedString("✗"), ev.TaskID, ev.Error)
	case orchestrator.EventTaskSkipped:
		fmt.Printf("  %s %s skipped: %s\n", color.YellowString("-"), ev.TaskID, ev.Message)
	case orchestrator.EventProgress:
		fmt.Printf("%s %d%% (%d running, %d pending, cost %.1f)\n",
			color.CyanString("…"), ev.Percentage, ev.InProgress, ev.Pending, ev.CostUnits)
	case orchestrator.EventAnomaly:
		fmt.Printf("  %s %s: %s\n", color.YellowString("⚠"), ev.TaskID, ev.Message)
	case orchestrator.EventBudgetWarning, orchestrator.EventGateWarning:
		fmt.Printf("%s %s\n", color.YellowString("⚠"), ev.Message)
	case orchestrator.EventPaused:
		fmt.Printf("%s run paused\n", color.YellowString("⏸"))
	case orchestrator.EventResumed:
		fmt.Printf("%s run resumed\n", color.GreenString("▶"))
	}
}

func printSummary(result *models.ExecutionResult) {
	fmt.Println()
	fmt.Printf("Run %s: %s\n", result.RunID, colorStatus(result.Status))
	fmt.Printf("  Tasks:   %d completed, %d failed, %d skipped\n",
		result.Completed, result.Failed, result.Skipped)
	fmt.Printf("  Cost:    %.1f of %.1f estimated units\n",
		result.Usage.CostUnitsCompleted, result.Usage.CostUnitsEstimated)
	fmt.Printf("  Elapsed: %s (%d worker calls)\n",
		result.Usage.Elapsed.Round(time.Millisecond), result.Usage.WorkerCalls)

	for _, g := range result.GateOutcomes {
		symbol := color.GreenString("✓")
		if !g.Passed {
			symbol = color.RedString("✗")
			if !g.Blocking {
				symbol = color.YellowString("⚠")
			}
		}
		fmt.Printf("  Gate %s %s: %s\n", symbol, g.Name, g.Detail)
	}

	if len(result.Issues) > 0 {
		fmt.Printf("  Issues:\n")
		for _, issue := range result.Issues {
			line := fmt.Sprintf("[%s/%s] %s", issue.Category, issue.Severity, issue.Description)
			if issue.TaskID != "" {
				line = issue.TaskID + ": " + line
			}
			fmt.Printf("    %s\n", line)
		}
	}
}

func colorStatus(status models.RunStatus) string {
	switch status {
	case models.RunCompleted:
		return color.GreenString(string(status))
	case models.RunPartial:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}
