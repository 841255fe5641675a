package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pmcore",
	Short: "Dependency-aware task orchestration core",
	Long: `pmcore executes task graphs with dependency-aware scheduling.

Tasks are described in a YAML task file, grouped into levels by their
dependencies, and dispatched level by level to capability workers with
retry, circuit breaking, and per-capability concurrency limits.

Core capabilities:
- Validates task graphs and rejects cycles and unknown dependencies
- Schedules independent tasks concurrently within each level
- Aggregates deliverables and detects merge conflicts
- Evaluates quality gates against the finished run
- Persists run history to a local SQLite database`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
