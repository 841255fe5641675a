package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initForce        bool
	initWithTaskfile bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a pmcore project",
	Long: `Initialize a directory for use with pmcore.

This command sets up everything needed to run pmcore:
  - Creates the .pmcore directory structure (logs, signals)
  - Adds .pmcore to .gitignore if one exists
  - Creates a .pmcore.yaml config template
  - Optionally creates an example task file

The directory argument is optional and defaults to the current directory.

Examples:
  pmcore init                  # Initialize current directory
  pmcore init ./myproject      # Initialize specific directory
  pmcore init --force          # Reinitialize even if already set up
  pmcore init --with-taskfile  # Create an example tasks.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithTaskfile, "with-taskfile", false, "Create an example tasks.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing pmcore in %s...\n\n", absPath)

	pmcoreDir := filepath.Join(absPath, ".pmcore")
	if _, err := os.Stat(pmcoreDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	for _, sub := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(pmcoreDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .pmcore/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .pmcore directory structure", color.FgGreen)

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}

	configPath := filepath.Join(absPath, ".pmcore.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created .pmcore.yaml template", color.FgGreen)
	}

	if initWithTaskfile {
		taskfilePath := filepath.Join(absPath, "tasks.yaml")
		if _, err := os.Stat(taskfilePath); os.IsNotExist(err) || initForce {
			if err := os.WriteFile(taskfilePath, []byte(exampleTaskfile), 0644); err != nil {
				return fmt.Errorf("creating example task file: %w", err)
			}
			printStatus("✓", "Created example tasks.yaml", color.FgGreen)
		}
	}

	fmt.Printf("\n%s pmcore initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Describe your task graph in a YAML task file")
	fmt.Println("  2. Validate the plan:  pmcore plan tasks.yaml")
	fmt.Println("  3. Execute the run:    pmcore run tasks.yaml")
	return nil
}

// updateGitignore appends pmcore entries to .gitignore when the file exists.
func updateGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if strings.Contains(string(data), ".pmcore/") {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString("\n# pmcore\n.pmcore/\n"); err != nil {
		return err
	}
	printStatus("✓", "Updated .gitignore with pmcore entries", color.FgGreen)
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

const projectConfigTemplate = `# pmcore project configuration.
# Values here override ~/.config/pmcore/config.yaml; environment
# variables with the PMCORE_ prefix override both.

workers:
  max_per_capability: 3

retry:
  max_retries: 3
  backoff_initial: 1s
  backoff_multiplier: 2.0
  backoff_max: 30s

breaker:
  failure_threshold: 5
  reset_timeout: 30s

timeouts:
  call: 60s
  multiplier: 1.5
  ceiling: 5m

budget:
  run: 0s        # wall-clock budget; 0 disables the deadline
  cost_units: 0  # cost budget; 0 means unlimited
  priority_floor: low

progress:
  interval: 10s

debug:
  log: false
`

const exampleTaskfile = `# Example pmcore task file.
context:
  project: example

budget:
  run: 10m
  cost_units: 50

metrics:
  coverage: 87.5

gates:
  - name: no-errors
    type: zero-errors
    threshold: 0
    blocking: true
  - name: coverage-floor
    type: coverage
    threshold: 80
    metric: coverage
    blocking: false

tasks:
  - id: schema
    description: Draft the data schema
    capability: design
    priority: high
    estimated_cost: 2
    deliverables:
      - path: docs/schema.md
        type: doc
        required: true

  - id: api
    description: Implement the API against the schema
    capability: build
    depends_on: [schema]
    priority: high
    estimated_cost: 5
    deliverables:
      - path: api/handlers.go
        type: code
        required: true

  - id: docs
    description: Write user documentation
    capability: write
    depends_on: [schema]
    priority: low
    estimated_cost: 1
    deliverables:
      - path: docs/guide.md
        type: doc
        required: true
`
