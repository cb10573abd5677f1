package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtp/internal/execution"
	"dtp/internal/ui"
)

// DiscoverCommand handles the discover command
type DiscoverCommand struct {
	deps *Deps
}

// NewDiscoverCommand creates a new DiscoverCommand
func NewDiscoverCommand(deps *Deps) *DiscoverCommand {
	return &DiscoverCommand{deps: deps}
}

// Execute runs the command
func (dc *DiscoverCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg := dc.deps.Config

	files := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", a, err)
		}
		files = append(files, abs)
	}
	if len(files) == 0 {
		scanned, err := dc.deps.Scanner.ScanSources(cfg.GetTestPath())
		if err != nil {
			return err
		}
		files = scanned
	}

	files = dc.deps.Filter.FilterByName(files, cfg.Flags.NameFilter)
	if len(files) == 0 {
		color.Yellow("No source files to discover")
		return nil
	}

	pool := execution.NewWorkerPool(dc.deps.Coordinator, cfg.Processors)
	if len(files) > 1 {
		pool.SetProgress(ui.NewProgressBar(len(files)))
	}
	results, duration := pool.ExecuteWithOptions(cmd.Context(), files, cfg.Flags.FailFast)

	dc.deps.Formatter.PrintDiscovery(results)

	if cfg.Flags.Save {
		if err := dc.deps.Storage.Save(results, duration, cfg.Processors); err != nil {
			return fmt.Errorf("failed to save discovery report: %w", err)
		}
		color.Green("\nReport saved to %s", cfg.GetOutputPath())
	}
	return nil
}
