package commands

import (
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtp/internal/domain"
)

// ListCommand prints the last saved discovery report
type ListCommand struct {
	deps *Deps
}

// NewListCommand creates a new ListCommand
func NewListCommand(deps *Deps) *ListCommand {
	return &ListCommand{deps: deps}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	report, err := lc.deps.Storage.Load()
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(report.Files))
	for p := range report.Files {
		paths = append(paths, p)
	}
	paths = lc.deps.Filter.FilterByName(paths, lc.deps.Config.Flags.NameFilter)
	sort.Strings(paths)

	if len(paths) == 0 {
		color.Yellow("No tests in the last report")
		return nil
	}

	results := make([]domain.FileDiscovery, 0, len(paths))
	for _, p := range paths {
		results = append(results, domain.FileDiscovery{
			Path:   p,
			Result: domain.DiscoveryResult{Status: domain.StatusOK, Tests: report.Files[p]},
		})
	}
	lc.deps.Formatter.PrintDiscovery(results)

	if len(report.Failed) > 0 {
		color.Red("\n%d file(s) failed discovery on %s", len(report.Failed), report.Timestamp)
	}
	return nil
}
