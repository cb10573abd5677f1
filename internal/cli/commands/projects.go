package commands

import (
	"github.com/spf13/cobra"
)

// ProjectsCommand lists the test projects of a workspace
type ProjectsCommand struct {
	deps *Deps
}

// NewProjectsCommand creates a new ProjectsCommand
func NewProjectsCommand(deps *Deps) *ProjectsCommand {
	return &ProjectsCommand{deps: deps}
}

// Execute runs the command
func (pc *ProjectsCommand) Execute(cmd *cobra.Command, args []string) error {
	root := pc.deps.Config.GetRootPath()
	if len(args) > 0 {
		root = args[0]
	}

	projects, err := pc.deps.Coordinator.ListTestProjects(cmd.Context(), root)
	if err != nil {
		return err
	}
	pc.deps.Formatter.PrintProjects(root, projects)
	return nil
}
