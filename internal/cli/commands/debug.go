package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtp/internal/domain"
)

// DebugCommand handles the debug command
type DebugCommand struct {
	deps *Deps
}

// NewDebugCommand creates a new DebugCommand
func NewDebugCommand(deps *Deps) *DebugCommand {
	return &DebugCommand{deps: deps}
}

// Execute runs the command
func (dc *DebugCommand) Execute(cmd *cobra.Command, args []string) error {
	flags := dc.deps.Config.Flags
	coord := dc.deps.Coordinator

	req := domain.DebugRequest{
		Project:      flags.Project,
		AttachedPath: flags.AttachedPath,
		StreamPath:   flags.StreamPath,
		OutputPath:   flags.OutputPath,
		IDs:          args,
	}
	if req.AttachedPath == "" {
		req.AttachedPath = coord.ScratchPath("attached")
	}
	if req.StreamPath == "" {
		req.StreamPath = coord.ScratchPath("stream")
	}
	if req.OutputPath == "" {
		req.OutputPath = coord.ScratchPath("results")
	}

	result := coord.DebugTests(cmd.Context(), req)
	// the test host waits for the debugger after this command returns
	dc.deps.Drain()
	if !result.OK {
		return fmt.Errorf("test host did not report a process id within %s", dc.deps.Config.DebugTimeout)
	}

	fmt.Println(result.PID)
	color.Cyan("Attach a debugger to process %s, then create %s to continue", result.PID, req.AttachedPath)
	color.Cyan("Results will be written to %s", req.OutputPath)
	color.Cyan("Test host output goes to %s", result.ProcessOutputPath)
	return nil
}
