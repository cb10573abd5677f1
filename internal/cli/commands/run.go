package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dtp/internal/domain"
	"dtp/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	deps *Deps
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(deps *Deps) *RunCommand {
	return &RunCommand{deps: deps}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	flags := rc.deps.Config.Flags
	coord := rc.deps.Coordinator

	req := domain.RunRequest{
		Project:           flags.Project,
		StreamPath:        flags.StreamPath,
		OutputPath:        flags.OutputPath,
		ProcessOutputPath: flags.ProcessOutputPath,
		IDs:               args,
	}
	if req.StreamPath == "" {
		req.StreamPath = coord.ScratchPath("stream")
	}
	if req.OutputPath == "" {
		req.OutputPath = coord.ScratchPath("results")
	}
	if req.ProcessOutputPath == "" {
		req.ProcessOutputPath = coord.ScratchPath("log")
	}

	outputPath, err := coord.RunTests(cmd.Context(), req)
	if err != nil {
		return err
	}
	if flags.NoWait {
		rc.deps.Drain()
		fmt.Println(outputPath)
		return nil
	}

	content, ok := rc.wait(cmd.Context(), outputPath, flags.Timeout)
	if !ok {
		return fmt.Errorf("no test results in %s", outputPath)
	}
	fmt.Println(content)
	color.Green("Results written to %s", outputPath)
	return nil
}

// wait polls for the result file while a spinner runs
func (rc *RunCommand) wait(ctx context.Context, path string, timeout time.Duration) (string, bool) {
	spinner := ui.NewSpinner("Running tests")
	defer spinner.Finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				spinner.Tick()
			}
		}
	}()

	return rc.deps.Waiter.WaitForFile(ctx, path, timeout)
}
