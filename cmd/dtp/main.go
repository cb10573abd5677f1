package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dtp/internal/cli"
	"dtp/internal/cli/commands"
	"dtp/internal/config"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "dtp",
		Short:         "Discover, run and debug .NET tests",
		Long:          `Finds the tests declared in .NET source files and runs or debugs them through one long-lived test runner, rebuilding projects only when their output changed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	// Commands are wired once flags are parsed
	cmds := commands.NewCommands()
	cmds.Register(rootCmd, &flags, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)

	// an interrupt cuts the wait for the runner short
	closeCtx, cancel := context.WithTimeout(ctx, cfg.RunnerGrace)
	if cerr := cmds.Close(closeCtx); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cerr)
	}
	cancel()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
