package commands

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"dtp/internal/cli"
	"dtp/internal/config"
)

// Commands holds all CLI commands
type Commands struct {
	Discover *DiscoverCommand
	List     *ListCommand
	Projects *ProjectsCommand
	Run      *RunCommand
	Debug    *DebugCommand
	Serve    *ServeCommand

	deps      *Deps
	logCloser io.Closer
}

// NewCommands creates the command set. Dependencies are built by Setup
// once flags are parsed.
func NewCommands() *Commands {
	return &Commands{}
}

// Setup loads the configuration for flags into cfg and wires every command
func (c *Commands) Setup(flags *cli.Flags, cfg *config.Config) error {
	loaded, err := config.Load(flags.ToConfigFlags())
	if err != nil {
		return err
	}
	*cfg = *loaded

	log, closer, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}
	c.logCloser = closer

	deps := NewDeps(cfg, log)
	c.deps = deps
	c.Discover = NewDiscoverCommand(deps)
	c.List = NewListCommand(deps)
	c.Projects = NewProjectsCommand(deps)
	c.Run = NewRunCommand(deps)
	c.Debug = NewDebugCommand(deps)
	c.Serve = NewServeCommand(deps)
	return nil
}

// Close stops the runner and releases the log file
func (c *Commands) Close(ctx context.Context) error {
	var errs []error
	if c.deps != nil {
		errs = append(errs, c.deps.Close(ctx))
	}
	if c.logCloser != nil {
		errs = append(errs, c.logCloser.Close())
	}
	return errors.Join(errs...)
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.Setup(flags, cfg)
	}
	rootCmd.PersistentFlags().StringVarP(&flags.ProjectPath, "project-path", "C", "", "Workspace root (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Diagnostic log level: debug, info, warn or error")

	// Discover command
	discoverCmd := &cobra.Command{
		Use:   "discover [file...]",
		Short: "Discover tests in source files",
		Long:  "Build the owning projects when needed and list the tests declared in each source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Discover.Execute(cmd, args)
		},
	}
	discoverCmd.Flags().IntVarP(&flags.Processors, "processors", "p", config.DefaultProcessors, "Number of files discovered in parallel")
	discoverCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Folder scanned for source files when no file is given")
	discoverCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter files by name pattern (supports wildcards, e.g., '*Tests.cs')")
	discoverCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop on the first file whose discovery fails")
	discoverCmd.Flags().BoolVarP(&flags.Save, "save", "s", false, "Save a report of the discovered tests")
	rootCmd.AddCommand(discoverCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tests from the last saved report",
		Long:  "Print the tests recorded by the last 'discover --save' without building or running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.List.Execute(cmd, args)
		},
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter files by name pattern")
	rootCmd.AddCommand(listCmd)

	// Projects command
	projectsCmd := &cobra.Command{
		Use:   "projects [root]",
		Short: "List test projects",
		Long:  "List the test projects of the solution under root, or of every project manifest when there is no solution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Projects.Execute(cmd, args)
		},
	}
	rootCmd.AddCommand(projectsCmd)

	// Run command
	runCmd := &cobra.Command{
		Use:   "run <test-id...>",
		Short: "Run tests",
		Long:  "Build, then run the given tests in the runner and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run.Execute(cmd, args)
		},
	}
	runCmd.Flags().StringVar(&flags.Project, "project", "", "Project or solution to build (defaults to the workspace root)")
	runCmd.Flags().StringVar(&flags.StreamPath, "stream", "", "File receiving results as they arrive")
	runCmd.Flags().StringVarP(&flags.OutputPath, "output", "o", "", "File receiving the final results")
	runCmd.Flags().StringVar(&flags.ProcessOutputPath, "process-output", "", "File receiving the test host output")
	runCmd.Flags().BoolVar(&flags.NoWait, "no-wait", false, "Print the output path and return without waiting")
	runCmd.Flags().DurationVar(&flags.Timeout, "timeout", 30*time.Minute, "Maximum time to wait for results")
	rootCmd.AddCommand(runCmd)

	// Debug command
	debugCmd := &cobra.Command{
		Use:   "debug <test-id...>",
		Short: "Start tests for debugging",
		Long:  "Build, start the given tests suspended and print the process id to attach a debugger to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Debug.Execute(cmd, args)
		},
	}
	debugCmd.Flags().StringVar(&flags.Project, "project", "", "Project or solution to build (defaults to the workspace root)")
	debugCmd.Flags().StringVar(&flags.AttachedPath, "attached", "", "File created once the debugger is attached")
	debugCmd.Flags().StringVar(&flags.StreamPath, "stream", "", "File receiving results as they arrive")
	debugCmd.Flags().StringVarP(&flags.OutputPath, "output", "o", "", "File receiving the final results")
	rootCmd.AddCommand(debugCmd)

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-RPC requests on stdin",
		Long:  "Keep one orchestrator and runner alive and answer newline-delimited JSON-RPC requests from stdin on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve.Execute(cmd, args)
		},
	}
	serveCmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	rootCmd.AddCommand(serveCmd)
}
