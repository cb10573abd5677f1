// Package toolchain drives the dotnet CLI: builds, msbuild evaluation
// queries and solution listings.
package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dtp/internal/metrics"
	"dtp/internal/parser"
)

// Error reports a toolchain command that exited non-zero or printed
// something we could not parse.
type Error struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	cmd := "dotnet " + strings.Join(e.Args, " ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s: exit code %d", cmd, e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Toolchain issues dotnet commands through a Commander
type Toolchain struct {
	cmd     Commander
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Toolchain
func New(cmd Commander, log *slog.Logger, m *metrics.Metrics) *Toolchain {
	return &Toolchain{cmd: cmd, log: log, metrics: m}
}

// run executes one command and converts a non-zero exit into *Error.
func (t *Toolchain) run(ctx context.Context, dir string, args ...string) (Result, error) {
	verb := args[0]
	t.metrics.ToolchainInvoked(verb)
	t.log.Debug("running toolchain", "args", args, "dir", dir)

	res, err := t.cmd.Run(ctx, dir, args...)
	if err != nil {
		t.metrics.ToolchainFailed(verb)
		return res, &Error{Args: args, ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		t.metrics.ToolchainFailed(verb)
		t.logOutput(args, res.Output())
		return res, &Error{Args: args, ExitCode: res.ExitCode, Output: res.Output()}
	}
	return res, nil
}

// logOutput writes the multi-line output of a failed command to the diagnostic log.
func (t *Toolchain) logOutput(args []string, out string) {
	t.log.Error("toolchain command failed", "args", args)
	if out == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		t.log.Error("  " + line)
	}
}

// Build builds a project file, solution file or directory.
func (t *Toolchain) Build(ctx context.Context, target string) error {
	_, err := t.run(ctx, workDir(target), "build", target)
	return err
}

// Query evaluates a project and returns the requested properties and items.
// globals are passed as -property: overrides, e.g. a pinned TargetFramework.
func (t *Toolchain) Query(ctx context.Context, projectFile string, properties, items []string, globals map[string]string) (*parser.MSBuildOutput, error) {
	args := []string{"msbuild", projectFile}
	for _, p := range properties {
		args = append(args, "-getProperty:"+p)
	}
	for _, i := range items {
		args = append(args, "-getItem:"+i)
	}
	keys := make([]string, 0, len(globals))
	for k := range globals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-property:%s=%s", k, globals[k]))
	}

	res, err := t.run(ctx, filepath.Dir(projectFile), args...)
	if err != nil {
		return nil, err
	}
	out, err := parser.ParseMSBuild([]byte(res.Stdout))
	if err != nil {
		t.metrics.ToolchainFailed("msbuild")
		t.logOutput(args, res.Output())
		return nil, &Error{Args: args, Output: res.Output(), Err: err}
	}
	return out, nil
}

// ListSolution returns the absolute paths of the projects of a solution.
func (t *Toolchain) ListSolution(ctx context.Context, solutionFile string) ([]string, error) {
	dir := filepath.Dir(solutionFile)
	res, err := t.run(ctx, dir, "sln", solutionFile, "list")
	if err != nil {
		return nil, err
	}
	return parser.ParseSolutionList(res.Stdout, dir), nil
}

func workDir(target string) string {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return target
	}
	return filepath.Dir(target)
}
