package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Result is the outcome of one toolchain process
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns stdout and stderr joined, the way a terminal shows them
func (r Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Commander runs one toolchain command to completion
type Commander interface {
	Run(ctx context.Context, dir string, args ...string) (Result, error)
}

// ExecCommander runs the dotnet executable as a child process
type ExecCommander struct {
	Path string
}

// NewExecCommander creates a Commander for the given executable
func NewExecCommander(path string) *ExecCommander {
	return &ExecCommander{Path: path}
}

// Run executes the toolchain. A non-zero exit is reported through
// Result.ExitCode; the error is only set when the process could not run.
func (c *ExecCommander) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = dir

	// Keep output parseable regardless of the user's locale
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "DOTNET_CLI_UI_LANGUAGE=en", "DOTNET_NOLOGO=1", "DOTNET_CLI_TELEMETRY_OPTOUT=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
