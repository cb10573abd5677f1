package domain

import (
	"errors"
	"fmt"
)

// DiscoveryStatus tells apart "no tests" from "could not determine"
type DiscoveryStatus int

const (
	// StatusOK means discovery completed; Tests may still be empty
	StatusOK DiscoveryStatus = iota
	// StatusNotFound means there is no owning project or no build artifact
	StatusNotFound
	// StatusFailed means a toolchain or runner step failed or timed out
	StatusFailed
)

func (s DiscoveryStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s DiscoveryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DiscoveryStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = StatusOK
	case "not-found":
		*s = StatusNotFound
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown discovery status %q", text)
	}
	return nil
}

// DiscoveryResult is the outcome of discovering the tests of one source file
type DiscoveryResult struct {
	Status DiscoveryStatus `json:"status"`
	Tests  TestCases       `json:"tests,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// FileDiscovery pairs a source file with its discovery result
type FileDiscovery struct {
	Path   string
	Result DiscoveryResult
}

// RunRequest describes a run-tests submission
type RunRequest struct {
	Project           string   `json:"project,omitempty"` // Built before running; workspace root when empty
	StreamPath        string   `json:"stream_path"`
	OutputPath        string   `json:"output_path"`
	ProcessOutputPath string   `json:"process_output_path"`
	IDs               []string `json:"ids"`
}

// Validate reports the first missing field. Runner commands are positional,
// so an empty path would shift every argument after it.
func (r RunRequest) Validate() error {
	return requireFields(r.IDs,
		"stream_path", r.StreamPath,
		"output_path", r.OutputPath,
		"process_output_path", r.ProcessOutputPath,
	)
}

// DebugRequest describes a debug-tests submission
type DebugRequest struct {
	Project      string   `json:"project,omitempty"`
	AttachedPath string   `json:"attached_path"`
	StreamPath   string   `json:"stream_path"`
	OutputPath   string   `json:"output_path"`
	IDs          []string `json:"ids"`
}

// Validate reports the first missing field
func (r DebugRequest) Validate() error {
	return requireFields(r.IDs,
		"attached_path", r.AttachedPath,
		"stream_path", r.StreamPath,
		"output_path", r.OutputPath,
	)
}

// ErrNoTests is returned when a request names no test ids
var ErrNoTests = errors.New("ids: at least one test id is required")

// requireFields checks name/value pairs, then the test ids
func requireFields(ids []string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%s is required", pairs[i])
		}
	}
	if len(ids) == 0 {
		return ErrNoTests
	}
	for _, id := range ids {
		if id == "" {
			return errors.New("ids: test ids must not be empty")
		}
	}
	return nil
}

// DebugResult carries the process id the debugger should attach to
type DebugResult struct {
	PID               string `json:"pid,omitempty"`
	OK                bool   `json:"ok"`
	ProcessOutputPath string `json:"process_output_path,omitempty"` // Test host output
}

// DiscoveryReport is the persisted form of a multi-file discovery
type DiscoveryReport struct {
	Timestamp  string          `json:"timestamp"`
	Duration   string          `json:"duration"`
	Workers    int             `json:"workers"`
	TotalFiles int             `json:"total_files"`
	TotalTests int             `json:"total_tests"`
	Files      DiscoveryOutput `json:"files"`
	Failed     []string        `json:"failed,omitempty"`
}
