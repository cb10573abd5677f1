// Package runner owns the long-lived test runner subprocess and the line
// protocol used to drive it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"dtp/internal/metrics"
)

// ErrClosed is returned by Invoke after Close
var ErrClosed = errors.New("runner closed")

// Manager serializes commands to a single runner subprocess. The process is
// started on the first command and started again on the first command after
// it exited.
type Manager struct {
	launcher Launcher
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	proc   Process
	closed bool
}

// NewManager creates a Manager. No process is started until Invoke.
func NewManager(launcher Launcher, log *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{launcher: launcher, log: log, metrics: m}
}

// Invoke writes cmd as one line to the runner. It returns once the line is
// written; results are exchanged through the files named in the command.
func (m *Manager) Invoke(ctx context.Context, cmd Command) error {
	line := cmd.String() + "\n"

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}

	proc, err := m.process()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(proc, line); err != nil {
		// a write to a dead process fails; the next Invoke restarts it
		m.proc = nil
		return fmt.Errorf("write %s command: %w", cmd.Verb, err)
	}

	m.metrics.RunnerCommand(cmd.Verb)
	m.log.Debug("runner command sent", "verb", cmd.Verb, "args", len(cmd.Args))
	return nil
}

// process returns the live process, launching one if needed. Callers hold m.mu.
func (m *Manager) process() (Process, error) {
	if m.proc != nil {
		select {
		case <-m.proc.Done():
			m.log.Warn("runner process is gone, restarting")
			m.proc = nil
		default:
			return m.proc, nil
		}
	}

	proc, err := m.launcher.Launch()
	if err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	m.metrics.RunnerStarted()
	m.proc = proc
	return proc, nil
}

// Close kills the runner process, if any. Later commands fail with ErrClosed.
func (m *Manager) Close() error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return m.Shutdown(ctx)
}

// Shutdown closes the runner's input so it finishes the commands already
// sent and exits. The process is killed once ctx is done. Later commands
// fail with ErrClosed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	proc := m.proc
	m.proc = nil
	m.mu.Unlock()

	if proc == nil {
		return nil
	}
	if err := proc.CloseInput(); err != nil {
		m.log.Debug("closing runner input", "error", err)
	}
	select {
	case <-proc.Done():
		return nil
	case <-ctx.Done():
	}
	select {
	case <-proc.Done():
		return nil
	default:
	}
	m.log.Debug("killing runner")
	return proc.Kill()
}
