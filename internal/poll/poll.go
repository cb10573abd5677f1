// Package poll waits for files written asynchronously by another process.
package poll

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"dtp/internal/metrics"
)

// Waiter polls for scratch files. Reads of files that just appeared are
// serialized so two waiters never read a partially flushed file at once.
type Waiter struct {
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	readMu sync.Mutex
}

// NewWaiter creates a Waiter checking every interval
func NewWaiter(clk clock.Clock, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Waiter {
	return &Waiter{clock: clk, interval: interval, log: log, metrics: m}
}

// WaitForFile returns the content of path as soon as it exists and is
// non-empty. It gives up with ok=false when timeout elapses or ctx is done;
// giving up is not an error for the caller.
func (w *Waiter) WaitForFile(ctx context.Context, path string, timeout time.Duration) (content string, ok bool) {
	start := w.clock.Now()
	for {
		if content, ok := w.read(path); ok {
			return content, true
		}
		if w.clock.Since(start) >= timeout {
			w.log.Warn("timed out waiting for file", "path", path, "timeout", timeout)
			w.metrics.PollTimedOut()
			return "", false
		}

		timer := w.clock.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Debug("stopped waiting for file", "path", path, "error", ctx.Err())
			return "", false
		case <-timer.C():
		}
	}
}

func (w *Waiter) read(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", false
	}

	w.readMu.Lock()
	defer w.readMu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}
