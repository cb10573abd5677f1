package ui

import (
	"io"
	"sync"

	"github.com/fatih/color"
)

// Notifier shows user-actionable failures once per key so repeated
// requests hitting the same broken project do not spam the terminal.
type Notifier struct {
	out  io.Writer
	mu   sync.Mutex
	seen map[string]bool
}

// NewNotifier creates a Notifier writing to out
func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out, seen: make(map[string]bool)}
}

// Error reports a failure unless one with the same key was already shown.
// It returns whether the message was written.
func (n *Notifier) Error(key, format string, args ...interface{}) bool {
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen[key] {
		return false
	}
	n.seen[key] = true
	color.New(color.FgRed).Fprintf(n.out, "✗ "+format+"\n", args...)
	return true
}

// Reset forgets which keys were shown
func (n *Notifier) Reset() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = make(map[string]bool)
}
