// Package toolchaintest provides a scripted Commander for tests.
package toolchaintest

import (
	"context"
	"strings"
	"sync"

	"dtp/internal/toolchain"
)

// HandlerFunc answers one toolchain invocation
type HandlerFunc func(dir string, args []string) (toolchain.Result, error)

// Call is one recorded invocation
type Call struct {
	Dir  string
	Args []string
}

// Commander records invocations and answers them with a HandlerFunc.
// It is safe for concurrent use.
type Commander struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// New creates a Commander that answers with h
func New(h HandlerFunc) *Commander {
	return &Commander{Handler: h}
}

func (c *Commander) Run(ctx context.Context, dir string, args ...string) (toolchain.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Dir: dir, Args: append([]string(nil), args...)})
	c.mu.Unlock()

	if c.Handler == nil {
		return toolchain.Result{}, nil
	}
	return c.Handler(dir, args)
}

// Calls returns a copy of the recorded invocations
func (c *Commander) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Count returns how many invocations used the given verb ("build", "msbuild", "sln")
func (c *Commander) Count(verb string) int {
	n := 0
	for _, call := range c.Calls() {
		if len(call.Args) > 0 && call.Args[0] == verb {
			n++
		}
	}
	return n
}

// Reset forgets the recorded invocations
func (c *Commander) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// HasArg reports whether args contains an argument with the given prefix
// and returns its remainder.
func HasArg(args []string, prefix string) (string, bool) {
	for _, a := range args {
		if strings.HasPrefix(a, prefix) {
			return strings.TrimPrefix(a, prefix), true
		}
	}
	return "", false
}
