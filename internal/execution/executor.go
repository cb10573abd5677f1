package execution

import (
	"context"
	"time"

	"dtp/internal/domain"
	"dtp/internal/runner"
)

// Resolver resolves source files to project properties
type Resolver interface {
	Resolve(ctx context.Context, path string) (domain.ProjectInfo, error)
	Refresh(ctx context.Context, path string) (domain.ProjectInfo, error)
	Clear()
}

// Enumerator lists the test projects of a workspace root
type Enumerator interface {
	ListTestProjects(ctx context.Context, root string) ([]string, error)
	Clear()
}

// Builder builds a project, solution or directory
type Builder interface {
	Build(ctx context.Context, target string) error
}

// Invoker submits commands to the runner subprocess
type Invoker interface {
	Invoke(ctx context.Context, cmd runner.Command) error
}

// Waiter waits for a scratch file to be written
type Waiter interface {
	WaitForFile(ctx context.Context, path string, timeout time.Duration) (string, bool)
}

// Discoverer discovers the tests of one source file
type Discoverer interface {
	Discover(ctx context.Context, sourcePath string) domain.DiscoveryResult
}
