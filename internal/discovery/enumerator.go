package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"dtp/internal/domain"
	"dtp/internal/ui"
)

// ProjectResolver resolves a project manifest to its properties
type ProjectResolver interface {
	Resolve(ctx context.Context, path string) (domain.ProjectInfo, error)
}

// SolutionLister lists the projects of a solution manifest
type SolutionLister interface {
	ListSolution(ctx context.Context, solutionFile string) ([]string, error)
}

// Enumerator finds the test projects under a workspace root. Results are
// cached per root for the lifetime of the Enumerator.
type Enumerator struct {
	scanner  *Scanner
	lister   SolutionLister
	resolver ProjectResolver
	notifier *ui.Notifier
	log      *slog.Logger
	workers  int

	mu    sync.Mutex
	cache map[string][]string
}

// NewEnumerator creates an Enumerator resolving up to workers projects at once
func NewEnumerator(scanner *Scanner, lister SolutionLister, resolver ProjectResolver, notifier *ui.Notifier, log *slog.Logger, workers int) *Enumerator {
	if workers <= 0 {
		workers = 1
	}
	return &Enumerator{
		scanner:  scanner,
		lister:   lister,
		resolver: resolver,
		notifier: notifier,
		log:      log,
		workers:  workers,
		cache:    make(map[string][]string),
	}
}

// ListTestProjects returns the absolute paths of the test projects under
// root, in solution (or scan) order.
func (e *Enumerator) ListTestProjects(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if projects, ok := e.cache[root]; ok {
		return append([]string(nil), projects...), nil
	}

	candidates, err := e.candidates(ctx, root)
	if err != nil {
		return nil, err
	}

	isTest := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			info, err := e.resolver.Resolve(gctx, candidate)
			if err != nil {
				// best-effort: a project we cannot evaluate is not a test project
				e.log.Warn("skipping project", "project", candidate, "error", err)
			}
			isTest[i] = info.IsTestProject
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var projects []string
	for i, candidate := range candidates {
		if isTest[i] {
			projects = append(projects, candidate)
		}
	}
	e.log.Debug("listed test projects", "root", root, "candidates", len(candidates), "tests", len(projects))

	e.cache[root] = projects
	return append([]string(nil), projects...), nil
}

// candidates returns the projects of the solution under root, or every
// manifest under root when there is no usable solution.
func (e *Enumerator) candidates(ctx context.Context, root string) ([]string, error) {
	solution, err := e.scanner.FindSolution(root)
	if err != nil {
		return nil, err
	}

	if solution != "" {
		projects, err := e.lister.ListSolution(ctx, solution)
		if err == nil {
			return projects, nil
		}
		e.log.Error("failed to list solution projects, scanning instead", "solution", solution, "error", err)
		e.notifier.Error("sln:"+solution, "Could not list projects of %s: %v", filepath.Base(solution), err)
	} else {
		e.log.Info("no solution file found, scanning for projects", "root", root)
	}

	return e.scanner.ScanProjects(root)
}

// Clear drops the cached listings
func (e *Enumerator) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string][]string)
}
