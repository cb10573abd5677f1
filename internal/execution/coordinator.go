// Package execution coordinates builds, the runner subprocess and result
// files into discover, run and debug operations.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/singleflight"

	"dtp/internal/domain"
	"dtp/internal/metrics"
	"dtp/internal/parser"
	"dtp/internal/project"
	"dtp/internal/runner"
	"dtp/internal/ui"
)

// Options configures a Coordinator
type Options struct {
	Root             string // workspace root searched on cold discovery
	ScratchDir       string
	DiscoveryTimeout time.Duration
	DebugTimeout     time.Duration
}

// Coordinator owns the discovery cache and drives the runner. All methods
// are safe for concurrent use; the cache lock is never held while waiting
// on the toolchain or the runner.
type Coordinator struct {
	resolver   Resolver
	enumerator Enumerator
	builder    Builder
	runner     Invoker
	waiter     Waiter
	notifier   *ui.Notifier
	log        *slog.Logger
	metrics    *metrics.Metrics
	opts       Options

	newID     func() string
	pidExists func(ctx context.Context, pid int32) (bool, error)

	// concurrent discoveries share builds and runner rounds
	flights singleflight.Group

	mu            sync.Mutex
	cache         map[string]domain.TestCases // source file -> tests
	lastDiscovery map[string]int64            // project file -> artifact mtime (unix seconds)
	pending       map[string]chan struct{}    // project file -> round in flight
}

// NewCoordinator creates a Coordinator
func NewCoordinator(resolver Resolver, enumerator Enumerator, builder Builder, invoker Invoker, waiter Waiter,
	notifier *ui.Notifier, log *slog.Logger, m *metrics.Metrics, opts Options) *Coordinator {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &Coordinator{
		resolver:      resolver,
		enumerator:    enumerator,
		builder:       builder,
		runner:        invoker,
		waiter:        waiter,
		notifier:      notifier,
		log:           log,
		metrics:       m,
		opts:          opts,
		newID:         uuid.NewString,
		pidExists:     process.PidExistsWithContext,
		cache:         make(map[string]domain.TestCases),
		lastDiscovery: make(map[string]int64),
		pending:       make(map[string]chan struct{}),
	}
}

func notFound(reason string) domain.DiscoveryResult {
	return domain.DiscoveryResult{Status: domain.StatusNotFound, Reason: reason}
}

func failed(reason string) domain.DiscoveryResult {
	return domain.DiscoveryResult{Status: domain.StatusFailed, Reason: reason}
}

// Discover returns the tests declared in sourcePath. The owning project is
// built when its artifact changed since the last discovery, and the runner
// is only asked when the cache cannot answer.
func (c *Coordinator) Discover(ctx context.Context, sourcePath string) domain.DiscoveryResult {
	sourcePath, err := filepath.Abs(sourcePath)
	if err != nil {
		return failed(err.Error())
	}
	log := c.log.With("file", sourcePath)

	info, err := c.resolver.Resolve(ctx, sourcePath)
	if errors.Is(err, project.ErrProjectNotFound) {
		log.Info("no project file found")
		return notFound("no project file found")
	}
	if err != nil && info.ProjectFile == "" {
		return failed(err.Error())
	}

	if !c.upToDate(info) {
		c.flights.Do("build:"+info.ProjectFile, func() (interface{}, error) {
			c.build(ctx, info.ProjectFile)
			return nil, nil
		})
		if info, err = c.resolver.Refresh(ctx, sourcePath); err != nil {
			log.Warn("project properties unavailable after build", "error", err)
		}
	}

	mtime, ok := artifactTime(info.OutputPath)
	if !ok {
		log.Warn("no build output", "project", info.ProjectFile, "output", info.OutputPath)
		return notFound("no build output for " + filepath.Base(info.ProjectFile))
	}

	c.mu.Lock()
	last, seen := c.lastDiscovery[info.ProjectFile]
	if seen && mtime <= last {
		round := c.pending[info.ProjectFile]
		c.mu.Unlock()
		c.metrics.CacheLookup(true)
		if round != nil {
			// the timestamp belongs to a round still in flight
			select {
			case <-round:
			case <-ctx.Done():
				return failed(ctx.Err().Error())
			}
		}
		c.mu.Lock()
		last, seen = c.lastDiscovery[info.ProjectFile]
		tests := c.cache[sourcePath]
		c.mu.Unlock()
		if !seen || mtime > last {
			// the round failed and was rolled back
			return failed("discovery round failed")
		}
		return domain.DiscoveryResult{Status: domain.StatusOK, Tests: tests}
	}
	cold := len(c.cache) == 0
	c.mu.Unlock()
	c.metrics.CacheLookup(false)

	scope := []domain.ProjectInfo{info}
	if cold {
		scope = c.coldScope(ctx, info)
	}

	stamps := make(map[string]int64, len(scope))
	var artifacts []string
	for _, p := range scope {
		t, ok := artifactTime(p.OutputPath)
		if !ok {
			log.Debug("skipping unbuilt project", "project", p.ProjectFile)
			continue
		}
		stamps[p.ProjectFile] = t
		artifacts = append(artifacts, p.OutputPath)
	}

	// recorded before the runner reads the artifacts, so a rebuild during
	// discovery leaves a newer mtime behind
	round := make(chan struct{})
	previous := c.record(stamps, round)
	defer c.finish(stamps, round)

	v, err, _ := c.flights.Do(roundKey(artifacts), func() (interface{}, error) {
		return c.discover(ctx, artifacts)
	})
	if err != nil {
		log.Warn("discovery failed", "error", err)
		c.rollback(stamps, previous)
		return failed(err.Error())
	}

	out := v.(domain.DiscoveryOutput)
	c.mu.Lock()
	for file, tests := range out {
		c.cache[filepath.Clean(file)] = tests
	}
	tests := c.cache[sourcePath]
	c.mu.Unlock()

	log.Debug("discovered tests", "tests", len(tests), "files", len(out), "projects", len(artifacts))
	return domain.DiscoveryResult{Status: domain.StatusOK, Tests: tests}
}

// roundKey identifies a discovery round by its artifact set, so rounds
// over the same projects share one flight whatever the request order.
func roundKey(artifacts []string) string {
	sorted := append([]string(nil), artifacts...)
	sort.Strings(sorted)
	return "discover:" + strings.Join(sorted, "\n")
}

// upToDate reports whether the artifact of info is not newer than the last
// discovery of its project.
func (c *Coordinator) upToDate(info domain.ProjectInfo) bool {
	mtime, ok := artifactTime(info.OutputPath)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	last, seen := c.lastDiscovery[info.ProjectFile]
	return seen && mtime <= last
}

// coldScope returns every test project of the workspace plus the project
// that was asked for.
func (c *Coordinator) coldScope(ctx context.Context, info domain.ProjectInfo) []domain.ProjectInfo {
	scope := []domain.ProjectInfo{info}
	projects, err := c.enumerator.ListTestProjects(ctx, c.opts.Root)
	if err != nil {
		c.log.Warn("could not list test projects", "root", c.opts.Root, "error", err)
		return scope
	}
	for _, pf := range projects {
		if filepath.Clean(pf) == info.ProjectFile {
			continue
		}
		p, err := c.resolver.Resolve(ctx, pf)
		if err != nil {
			c.log.Warn("skipping project", "project", pf, "error", err)
			continue
		}
		scope = append(scope, p)
	}
	return scope
}

// record stores the artifact times of a starting round and marks its
// projects pending until finish.
func (c *Coordinator) record(stamps map[string]int64, round chan struct{}) map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := make(map[string]int64, len(stamps))
	for pf, t := range stamps {
		if old, ok := c.lastDiscovery[pf]; ok {
			previous[pf] = old
		}
		c.lastDiscovery[pf] = t
		c.pending[pf] = round
	}
	return previous
}

func (c *Coordinator) finish(stamps map[string]int64, round chan struct{}) {
	c.mu.Lock()
	for pf := range stamps {
		if c.pending[pf] == round {
			delete(c.pending, pf)
		}
	}
	c.mu.Unlock()
	close(round)
}

// rollback restores timestamps recorded for a discovery that produced no
// results, unless another discovery recorded a newer one meanwhile.
func (c *Coordinator) rollback(stamps, previous map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pf, t := range stamps {
		if c.lastDiscovery[pf] != t {
			continue
		}
		if old, ok := previous[pf]; ok {
			c.lastDiscovery[pf] = old
		} else {
			delete(c.lastDiscovery, pf)
		}
	}
}

// discover runs one discovery round in the runner for the given artifacts
func (c *Coordinator) discover(ctx context.Context, artifacts []string) (domain.DiscoveryOutput, error) {
	outputFile := c.ScratchPath("json")
	signalFile := c.ScratchPath("signal")
	defer c.removeScratch(outputFile, signalFile)

	if err := c.runner.Invoke(ctx, runner.Discover(outputFile, signalFile, artifacts)); err != nil {
		return nil, fmt.Errorf("submit discovery: %w", err)
	}
	if _, ok := c.waiter.WaitForFile(ctx, signalFile, c.opts.DiscoveryTimeout); !ok {
		return nil, fmt.Errorf("no discovery signal within %s", c.opts.DiscoveryTimeout)
	}
	content, ok := c.waiter.WaitForFile(ctx, outputFile, c.opts.DiscoveryTimeout)
	if !ok {
		return nil, fmt.Errorf("no discovery output within %s", c.opts.DiscoveryTimeout)
	}
	return parser.ParseDiscoveryOutput([]byte(content))
}

// RunTests builds the requested project (the workspace root when none is
// given) and submits the tests to the runner. It returns as soon as the
// command is written; the caller waits for the returned output path.
func (c *Coordinator) RunTests(ctx context.Context, req domain.RunRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid run request: %w", err)
	}
	c.build(ctx, c.buildTarget(req.Project))

	cmd := runner.RunTests(req.StreamPath, req.OutputPath, req.ProcessOutputPath, req.IDs)
	if err := c.runner.Invoke(ctx, cmd); err != nil {
		c.log.Error("failed to submit tests", "error", err)
		return "", fmt.Errorf("submit run: %w", err)
	}
	c.log.Debug("submitted test run", "tests", len(req.IDs), "output", req.OutputPath)
	return req.OutputPath, nil
}

// DebugTests builds, submits the tests for debugging and waits for the
// process id of the test host to attach to. The test host output goes to a
// scratch file named in the result.
func (c *Coordinator) DebugTests(ctx context.Context, req domain.DebugRequest) domain.DebugResult {
	if err := req.Validate(); err != nil {
		c.log.Error("invalid debug request", "error", err)
		return domain.DebugResult{}
	}
	c.build(ctx, c.buildTarget(req.Project))

	pidFile := c.ScratchPath("pid")
	processOutput := c.ScratchPath("log")
	defer c.removeScratch(pidFile)

	cmd := runner.DebugTests(pidFile, req.AttachedPath, req.StreamPath, req.OutputPath, processOutput, req.IDs)
	if err := c.runner.Invoke(ctx, cmd); err != nil {
		c.log.Error("failed to submit debug run", "error", err)
		return domain.DebugResult{}
	}

	result := domain.DebugResult{ProcessOutputPath: processOutput}
	content, ok := c.waiter.WaitForFile(ctx, pidFile, c.opts.DebugTimeout)
	if !ok {
		return result
	}
	result.PID = strings.TrimSpace(content)
	result.OK = true
	c.checkProcess(ctx, result.PID)
	return result
}

// checkProcess warns when pid does not name a live process. The debugger
// is told about it either way.
func (c *Coordinator) checkProcess(ctx context.Context, pid string) {
	n, err := strconv.ParseInt(pid, 10, 32)
	if err != nil {
		c.log.Warn("test host pid is not numeric", "pid", pid)
		return
	}
	exists, err := c.pidExists(ctx, int32(n))
	if err != nil {
		c.log.Debug("could not check test host process", "pid", pid, "error", err)
		return
	}
	if !exists {
		c.log.Warn("test host process not found", "pid", pid)
	}
}

// ClearCache forgets every discovery, project and solution result
func (c *Coordinator) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]domain.TestCases)
	c.lastDiscovery = make(map[string]int64)
	c.pending = make(map[string]chan struct{})
	c.mu.Unlock()

	c.resolver.Clear()
	c.enumerator.Clear()
	c.notifier.Reset()
	c.log.Info("caches cleared")
}

// ListTestProjects returns the test projects under root, or under the
// workspace root when root is empty.
func (c *Coordinator) ListTestProjects(ctx context.Context, root string) ([]string, error) {
	if root == "" {
		root = c.opts.Root
	}
	return c.enumerator.ListTestProjects(ctx, root)
}

func (c *Coordinator) build(ctx context.Context, target string) {
	start := time.Now()
	if err := c.builder.Build(ctx, target); err != nil {
		c.log.Error("build failed", "target", target, "error", err)
		c.notifier.Error("build:"+target, "Build of %s failed", filepath.Base(target))
		return
	}
	c.log.Debug("build finished", "target", target, "duration", time.Since(start))
}

func (c *Coordinator) buildTarget(project string) string {
	if project != "" {
		return project
	}
	return c.opts.Root
}

// ScratchPath returns a new unique file path in the scratch directory
func (c *Coordinator) ScratchPath(kind string) string {
	return filepath.Join(c.opts.ScratchDir, fmt.Sprintf("dtp-%s.%s", c.newID(), kind))
}

func (c *Coordinator) removeScratch(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Debug("could not remove scratch file", "path", p, "error", err)
		}
	}
}

// artifactTime returns the modification time of a build output in seconds
func artifactTime(path string) (int64, bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().Unix(), true
}
