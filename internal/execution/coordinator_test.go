package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"dtp/internal/discovery"
	"dtp/internal/domain"
	"dtp/internal/metrics"
	"dtp/internal/poll"
	"dtp/internal/project"
	"dtp/internal/runner"
	"dtp/internal/toolchain"
	"dtp/internal/toolchain/toolchaintest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// fakeProject is a project as seen by the scripted toolchain
type fakeProject struct {
	file   string
	dll    string
	isTest bool
	source string
}

// newFakeProject creates a project manifest, one source file and a built
// artifact under root.
func newFakeProject(t *testing.T, root, name string, isTest bool) fakeProject {
	t.Helper()
	p := fakeProject{
		file:   filepath.Join(root, name, name+".csproj"),
		dll:    filepath.Join(root, name, "bin", "Debug", "net8.0", name+".dll"),
		isTest: isTest,
		source: filepath.Join(root, name, "Tests.cs"),
	}
	writeFile(t, p.file, "<Project />")
	writeFile(t, p.source, "class Tests {}")
	writeFile(t, p.dll, "MZ")
	return p
}

// workspace scripts toolchain answers for a set of projects
func workspace(projects ...fakeProject) toolchaintest.HandlerFunc {
	byFile := make(map[string]fakeProject)
	for _, p := range projects {
		byFile[p.file] = p
	}
	return func(dir string, args []string) (toolchain.Result, error) {
		switch args[0] {
		case "build":
			return toolchain.Result{Stdout: "Build succeeded."}, nil
		case "msbuild":
			p, ok := byFile[args[1]]
			if !ok {
				return toolchain.Result{ExitCode: 1, Stderr: "MSB1009: Project file does not exist."}, nil
			}
			if _, ok := toolchaintest.HasArg(args, "-getItem:Compile"); !ok {
				return toolchain.Result{Stdout: `{"Properties":{"TargetFramework":"net8.0","TargetFrameworks":""}}`}, nil
			}
			return toolchain.Result{Stdout: fmt.Sprintf(
				`{"Properties":{"TargetPath":%q,"MSBuildProjectDirectory":%q,"IsTestProject":"%t"},"Items":{"Compile":[{"Identity":"Tests.cs","FullPath":%q}]}}`,
				p.dll, filepath.Dir(p.file), p.isTest, p.source)}, nil
		}
		return toolchain.Result{ExitCode: 1}, nil
	}
}

// fakeRunner answers discover commands by writing output and then signal
// files, and debug commands by writing the pid file.
type fakeRunner struct {
	mu       sync.Mutex
	commands []runner.Command
	output   domain.DiscoveryOutput
	pid      string
	silent   bool
}

func (r *fakeRunner) Invoke(ctx context.Context, cmd runner.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	if r.silent {
		return nil
	}

	switch cmd.Verb {
	case runner.VerbDiscover:
		data, err := json.Marshal(r.output)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cmd.Args[0], data, 0644); err != nil {
			return err
		}
		return os.WriteFile(cmd.Args[1], []byte("done"), 0644)
	case runner.VerbDebugTests:
		if r.pid != "" {
			return os.WriteFile(cmd.Args[0], []byte(r.pid+"\n"), 0644)
		}
	}
	return nil
}

func (r *fakeRunner) count(verb string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Verb == verb {
			n++
		}
	}
	return n
}

func (r *fakeRunner) last() runner.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commands[len(r.commands)-1]
}

type fixture struct {
	root    string
	fake    *toolchaintest.Commander
	runner  *fakeRunner
	metrics *metrics.Metrics
	coord   *Coordinator
}

func newFixture(t *testing.T, root string, projects ...fakeProject) *fixture {
	t.Helper()
	log := discardLogger()
	f := &fixture{
		root:    root,
		fake:    toolchaintest.New(workspace(projects...)),
		runner:  &fakeRunner{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	tc := toolchain.New(f.fake, log, f.metrics)
	resolver := project.NewResolver(tc, nil, log)
	enumerator := discovery.NewEnumerator(discovery.NewScanner([]string{"bin", "obj"}), tc, resolver, nil, log, 2)
	waiter := poll.NewWaiter(clock.NewClock(), time.Millisecond, log, f.metrics)
	f.coord = NewCoordinator(resolver, enumerator, tc, f.runner, waiter, nil, log, f.metrics, Options{
		Root:             root,
		ScratchDir:       t.TempDir(),
		DiscoveryTimeout: time.Second,
		DebugTimeout:     time.Second,
	})
	return f
}

func twoCases(source string) domain.TestCases {
	return domain.TestCases{
		"id-1": {DisplayName: "Adds", FullyQualifiedName: "App.Tests.Calc.Adds", CodeFilePath: source, LineNumber: 10},
		"id-2": {DisplayName: "Subtracts", FullyQualifiedName: "App.Tests.Calc.Subtracts", CodeFilePath: source, LineNumber: 20},
	}
}

func TestCoordinator_DiscoverWithoutProject(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "loose", "Script.cs")
	writeFile(t, source, "class Script {}")

	f := newFixture(t, root)
	result := f.coord.Discover(context.Background(), source)

	if result.Status != domain.StatusNotFound {
		t.Errorf("expected not-found, got %s", result.Status)
	}
	if len(result.Tests) != 0 {
		t.Errorf("expected no tests, got %v", result.Tests)
	}
	if len(f.runner.commands) != 0 {
		t.Errorf("expected the runner to be untouched, got %v", f.runner.commands)
	}
	if calls := f.fake.Calls(); len(calls) != 0 {
		t.Errorf("expected no toolchain calls, got %v", calls)
	}
}

func TestCoordinator_DiscoverIsServedFromCache(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}
	ctx := context.Background()

	first := f.coord.Discover(ctx, p.source)
	if first.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s (%s)", first.Status, first.Reason)
	}
	if diff := cmp.Diff(twoCases(p.source), first.Tests); diff != "" {
		t.Errorf("tests mismatch (-want +got):\n%s", diff)
	}
	if n := f.fake.Count("build"); n != 1 {
		t.Errorf("expected 1 build, got %d", n)
	}
	if n := f.runner.count(runner.VerbDiscover); n != 1 {
		t.Errorf("expected 1 discover command, got %d", n)
	}

	f.fake.Reset()
	second := f.coord.Discover(ctx, p.source)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second result differs (-first +second):\n%s", diff)
	}
	if calls := f.fake.Calls(); len(calls) != 0 {
		t.Errorf("expected no toolchain calls on the second discovery, got %v", calls)
	}
	if n := f.runner.count(runner.VerbDiscover); n != 1 {
		t.Errorf("expected still 1 discover command, got %d", n)
	}
	if hits := testutil.ToFloat64(f.metrics.DiscoveryCache.WithLabelValues("hit")); hits != 1 {
		t.Errorf("expected 1 cache hit, got %v", hits)
	}
}

func TestCoordinator_DiscoverAfterRebuild(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}
	ctx := context.Background()

	if r := f.coord.Discover(ctx, p.source); r.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s (%s)", r.Status, r.Reason)
	}

	info, err := os.Stat(p.dll)
	if err != nil {
		t.Fatal(err)
	}
	newer := info.ModTime().Add(10 * time.Second)
	if err := os.Chtimes(p.dll, newer, newer); err != nil {
		t.Fatal(err)
	}

	delete(f.runner.output[p.source], "id-2")
	r := f.coord.Discover(ctx, p.source)
	if r.Status != domain.StatusOK {
		t.Fatalf("expected ok, got %s (%s)", r.Status, r.Reason)
	}
	if n := f.runner.count(runner.VerbDiscover); n != 2 {
		t.Errorf("expected a fresh discover command, got %d in total", n)
	}
	if _, ok := r.Tests["id-2"]; ok || len(r.Tests) != 1 {
		t.Errorf("expected the refreshed tests, got %v", r.Tests)
	}
}

func TestCoordinator_ColdDiscoveryCoversWorkspace(t *testing.T) {
	root := t.TempDir()
	a := newFakeProject(t, root, "A.Tests", true)
	b := newFakeProject(t, root, "B.Tests", true)
	app := newFakeProject(t, root, "App", false)
	f := newFixture(t, root, a, b, app)
	f.runner.output = domain.DiscoveryOutput{
		a.source: twoCases(a.source),
		b.source: {"id-b": {DisplayName: "B", FullyQualifiedName: "B.Tests.B", CodeFilePath: b.source, LineNumber: 3}},
	}
	ctx := context.Background()

	r := f.coord.Discover(ctx, a.source)
	if r.Status != domain.StatusOK || len(r.Tests) != 2 {
		t.Fatalf("unexpected result %+v", r)
	}

	cmd := f.runner.last()
	if cmd.Verb != runner.VerbDiscover {
		t.Fatalf("expected a discover command, got %s", cmd.Verb)
	}
	dlls := strings.Join(cmd.Args[2:], " ")
	if !strings.Contains(dlls, a.dll) || !strings.Contains(dlls, b.dll) {
		t.Errorf("expected both test artifacts in %q", dlls)
	}
	if strings.Contains(dlls, app.dll) {
		t.Errorf("expected no non-test artifact in %q", dlls)
	}

	// B was discovered in the same round
	rb := f.coord.Discover(ctx, b.source)
	if rb.Status != domain.StatusOK || len(rb.Tests) != 1 {
		t.Fatalf("unexpected result %+v", rb)
	}
	if n := f.runner.count(runner.VerbDiscover); n != 1 {
		t.Errorf("expected 1 discover command, got %d", n)
	}
}

func TestCoordinator_DiscoverTimeout(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)
	f.coord.opts.DiscoveryTimeout = 20 * time.Millisecond
	f.runner.silent = true
	ctx := context.Background()

	r := f.coord.Discover(ctx, p.source)
	if r.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", r.Status)
	}
	if got := testutil.ToFloat64(f.metrics.PollTimeouts); got != 1 {
		t.Errorf("expected 1 poll timeout, got %v", got)
	}

	// a failed round is not remembered as a discovery
	f.runner.mu.Lock()
	f.runner.silent = false
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}
	f.runner.mu.Unlock()

	r = f.coord.Discover(ctx, p.source)
	if r.Status != domain.StatusOK || len(r.Tests) != 2 {
		t.Errorf("expected a successful retry, got %+v", r)
	}
	if n := f.runner.count(runner.VerbDiscover); n != 2 {
		t.Errorf("expected 2 discover commands, got %d", n)
	}
}

func TestCoordinator_DiscoverFileWithoutTests(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	helper := filepath.Join(root, "App.Tests", "Helpers.cs")
	writeFile(t, helper, "class Helpers {}")
	f := newFixture(t, root, p)
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}

	r := f.coord.Discover(context.Background(), helper)
	if r.Status != domain.StatusOK {
		t.Errorf("expected ok, got %s (%s)", r.Status, r.Reason)
	}
	if len(r.Tests) != 0 {
		t.Errorf("expected no tests, got %v", r.Tests)
	}
}

func TestCoordinator_DiscoverWithoutArtifact(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	if err := os.Remove(p.dll); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, root, p)

	r := f.coord.Discover(context.Background(), p.source)
	if r.Status != domain.StatusNotFound {
		t.Errorf("expected not-found, got %s", r.Status)
	}
	if n := f.fake.Count("build"); n != 1 {
		t.Errorf("expected a build attempt, got %d", n)
	}
	if len(f.runner.commands) != 0 {
		t.Errorf("expected no runner commands, got %v", f.runner.commands)
	}
}

func TestCoordinator_ClearCache(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}
	ctx := context.Background()

	f.coord.Discover(ctx, p.source)
	f.coord.ClearCache()
	f.fake.Reset()
	f.coord.Discover(ctx, p.source)

	if n := f.runner.count(runner.VerbDiscover); n != 2 {
		t.Errorf("expected discovery to run again after clearing, got %d", n)
	}
	if n := f.fake.Count("msbuild"); n == 0 {
		t.Error("expected project properties to be queried again")
	}
}

func TestCoordinator_RunTests(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)

	tests := []struct {
		name        string
		req         domain.RunRequest
		buildTarget string
	}{
		{
			name:        "workspace build",
			req:         domain.RunRequest{StreamPath: "/s", OutputPath: "/o", ProcessOutputPath: "/p", IDs: []string{"id-1", "id-2"}},
			buildTarget: root,
		},
		{
			name:        "project build",
			req:         domain.RunRequest{Project: p.file, StreamPath: "/s", OutputPath: "/o2", ProcessOutputPath: "/p", IDs: []string{"id-1"}},
			buildTarget: p.file,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.fake.Reset()
			out, err := f.coord.RunTests(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.req.OutputPath {
				t.Errorf("expected output path %s, got %s", tt.req.OutputPath, out)
			}

			calls := f.fake.Calls()
			if len(calls) != 1 || calls[0].Args[0] != "build" || calls[0].Args[1] != tt.buildTarget {
				t.Errorf("expected one build of %s, got %v", tt.buildTarget, calls)
			}
			want := runner.RunTests(tt.req.StreamPath, tt.req.OutputPath, tt.req.ProcessOutputPath, tt.req.IDs).String()
			if got := f.runner.last().String(); got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}
}

func TestCoordinator_DebugTests(t *testing.T) {
	root := t.TempDir()
	f := newFixture(t, root)
	pid := fmt.Sprint(os.Getpid())
	f.runner.pid = pid

	var checked int32
	f.coord.pidExists = func(ctx context.Context, p int32) (bool, error) {
		checked = p
		return true, nil
	}

	req := domain.DebugRequest{AttachedPath: "/a", StreamPath: "/s", OutputPath: "/o", IDs: []string{"id-1"}}
	result := f.coord.DebugTests(context.Background(), req)

	cmd := f.runner.last()
	if diff := cmp.Diff(domain.DebugResult{PID: pid, OK: true, ProcessOutputPath: cmd.Args[4]}, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(result.ProcessOutputPath, ".log") {
		t.Errorf("expected a scratch log for the test host output, got %s", result.ProcessOutputPath)
	}
	if fmt.Sprint(checked) != pid {
		t.Errorf("expected pid %s to be checked, got %d", pid, checked)
	}

	if cmd.Verb != runner.VerbDebugTests {
		t.Fatalf("expected debug-tests, got %s", cmd.Verb)
	}
	if diff := cmp.Diff([]string{"/a", "/s", "/o"}, cmd.Args[1:4]); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(cmd.Args[0], ".pid") || !strings.HasPrefix(filepath.Base(cmd.Args[0]), "dtp-") {
		t.Errorf("unexpected pid file %s", cmd.Args[0])
	}
	if cmd.Args[len(cmd.Args)-1] != "id-1" {
		t.Errorf("expected test ids last, got %v", cmd.Args)
	}
}

func TestCoordinator_DebugTestsTimeout(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.coord.opts.DebugTimeout = 20 * time.Millisecond

	req := domain.DebugRequest{AttachedPath: "/a", StreamPath: "/s", OutputPath: "/o", IDs: []string{"id-1"}}
	result := f.coord.DebugTests(context.Background(), req)
	if result.OK || result.PID != "" {
		t.Errorf("expected no pid, got %+v", result)
	}
	if result.ProcessOutputPath == "" {
		t.Error("expected the test host output path to be reported")
	}
}

func TestCoordinator_RejectsIncompleteRequests(t *testing.T) {
	f := newFixture(t, t.TempDir())

	runs := []domain.RunRequest{
		{OutputPath: "/o", ProcessOutputPath: "/p", IDs: []string{"id-1"}},
		{StreamPath: "/s", OutputPath: "/o", ProcessOutputPath: "/p"},
		{StreamPath: "/s", ProcessOutputPath: "/p", IDs: []string{"id-1"}},
	}
	for _, req := range runs {
		if out, err := f.coord.RunTests(context.Background(), req); err == nil || out != "" {
			t.Errorf("expected %+v to be rejected, got %q, %v", req, out, err)
		}
	}

	result := f.coord.DebugTests(context.Background(), domain.DebugRequest{StreamPath: "/s", OutputPath: "/o", IDs: []string{"id-1"}})
	if result.OK {
		t.Errorf("expected a debug request without attached path to be rejected, got %+v", result)
	}

	if len(f.runner.commands) != 0 {
		t.Errorf("expected no runner commands, got %v", f.runner.commands)
	}
	if n := len(f.fake.Calls()); n != 0 {
		t.Errorf("expected no builds, got %d toolchain calls", n)
	}
}

func TestCoordinator_ScratchPathsAreUnique(t *testing.T) {
	f := newFixture(t, t.TempDir())
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := f.coord.ScratchPath("json")
		if seen[p] {
			t.Fatalf("duplicate scratch path %s", p)
		}
		seen[p] = true
	}
}

func TestCoordinator_ConcurrentDiscover(t *testing.T) {
	root := t.TempDir()
	p := newFakeProject(t, root, "App.Tests", true)
	f := newFixture(t, root, p)
	f.runner.output = domain.DiscoveryOutput{p.source: twoCases(p.source)}

	const n = 8
	results := make([]domain.DiscoveryResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.coord.Discover(context.Background(), p.source)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if diff := cmp.Diff(twoCases(p.source), r.Tests); r.Status != domain.StatusOK || diff != "" {
			t.Errorf("request %d: status %s, tests (-want +got):\n%s", i, r.Status, diff)
		}
	}
	if f.runner.count(runner.VerbDiscover) == 0 {
		t.Error("expected at least one discover command")
	}
}

func TestRoundKey(t *testing.T) {
	a := roundKey([]string{"/ws/B.Tests/B.Tests.dll", "/ws/A.Tests/A.Tests.dll", "/ws/C.Tests/C.Tests.dll"})
	b := roundKey([]string{"/ws/A.Tests/A.Tests.dll", "/ws/C.Tests/C.Tests.dll", "/ws/B.Tests/B.Tests.dll"})
	if a != b {
		t.Errorf("expected the same key for the same artifacts, got %q and %q", a, b)
	}
	if c := roundKey([]string{"/ws/A.Tests/A.Tests.dll"}); c == a {
		t.Errorf("expected different artifact sets to get different keys, got %q", c)
	}

	artifacts := []string{"/b.dll", "/a.dll"}
	roundKey(artifacts)
	if artifacts[0] != "/b.dll" {
		t.Errorf("expected the artifact list to be left untouched, got %v", artifacts)
	}
}
