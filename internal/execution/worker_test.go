package execution

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dtp/internal/domain"
)

// stubDiscoverer reports one test per file and fails files containing "broken"
type stubDiscoverer struct {
	mu    sync.Mutex
	calls int
}

func (d *stubDiscoverer) Discover(ctx context.Context, path string) domain.DiscoveryResult {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if strings.Contains(path, "broken") {
		return domain.DiscoveryResult{Status: domain.StatusFailed, Reason: "boom"}
	}
	return domain.DiscoveryResult{Status: domain.StatusOK, Tests: domain.TestCases{path: {DisplayName: path}}}
}

func TestWorkerPool_Execute(t *testing.T) {
	files := []string{"a.cs", "b.cs", "broken.cs", "c.cs", "d.cs"}
	d := &stubDiscoverer{}
	wp := NewWorkerPool(d, 3)

	results, _ := wp.Execute(context.Background(), files)

	var paths []string
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	if diff := cmp.Diff(files, paths); diff != "" {
		t.Errorf("results out of order (-want +got):\n%s", diff)
	}
	if results[2].Result.Status != domain.StatusFailed {
		t.Errorf("expected broken.cs to fail, got %s", results[2].Result.Status)
	}
	if d.calls != len(files) {
		t.Errorf("expected %d discoveries, got %d", len(files), d.calls)
	}
}

func TestWorkerPool_FailFast(t *testing.T) {
	files := []string{"broken.cs"}
	for i := 0; i < 50; i++ {
		files = append(files, "ok.cs")
	}
	d := &stubDiscoverer{}
	wp := NewWorkerPool(d, 1)

	results, _ := wp.ExecuteWithOptions(context.Background(), files, true)

	if len(results) == 0 || results[0].Result.Status != domain.StatusFailed {
		t.Fatalf("expected the failed file first, got %+v", results)
	}
	if len(results) >= len(files) {
		t.Errorf("expected fail-fast to skip remaining files, got %d results", len(results))
	}
}

func TestWorkerPool_Empty(t *testing.T) {
	wp := NewWorkerPool(&stubDiscoverer{}, 0)
	results, d := wp.Execute(context.Background(), nil)
	if results != nil || d != 0 {
		t.Errorf("expected nothing for no files, got %v in %s", results, d)
	}
}
