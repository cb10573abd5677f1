package execution

import (
	"context"
	"sync"
	"time"

	"dtp/internal/domain"
	"dtp/internal/ui"
)

// WorkerPool discovers many source files in parallel
type WorkerPool struct {
	discoverer Discoverer
	workers    int
	progress   *ui.ProgressBar
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(discoverer Discoverer, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{discoverer: discoverer, workers: workers}
}

// SetProgress sets the progress bar for the worker pool
func (wp *WorkerPool) SetProgress(progress *ui.ProgressBar) {
	wp.progress = progress
}

// Execute discovers every file (no fail-fast). Results keep the order of files.
func (wp *WorkerPool) Execute(ctx context.Context, files []string) ([]domain.FileDiscovery, time.Duration) {
	return wp.ExecuteWithOptions(ctx, files, false)
}

// ExecuteWithOptions discovers files, optionally stopping after the first
// failed file. Files never started are left out of the results.
func (wp *WorkerPool) ExecuteWithOptions(ctx context.Context, files []string, failFast bool) ([]domain.FileDiscovery, time.Duration) {
	if len(files) == 0 {
		return nil, 0
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		index int
		path  string
	}
	queue := make(chan job)
	go func() {
		defer close(queue)
		for i, f := range files {
			select {
			case <-ctx.Done():
				return
			case queue <- job{index: i, path: f}:
			}
		}
	}()

	results := make([]*domain.FileDiscovery, len(files))
	var mu sync.Mutex
	var completed, found, failedFiles int
	startTime := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				if ctx.Err() != nil {
					return
				}
				result := wp.discoverer.Discover(ctx, j.path)

				mu.Lock()
				results[j.index] = &domain.FileDiscovery{Path: j.path, Result: result}
				completed++
				found += len(result.Tests)
				if result.Status == domain.StatusFailed {
					failedFiles++
					if failFast {
						cancel()
					}
				}
				if wp.progress != nil {
					wp.progress.Update(completed, found, failedFiles)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wp.progress != nil {
		wp.progress.Finish()
	}

	all := make([]domain.FileDiscovery, 0, completed)
	for _, r := range results {
		if r != nil {
			all = append(all, *r)
		}
	}
	return all, time.Since(startTime)
}
