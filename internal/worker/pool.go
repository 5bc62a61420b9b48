// Package worker runs tile fetches on a bounded pool of goroutines.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/staticstitch/internal/store"
)

// Fetcher retrieves and stores a single tile.
type Fetcher interface {
	Fetch(ctx context.Context, task Task) (Outcome, error)
}

// Task represents a single tile fetch.
type Task struct {
	Key       store.Key
	URLParams string
	Force     bool
}

// Outcome describes what a successful fetch did.
type Outcome struct {
	Bytes   int
	Skipped bool // the tile already existed and was not fetched again
}

// Result represents the outcome of a task.
type Result struct {
	Task    Task
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Fetcher    Fetcher
	OnProgress ProgressFunc
}

// Pool manages parallel tile fetches.
type Pool struct {
	workers    int
	fetcher    Fetcher
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		fetcher:    cfg.Fetcher,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns results.
// Tasks are processed in parallel by the configured number of workers.
// The function blocks until all tasks complete or the context is cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	return p.run(ctx, tasks, progressBase{total: len(tasks)})
}

// RunBatches splits tasks into consecutive batches of batchSize and runs
// them one after another. Every task of a batch has finished before the
// next batch starts. Once ctx is cancelled the remaining tasks are returned
// with the context error without being fetched.
func (p *Pool) RunBatches(ctx context.Context, tasks []Task, batchSize int) []Result {
	if batchSize <= 0 {
		batchSize = len(tasks)
	}

	results := make([]Result, 0, len(tasks))
	base := progressBase{total: len(tasks)}

	for start := 0; start < len(tasks); start += batchSize {
		end := min(start+batchSize, len(tasks))

		if err := ctx.Err(); err != nil {
			for _, task := range tasks[start:] {
				results = append(results, Result{Task: task, Err: err})
			}
			break
		}

		batch := p.run(ctx, tasks[start:end], base)
		for _, r := range batch {
			base.completed++
			if r.Err != nil {
				base.failed++
			}
		}
		results = append(results, batch...)
	}

	return results
}

// progressBase offsets progress reports of one batch by the work already done.
type progressBase struct {
	completed int
	failed    int
	total     int
}

func (p *Pool) run(ctx context.Context, tasks []Task, base progressBase) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// Feed tasks
	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(base.completed+c, base.total, base.failed+f)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	// tasks never handed to a worker because the context was cancelled
	if len(results) < len(tasks) {
		seen := make(map[store.Key]bool, len(results))
		for _, r := range results {
			seen[r.Task.Key] = true
		}
		for _, task := range tasks {
			if !seen[task.Key] {
				results = append(results, Result{Task: task, Err: ctx.Err()})
			}
		}
	}

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{
				Task: task,
				Err:  ctx.Err(),
			}
			continue
		default:
		}

		start := time.Now()
		outcome, err := p.fetcher.Fetch(ctx, task)

		results <- Result{
			Task:    task,
			Outcome: outcome,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
