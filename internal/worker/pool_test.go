package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/staticstitch/internal/store"
)

// mockFetcher simulates tile downloads for testing.
type mockFetcher struct {
	delay     time.Duration
	failTiles map[string]bool // tiles that should fail
	callCount atomic.Int32

	mu       sync.Mutex
	active   int
	maxSeen  int
	finished []store.Key
}

func (m *mockFetcher) Fetch(ctx context.Context, task Task) (Outcome, error) {
	m.callCount.Add(1)

	m.mu.Lock()
	m.active++
	m.maxSeen = max(m.maxSeen, m.active)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.finished = append(m.finished, task.Key)
		m.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failTiles != nil && m.failTiles[task.Key.Name()] {
		return Outcome{}, errors.New("simulated failure")
	}

	return Outcome{Bytes: 100}, nil
}

func primaryTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Key: store.Key{Layer: store.LayerPrimary, X: i, Y: 0}}
	}
	return tasks
}

func TestPool_BasicExecution(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers: 2,
		Fetcher: fetcher,
	})

	tasks := primaryTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Task.Key, r.Err)
		}
		if r.Outcome.Bytes != 100 {
			t.Errorf("Expected 100 bytes for %s, got %d", r.Task.Key, r.Outcome.Bytes)
		}
	}

	if fetcher.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d fetcher calls, got %d", len(tasks), fetcher.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	fetcher := &mockFetcher{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers: 4,
		Fetcher: fetcher,
	})

	tasks := primaryTasks(8)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// With 4 workers and 8 tasks at 50ms each, should take ~100ms
	maxExpected := 300 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}
	if fetcher.maxSeen > 4 {
		t.Errorf("Expected at most 4 concurrent fetches, saw %d", fetcher.maxSeen)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	fetcher := &mockFetcher{
		delay:     10 * time.Millisecond,
		failTiles: map[string]bool{"1x0": true},
	}

	pool := New(Config{
		Workers: 2,
		Fetcher: fetcher,
	})

	tasks := primaryTasks(3)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Key.Name() != "1x0" {
				t.Errorf("Unexpected failure for %s", r.Task.Key)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	fetcher := &mockFetcher{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers: 2,
		Fetcher: fetcher,
	})

	tasks := primaryTasks(10)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected cancelled results")
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	fetcher := &mockFetcher{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int

	pool := New(Config{
		Workers: 2,
		Fetcher: fetcher,
		OnProgress: func(completed, total, failed int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
		},
	})

	tasks := primaryTasks(3)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != 3 {
		t.Errorf("Expected 3 progress callbacks, got %d", progressCalls.Load())
	}
	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	fetcher := &mockFetcher{}

	pool := New(Config{
		Workers: 2,
		Fetcher: fetcher,
	})

	if results := pool.Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if results := pool.RunBatches(context.Background(), nil, 10); len(results) != 0 {
		t.Errorf("Expected 0 results for empty batches, got %d", len(results))
	}

	if fetcher.callCount.Load() != 0 {
		t.Errorf("Expected 0 fetcher calls for empty tasks, got %d", fetcher.callCount.Load())
	}
}

func TestPool_RunBatchesCompletesEachBatch(t *testing.T) {
	fetcher := &mockFetcher{delay: 5 * time.Millisecond}

	var (
		mu       sync.Mutex
		progress []int
		lastTot  int
	)

	pool := New(Config{
		Workers: 10,
		Fetcher: fetcher,
		OnProgress: func(completed, total, failed int) {
			mu.Lock()
			progress = append(progress, completed)
			lastTot = total
			mu.Unlock()
		},
	})

	tasks := primaryTasks(25)
	results := pool.RunBatches(context.Background(), tasks, 10)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	// batch n finished entirely before any task of batch n+1
	batchOf := func(k store.Key) int { return k.X / 10 }
	for i := 1; i < len(fetcher.finished); i++ {
		if batchOf(fetcher.finished[i]) < batchOf(fetcher.finished[i-1]) {
			t.Fatalf("Task %s finished after %s from a later batch", fetcher.finished[i], fetcher.finished[i-1])
		}
	}
	if fetcher.maxSeen > 10 {
		t.Errorf("Expected at most 10 concurrent fetches, saw %d", fetcher.maxSeen)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(progress) != 25 || progress[len(progress)-1] != 25 {
		t.Errorf("Expected cumulative progress ending at 25, got %v", progress)
	}
	if lastTot != 25 {
		t.Errorf("Expected total=25 in progress, got %d", lastTot)
	}
}

func TestPool_RunBatchesStopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &mockFetcher{delay: 5 * time.Millisecond}

	pool := New(Config{
		Workers: 5,
		Fetcher: fetcher,
		OnProgress: func(completed, total, failed int) {
			if completed == 5 {
				cancel()
			}
		},
	})

	tasks := primaryTasks(20)
	results := pool.RunBatches(ctx, tasks, 5)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}
	if n := fetcher.callCount.Load(); n != 5 {
		t.Errorf("Expected only the first batch to be fetched, got %d calls", n)
	}
	for _, r := range results[5:] {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("Expected %s to be cancelled, got %v", r.Task.Key, r.Err)
		}
	}
}
