package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkerPoolBasic(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{
		MaxQueries:     2,
		MaxSimulations: 1,
	})

	ctx := context.Background()
	if err := pool.AcquireQuery(ctx); err != nil {
		t.Fatalf("AcquireQuery: %v", err)
	}

	stats := pool.Stats()
	if stats.Queries.Active != 1 {
		t.Errorf("Queries.Active = %d, want 1", stats.Queries.Active)
	}

	pool.ReleaseQuery()
	stats = pool.Stats()
	if stats.Queries.Active != 0 {
		t.Errorf("Queries.Active after release = %d, want 0", stats.Queries.Active)
	}
	if stats.Queries.Total != 1 {
		t.Errorf("Queries.Total = %d, want 1", stats.Queries.Total)
	}
}

func TestWorkerPoolSimulationLane(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{
		MaxQueries:     10,
		MaxSimulations: 2,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := pool.AcquireSimulation(ctx); err != nil {
			t.Fatalf("AcquireSimulation %d: %v", i, err)
		}
	}
	if got := pool.Stats().Simulations.Active; got != 2 {
		t.Errorf("Simulations.Active = %d, want 2", got)
	}
	if pool.TryAcquireSimulation() {
		t.Error("TryAcquireSimulation succeeded on a full lane")
	}
	// The query lane is independent.
	if !pool.TryAcquireQuery() {
		t.Error("TryAcquireQuery failed while only simulations are busy")
	}
	pool.ReleaseQuery()

	pool.ReleaseSimulation()
	pool.ReleaseSimulation()
	if got := pool.Stats().Simulations.Total; got != 2 {
		t.Errorf("Simulations.Total = %d, want 2", got)
	}
}

func TestWorkerPoolContextCancellation(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxQueries: 1, MaxSimulations: 1})

	ctx := context.Background()
	if err := pool.AcquireQuery(ctx); err != nil {
		t.Fatalf("AcquireQuery: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pool.AcquireQuery(cancelCtx); !errors.Is(err, context.Canceled) {
		t.Errorf("AcquireQuery on cancelled context = %v, want context.Canceled", err)
	}
	if got := pool.Stats().Queries.Queued; got != 0 {
		t.Errorf("Queries.Queued = %d, want 0", got)
	}
	pool.ReleaseQuery()
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxQueries: 5, MaxSimulations: 2})

	var wg sync.WaitGroup
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.AcquireQuery(ctx); err != nil {
				t.Errorf("AcquireQuery: %v", err)
				return
			}
			if got := pool.Stats().Queries.Active; got > 5 {
				t.Errorf("Queries.Active = %d, exceeds limit 5", got)
			}
			time.Sleep(10 * time.Millisecond)
			pool.ReleaseQuery()
		}()
	}
	wg.Wait()

	if got := pool.Stats().Queries.Total; got != 10 {
		t.Errorf("Queries.Total = %d, want 10", got)
	}
}

func TestWorkerPoolTimeout(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxQueries: 1, MaxSimulations: 1})

	if err := pool.AcquireSimulation(context.Background()); err != nil {
		t.Fatalf("AcquireSimulation: %v", err)
	}
	err := pool.AcquireSimulationWithTimeout(10 * time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AcquireSimulationWithTimeout = %v, want context.DeadlineExceeded", err)
	}
	pool.ReleaseSimulation()
}

func TestWorkerPoolDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   PoolConfig
		wantQ    int
		wantSims int
	}{
		{"explicit", PoolConfig{MaxQueries: 10, MaxSimulations: 4}, 10, 4},
		{"zero", PoolConfig{}, 100, 2},
		{"negative", PoolConfig{MaxQueries: -1, MaxSimulations: -3}, 100, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewWorkerPool(tt.config).Stats()
			if stats.Queries.Max != tt.wantQ {
				t.Errorf("Queries.Max = %d, want %d", stats.Queries.Max, tt.wantQ)
			}
			if stats.Simulations.Max != tt.wantSims {
				t.Errorf("Simulations.Max = %d, want %d", stats.Simulations.Max, tt.wantSims)
			}
		})
	}
}
