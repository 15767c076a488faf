package api

import (
	"context"
	"sync/atomic"
	"time"
)

// lane is one bounded class of requests.
type lane struct {
	sem    chan struct{}
	queued atomic.Int64
	active atomic.Int64
	total  atomic.Int64
}

func newLane(limit int) *lane {
	return &lane{sem: make(chan struct{}, limit)}
}

func (l *lane) acquire(ctx context.Context) error {
	l.queued.Add(1)
	defer l.queued.Add(-1)

	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lane) tryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

func (l *lane) release() {
	l.active.Add(-1)
	l.total.Add(1)
	<-l.sem
}

func (l *lane) stats() LaneStats {
	return LaneStats{
		Active: l.active.Load(),
		Queued: l.queued.Load(),
		Total:  l.total.Load(),
		Max:    cap(l.sem),
	}
}

// WorkerPool bounds concurrent request processing. Table lookups (score,
// query, decision) run in the query lane; Monte Carlo simulations run in the
// much narrower simulation lane.
type WorkerPool struct {
	queries     *lane
	simulations *lane
}

// PoolConfig configures the worker pool.
type PoolConfig struct {
	MaxQueries     int // Max concurrent lookups (default: 100)
	MaxSimulations int // Max concurrent simulations (default: 2)
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxQueries:     100,
		MaxSimulations: 2,
	}
}

// NewWorkerPool creates a new worker pool with the given configuration.
func NewWorkerPool(config PoolConfig) *WorkerPool {
	def := DefaultPoolConfig()
	if config.MaxQueries <= 0 {
		config.MaxQueries = def.MaxQueries
	}
	if config.MaxSimulations <= 0 {
		config.MaxSimulations = def.MaxSimulations
	}
	return &WorkerPool{
		queries:     newLane(config.MaxQueries),
		simulations: newLane(config.MaxSimulations),
	}
}

// AcquireQuery waits for a query slot or for ctx to be done.
func (p *WorkerPool) AcquireQuery(ctx context.Context) error {
	return p.queries.acquire(ctx)
}

// TryAcquireQuery takes a query slot if one is free.
func (p *WorkerPool) TryAcquireQuery() bool {
	return p.queries.tryAcquire()
}

// ReleaseQuery returns a query slot.
func (p *WorkerPool) ReleaseQuery() {
	p.queries.release()
}

// AcquireSimulation waits for a simulation slot or for ctx to be done.
func (p *WorkerPool) AcquireSimulation(ctx context.Context) error {
	return p.simulations.acquire(ctx)
}

// TryAcquireSimulation takes a simulation slot if one is free.
func (p *WorkerPool) TryAcquireSimulation() bool {
	return p.simulations.tryAcquire()
}

// ReleaseSimulation returns a simulation slot.
func (p *WorkerPool) ReleaseSimulation() {
	p.simulations.release()
}

// AcquireSimulationWithTimeout waits at most timeout for a simulation slot.
func (p *WorkerPool) AcquireSimulationWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.AcquireSimulation(ctx)
}

// LaneStats describes one lane of the pool.
type LaneStats struct {
	Active int64 `json:"active"`
	Queued int64 `json:"queued"`
	Total  int64 `json:"total"`
	Max    int   `json:"max"`
}

// PoolStats describes the whole pool.
type PoolStats struct {
	Queries     LaneStats `json:"queries"`
	Simulations LaneStats `json:"simulations"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Queries:     p.queries.stats(),
		Simulations: p.simulations.stats(),
	}
}
