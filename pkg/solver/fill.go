package solver

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Progress reports how far a table pass has got.
type Progress struct {
	Pass  string // "bust", "optimal-1", "hold" or "scores"
	Done  int    // Cells completed so far
	Total int    // Cells in the pass
}

// Percent returns the completion percentage.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return 100 * float64(p.Done) / float64(p.Total)
}

// ProgressFunc observes table passes. It is called from worker goroutines
// and must be safe for concurrent use.
type ProgressFunc func(Progress)

// Options controls how tables are computed.
type Options struct {
	Workers   int          // Parallel workers (0 = GOMAXPROCS)
	ChunkSize int          // Indices per task (0 = sized from Workers)
	Progress  ProgressFunc // Optional observer
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

func (o Options) chunk(n, workers int) int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	c := n / (workers * 16)
	if c < 1 {
		c = 1
	}
	return c
}

// fill calls cell(i) for every i in [0, n), splitting the range into chunks
// run by a bounded set of goroutines. Each i must write only cells no other
// i touches. width is the number of table cells a single i accounts for in
// progress reports.
func fill(pass string, n, width int, opts Options, cell func(i int)) {
	workers := opts.workers()
	chunk := opts.chunk(n, workers)
	total := n * width
	start := time.Now()

	log.Debug().Str("pass", pass).Int("cells", total).Int("workers", workers).Int("chunk", chunk).Msg("pass-start")

	var done atomic.Int64
	g := errgroup.Group{}
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				cell(i)
			}
			d := done.Add(int64((hi - lo) * width))
			if opts.Progress != nil {
				opts.Progress(Progress{Pass: pass, Done: int(d), Total: total})
			}
			return nil
		})
	}
	// cell never fails; Wait is the join barrier.
	_ = g.Wait()

	log.Info().Str("pass", pass).Int("cells", total).Dur("elapsed", time.Since(start)).Msg("pass-complete")
}
