package solver

import (
	"math"
	"math/rand/v2"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/scoring"
)

// SimOptions controls a Monte Carlo simulation of turns played by a strategy.
type SimOptions struct {
	Turns    int            // Turns to play (default 10000)
	Start    scoring.Points // Score banked before the turn starts
	Seed     uint64         // RNG seed (0 = random)
	Workers  int            // Parallel workers (0 = GOMAXPROCS)
	MaxRolls int            // Rolls after which a turn is forced to stop (default 100)
	Progress SimProgressFunc
}

// SimProgress reports simulation progress.
type SimProgress struct {
	TurnsCompleted int
	TurnsTotal     int
	Percent        float64
}

// SimProgressFunc is called after each batch of turns completes.
type SimProgressFunc func(SimProgress)

// SimResult summarises simulated turns. Gains are measured the way the score
// table measures them: points banked during the turn, or minus the starting
// score when the turn busts.
type SimResult struct {
	Turns     int
	Mean      float64
	StdDev    float64
	CI        float64 // 95% confidence interval half-width of Mean
	BustRate  float64
	MeanRolls float64
	MaxGain   float64
}

// DefaultSimOptions returns sensible defaults.
func DefaultSimOptions() SimOptions {
	return SimOptions{
		Turns:    10000,
		MaxRolls: 100,
	}
}

type turnResult struct {
	gain  float64
	rolls int
	bust  bool
}

// Simulate plays opts.Turns turns following s's decisions and summarises the
// gains. Turns are split evenly between workers; each worker draws from its
// own PCG stream derived from the seed.
func Simulate(s *Strategy, opts SimOptions) SimResult {
	if opts.Turns <= 0 {
		opts.Turns = 10000
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxRolls <= 0 {
		opts.MaxRolls = 100
	}
	if opts.Seed == 0 {
		opts.Seed = dice.NewSource().Uint64()
	}

	results := make([]turnResult, opts.Turns)
	perWorker := opts.Turns / opts.Workers
	extra := opts.Turns % opts.Workers
	batch := max(1, opts.Turns/20)

	var completed atomic.Int64
	g := errgroup.Group{}
	lo := 0
	for w := 0; w < opts.Workers; w++ {
		n := perWorker
		if w < extra {
			n++
		}
		part := results[lo : lo+n]
		lo += n
		src := rand.NewPCG(opts.Seed, uint64(w))

		g.Go(func() error {
			for i := range part {
				part[i] = playTurn(s, src, opts.Start, opts.MaxRolls)
				if (i+1)%batch == 0 || i == len(part)-1 {
					done := completed.Add(int64(i%batch + 1))
					if opts.Progress != nil {
						opts.Progress(SimProgress{
							TurnsCompleted: int(done),
							TurnsTotal:     opts.Turns,
							Percent:        100 * float64(done) / float64(opts.Turns),
						})
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res := summarise(results)
	log.Info().Int("turns", res.Turns).Float64("mean", res.Mean).Float64("ci", res.CI).
		Float64("bust-rate", res.BustRate).Msg("simulation-complete")
	return res
}

func summarise(results []turnResult) SimResult {
	gains := make([]float64, len(results))
	var busts, rolls int
	maxGain := math.Inf(-1)
	for i, r := range results {
		gains[i] = r.gain
		rolls += r.rolls
		if r.bust {
			busts++
		}
		maxGain = max(maxGain, r.gain)
	}

	res := SimResult{Turns: len(results)}
	if len(results) == 0 {
		return res
	}
	n := float64(len(results))
	res.Mean, res.StdDev = stat.MeanStdDev(gains, nil)
	if len(results) < 2 {
		res.StdDev = 0
	}
	res.CI = 1.96 * res.StdDev / math.Sqrt(n)
	res.BustRate = float64(busts) / n
	res.MeanRolls = float64(rolls) / n
	res.MaxGain = maxGain
	return res
}

// playTurn plays a single turn from start and returns what it gained.
func playTurn(s *Strategy, src rand.Source, start scoring.Points, maxRolls int) turnResult {
	banked := start
	mask := dice.AllDice
	for rolls := 1; ; rolls++ {
		roll := dice.NewSet(&s.dice, mask).Roll(src)
		d := s.QueryDecision(banked, roll)
		if d.Bust {
			return turnResult{gain: -float64(start), rolls: rolls, bust: true}
		}
		banked += scoring.Score(scoring.Count(d.Keep))
		if !d.Continue || rolls >= maxRolls {
			return turnResult{gain: float64(banked - start), rolls: rolls}
		}
		mask = Remaining(roll, d.Keep)
	}
}
