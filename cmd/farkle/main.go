// farkle - computes and queries optimal single-turn Farkle strategies
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/farklesolver/internal/config"
	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/logging"
	"github.com/yourusername/farklesolver/internal/scoring"
	"github.com/yourusername/farklesolver/internal/store"
	"github.com/yourusername/farklesolver/pkg/solver"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadSolver()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogPretty); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "solve":
		cmdSolve(cfg, args)
	case "score":
		cmdScore(args)
	case "decide":
		cmdDecide(cfg, args)
	case "query":
		cmdQuery(cfg, args)
	case "simulate":
		cmdSimulate(cfg, args)
	case "list":
		cmdList(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`farkle - Farkle turn strategy solver

Usage: farkle <command> [options]

Commands:
  solve     Build or extend a strategy and save it
  score     Score a roll
  decide    Show what to keep from a roll and whether to roll again
  query     Expected additional score of a turn state
  simulate  Play turns with a strategy and summarise the results
  list      List the strategies stored in a catalogue

Use "farkle <command> -h" for command-specific help.

Rolls are written as face values, e.g. "1,5,5,2,3,6".
Dice masks mark the dice left to roll by slot, e.g. "110000".

Environment: FARKLE_CHECKPOINT, FARKLE_DB, FARKLE_STRATEGY, FARKLE_DICE_FILE,
FARKLE_WORKERS, FARKLE_GENERATIONS, FARKLE_LOG_LEVEL, FARKLE_LOG_PRETTY.`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// strategyFlags are the flags locating a strategy, shared by the commands
// that need one.
type strategyFlags struct {
	checkpoint *string
	db         *string
	name       *string
	diceFile   *string
	workers    *int
}

func addStrategyFlags(fs *flag.FlagSet, cfg config.Solver) *strategyFlags {
	return &strategyFlags{
		checkpoint: fs.String("checkpoint", cfg.Checkpoint, "Strategy checkpoint file"),
		db:         fs.String("db", cfg.Database, "SQLite checkpoint catalogue"),
		name:       fs.String("name", cfg.Name, "Catalogue entry name"),
		diceFile:   fs.String("dice", cfg.DiceFile, "YAML dice model (default: six fair dice)"),
		workers:    fs.Int("workers", cfg.Workers, "Table fill workers (0 = auto)"),
	}
}

func (f *strategyFlags) dice() ([dice.NumDice]dice.Die, error) {
	if *f.diceFile == "" {
		return dice.Fair(), nil
	}
	return config.LoadDiceFile(*f.diceFile)
}

// open locates the checkpoint, loading the stored strategy or building
// Optimal_1 when there is none.
func (f *strategyFlags) open(ctx context.Context, opts solver.Options) (*solver.Strategy, store.Checkpoints, func() error) {
	dd, err := f.dice()
	exitOnError(err)
	cp, closeFn, err := store.OpenCheckpoints(*f.checkpoint, *f.db, *f.name)
	exitOnError(err)
	s, err := cp.LoadOrNew(ctx, dd, opts)
	if err != nil {
		closeFn()
		exitOnError(err)
	}
	return s, cp, closeFn
}

// progressPrinter prints pass progress on one terminal line.
func progressPrinter() solver.ProgressFunc {
	var mu sync.Mutex
	last := -1
	return func(p solver.Progress) {
		mu.Lock()
		defer mu.Unlock()
		pct := int(p.Percent())
		if pct == last && p.Done != p.Total {
			return
		}
		last = pct
		fmt.Fprintf(os.Stderr, "\r  %-10s %3d%%", p.Pass, pct)
		if p.Done == p.Total {
			fmt.Fprintln(os.Stderr)
			last = -1
		}
	}
}

func cmdSolve(cfg config.Solver, args []string) {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	sf := addStrategyFlags(fs, cfg)
	generations := fs.Int("generations", cfg.Generations, "Generation to reach (Optimal_N)")
	progress := fs.Bool("progress", true, "Show pass progress")
	fs.Parse(args)

	if *generations < 1 {
		exitOnError(fmt.Errorf("generations must be at least 1, got %d", *generations))
	}
	if *sf.checkpoint == "" && *sf.db == "" {
		fmt.Fprintln(os.Stderr, "Error: nowhere to save the strategy")
		fmt.Fprintln(os.Stderr, "Usage: farkle solve -checkpoint <file> | -db <catalogue> [-generations N]")
		os.Exit(1)
	}

	opts := solver.Options{Workers: *sf.workers}
	if *progress {
		opts.Progress = progressPrinter()
	}

	ctx := context.Background()
	start := time.Now()
	s, cp, closeFn := sf.open(ctx, opts)
	s, err := solve(ctx, s, cp, *generations, opts)
	closeFn()
	exitOnError(err)

	fmt.Printf("Strategy Optimal_%d ready (%.1fs)\n", s.N(), time.Since(start).Seconds())
	fmt.Printf("  Expected turn score: %.1f\n", s.QueryScore(0, dice.AllDice))
	fmt.Printf("  Bust chance (6 dice): %.2f%%\n", 100*s.BustProbability(dice.AllDice))
}

// solve iterates s up to Optimal_generations, saving every generation it
// reaches. A freshly built Optimal_1 is saved too.
func solve(ctx context.Context, s *solver.Strategy, cp store.Checkpoints, generations int, opts solver.Options) (*solver.Strategy, error) {
	if s.N() == 1 {
		if err := cp.Save(ctx, s); err != nil {
			return s, err
		}
	}
	for s.N() < generations {
		genStart := time.Now()
		s = s.Iterate(opts)
		if err := cp.Save(ctx, s); err != nil {
			return s, err
		}
		fmt.Printf("Optimal_%d built in %.1fs\n", s.N(), time.Since(genStart).Seconds())
	}
	return s, nil
}

func cmdScore(args []string) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	rollFlag := fs.String("roll", "", "Roll (e.g., 1,5,5,2,3,6)")
	rollShort := fs.String("r", "", "Roll (short form)")
	fs.Parse(args)

	roll := *rollFlag
	if roll == "" {
		roll = *rollShort
	}
	if roll == "" {
		fmt.Fprintln(os.Stderr, "Error: roll required")
		fmt.Fprintln(os.Stderr, "Usage: farkle score -roll <faces>")
		os.Exit(1)
	}

	sample, err := dice.ParseSample(roll)
	exitOnError(err)
	h := scoring.Count(sample)

	if !scoring.NotBusted(h) {
		fmt.Printf("Roll %v: bust\n", sample)
		return
	}
	combos, left := scoring.Explain(h)
	fmt.Printf("Roll %v\n", sample)
	fmt.Printf("  Score (every die):   %d\n", scoring.Score(h))
	fmt.Printf("  Best score:          %d\n", scoring.BestScore(h))
	fmt.Printf("  Best selection:      %v\n", scoring.BestSelection(sample))
	parts := make([]string, len(combos))
	for i, c := range combos {
		parts[i] = c.String()
	}
	fmt.Printf("  Combinations:        %s\n", strings.Join(parts, ", "))
	if n := left.Len(); n > 0 {
		fmt.Printf("  Unused dice:         %d\n", n)
	}
}

func cmdDecide(cfg config.Solver, args []string) {
	fs := flag.NewFlagSet("decide", flag.ExitOnError)
	sf := addStrategyFlags(fs, cfg)
	rollFlag := fs.String("roll", "", "Roll (e.g., 1,5,5,2,3,6)")
	score := fs.Int("score", 0, "Points banked this turn before the roll")
	fs.Parse(args)

	if *rollFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: roll required")
		fmt.Fprintln(os.Stderr, "Usage: farkle decide -roll <faces> [-score N] [-checkpoint file]")
		os.Exit(1)
	}
	if *score < 0 {
		exitOnError(fmt.Errorf("score %d is negative", *score))
	}
	roll, err := dice.ParseSample(*rollFlag)
	exitOnError(err)

	s, _, closeFn := sf.open(context.Background(), solver.Options{Workers: *sf.workers})
	defer closeFn()

	banked := scoring.Clamp(*score)
	d := s.QueryDecision(banked, roll)
	fmt.Printf("Optimal_%d, %d banked, roll %v\n", s.N(), banked, roll)
	switch {
	case d.Bust:
		fmt.Println("  Bust: the turn is over")
	case d.Continue:
		kept := scoring.Score(scoring.Count(d.Keep))
		fmt.Printf("  Keep %v (%d) and roll %s again\n", d.Keep, kept, solver.Remaining(roll, d.Keep))
		fmt.Printf("  Continue: %.1f  Stop: %.1f\n", d.Hold, d.Terminate)
	default:
		fmt.Printf("  Keep %v and stop: %.0f points\n", d.Keep, d.Terminate)
		if s.N() > 1 {
			fmt.Printf("  Continue: %.1f  Stop: %.1f\n", d.Hold, d.Terminate)
		}
	}
}

func cmdQuery(cfg config.Solver, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	sf := addStrategyFlags(fs, cfg)
	score := fs.Int("score", 0, "Points banked this turn")
	maskFlag := fs.String("mask", "111111", "Dice left to roll, by slot")
	fs.Parse(args)

	if *score < 0 {
		exitOnError(fmt.Errorf("score %d is negative", *score))
	}
	mask, err := dice.ParseMask(*maskFlag)
	exitOnError(err)

	s, _, closeFn := sf.open(context.Background(), solver.Options{Workers: *sf.workers})
	defer closeFn()

	banked := scoring.Clamp(*score)
	fmt.Printf("Optimal_%d, %d banked, dice %s\n", s.N(), banked, mask)
	fmt.Printf("  Expected additional score: %.2f\n", s.QueryScore(banked, mask))
	fmt.Printf("  Bust chance:               %.2f%%\n", 100*s.BustProbability(mask))
}

func cmdSimulate(cfg config.Solver, args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	sf := addStrategyFlags(fs, cfg)
	turns := fs.Int("turns", 10000, "Turns to play")
	startScore := fs.Int("start", 0, "Points banked before each turn")
	seed := fs.Uint64("seed", 0, "Random seed (0 = random)")
	maxRolls := fs.Int("max-rolls", 100, "Rolls after which a turn stops")
	fs.Parse(args)

	if *startScore < 0 {
		exitOnError(fmt.Errorf("start %d is negative", *startScore))
	}
	s, _, closeFn := sf.open(context.Background(), solver.Options{Workers: *sf.workers})
	defer closeFn()

	start := scoring.Clamp(*startScore)
	opts := solver.SimOptions{
		Turns:    *turns,
		Start:    start,
		Seed:     *seed,
		Workers:  *sf.workers,
		MaxRolls: *maxRolls,
	}

	began := time.Now()
	res := solver.Simulate(s, opts)
	elapsed := time.Since(began)

	fmt.Printf("Simulation (Optimal_%d, %d turns, %.1fs):\n", s.N(), res.Turns, elapsed.Seconds())
	fmt.Printf("  Mean gain:  %.2f ± %.2f (95%% CI: ±%.2f)\n", res.Mean, res.StdDev, res.CI)
	fmt.Printf("  Expected:   %.2f\n", s.QueryScore(start, dice.AllDice))
	fmt.Printf("  Bust rate:  %.2f%%\n", 100*res.BustRate)
	fmt.Printf("  Rolls/turn: %.2f\n", res.MeanRolls)
	fmt.Printf("  Best turn:  %.0f\n", res.MaxGain)
}

func cmdList(cfg config.Solver, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", cfg.Database, "SQLite checkpoint catalogue")
	fs.Parse(args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: catalogue required")
		fmt.Fprintln(os.Stderr, "Usage: farkle list -db <catalogue>")
		os.Exit(1)
	}
	db, err := store.Open(*dbPath)
	exitOnError(err)
	entries, err := db.List(context.Background())
	db.Close()
	exitOnError(err)
	if len(entries) == 0 {
		fmt.Println("No strategies stored")
		return
	}
	for _, e := range entries {
		fmt.Printf("  %-20s Optimal_%-3d dice %016x  %6.1f MB  %s\n",
			e.Name, e.Generation, e.Fingerprint, float64(e.Size)/(1<<20), e.CreatedAt.Format(time.RFC3339))
	}
}
