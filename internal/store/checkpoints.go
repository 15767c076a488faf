package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/pkg/solver"
)

// Checkpoints locates a strategy in a checkpoint file, a catalogue entry, or
// both. Either location may be left unset.
type Checkpoints struct {
	File string       // Checkpoint file path
	DB   *SQLiteStore // Catalogue
	Name string       // Catalogue entry
}

// Load returns the highest generation found in the configured locations
// whose dice match dd. Checkpoints for other dice are skipped with a warning;
// a nil dd accepts any dice. ErrNotFound is returned when nothing matches.
func (c Checkpoints) Load(ctx context.Context, dd *[dice.NumDice]dice.Die) (*solver.Strategy, error) {
	var found []*solver.Strategy

	if c.File != "" {
		s, err := solver.LoadFile(c.File)
		switch {
		case err == nil:
			found = append(found, s)
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("file", c.File).Msg("checkpoint-file-missing")
		default:
			return nil, err
		}
	}
	if c.DB != nil {
		s, err := c.DB.Load(ctx, c.Name)
		switch {
		case err == nil:
			found = append(found, s)
		case errors.Is(err, ErrNotFound):
			log.Debug().Str("name", c.Name).Msg("checkpoint-entry-missing")
		default:
			return nil, err
		}
	}

	var best *solver.Strategy
	for _, s := range found {
		if dd != nil && s.Fingerprint() != solver.Fingerprint(*dd) {
			log.Warn().Int("generation", s.N()).Msg("checkpoint-dice-mismatch")
			continue
		}
		if best == nil || s.N() > best.N() {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	log.Info().Int("generation", best.N()).Msg("checkpoint-loaded")
	return best, nil
}

// LoadOrNew loads the stored strategy for dd, or builds Optimal_1 when none
// is stored.
func (c Checkpoints) LoadOrNew(ctx context.Context, dd [dice.NumDice]dice.Die, opts solver.Options) (*solver.Strategy, error) {
	s, err := c.Load(ctx, &dd)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	log.Info().Msg("building-optimal-1")
	return solver.New(dd, opts), nil
}

// Save writes s to every configured location.
func (c Checkpoints) Save(ctx context.Context, s *solver.Strategy) error {
	if c.File != "" {
		if err := solver.SaveFile(c.File, s); err != nil {
			return err
		}
		log.Info().Str("file", c.File).Int("generation", s.N()).Msg("checkpoint-written")
	}
	if c.DB != nil {
		if err := c.DB.Save(ctx, c.Name, s); err != nil {
			return err
		}
	}
	return nil
}

// SaveFunc adapts Save for solver.NewEngine. It returns nil when no location
// is configured.
func (c Checkpoints) SaveFunc(ctx context.Context) solver.SaveFunc {
	if !c.Enabled() {
		return nil
	}
	return func(s *solver.Strategy) error {
		return c.Save(ctx, s)
	}
}

// Enabled reports whether any location is configured.
func (c Checkpoints) Enabled() bool {
	return c.File != "" || c.DB != nil
}

// OpenCheckpoints opens the catalogue at dbPath, if given, and returns the
// locations along with a function closing them.
func OpenCheckpoints(file, dbPath, name string) (Checkpoints, func() error, error) {
	c := Checkpoints{File: file, Name: name}
	if dbPath == "" {
		return c, func() error { return nil }, nil
	}
	db, err := Open(dbPath)
	if err != nil {
		return Checkpoints{}, nil, fmt.Errorf("open checkpoint catalogue: %w", err)
	}
	c.DB = db
	return c, db.Close, nil
}
