package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/pkg/solver"
)

var (
	fairOnce sync.Once
	fair     *solver.Strategy
)

func fairStrategy(t *testing.T) *solver.Strategy {
	t.Helper()
	fairOnce.Do(func() {
		fair = solver.New(dice.Fair(), solver.Options{})
	})
	return fair
}

func TestCheckpointsNothingStored(t *testing.T) {
	ctx := context.Background()
	c := Checkpoints{File: filepath.Join(t.TempDir(), "missing.strat"), DB: openTestStore(t), Name: "fair"}

	if _, err := c.Load(ctx, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}

	dd := dice.Fair()
	s, err := c.LoadOrNew(ctx, dd, solver.Options{Workers: 2})
	if err != nil {
		t.Fatalf("LoadOrNew() error = %v", err)
	}
	if s.N() != 1 || s.Fingerprint() != solver.Fingerprint(dd) {
		t.Errorf("LoadOrNew() = generation %d, fingerprint %x, want a new Optimal_1 for fair dice", s.N(), s.Fingerprint())
	}
}

func TestCheckpointsSaveBoth(t *testing.T) {
	ctx := context.Background()
	c := Checkpoints{File: filepath.Join(t.TempDir(), "fair.strat"), DB: openTestStore(t), Name: "fair"}
	st := fairStrategy(t)

	save := c.SaveFunc(ctx)
	if save == nil {
		t.Fatal("SaveFunc() = nil with locations configured")
	}
	if err := save(st); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	fromFile, err := Checkpoints{File: c.File}.Load(ctx, nil)
	if err != nil {
		t.Fatalf("Load(file) error = %v", err)
	}
	fromDB, err := Checkpoints{DB: c.DB, Name: c.Name}.Load(ctx, nil)
	if err != nil {
		t.Fatalf("Load(db) error = %v", err)
	}
	for name, got := range map[string]*solver.Strategy{"file": fromFile, "db": fromDB} {
		if got.N() != st.N() || got.Fingerprint() != st.Fingerprint() {
			t.Errorf("%s: generation %d fingerprint %x, want %d %x", name, got.N(), got.Fingerprint(), st.N(), st.Fingerprint())
		}
	}
}

func TestCheckpointsDiceMismatch(t *testing.T) {
	ctx := context.Background()
	c := Checkpoints{File: filepath.Join(t.TempDir(), "fair.strat")}
	if err := c.Save(ctx, fairStrategy(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded [dice.NumDice]dice.Die
	for i := range loaded {
		loaded[i] = dice.FromWeights([dice.NumSides]uint32{1, 1, 1, 1, 1, 5})
	}
	if _, err := c.Load(ctx, &loaded); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() with other dice error = %v, want ErrNotFound", err)
	}
	fairDice := dice.Fair()
	if _, err := c.Load(ctx, &fairDice); err != nil {
		t.Errorf("Load() with matching dice error = %v", err)
	}
}

func TestCheckpointsDisabled(t *testing.T) {
	c, closeFn, err := OpenCheckpoints("", "", "default")
	if err != nil {
		t.Fatalf("OpenCheckpoints() error = %v", err)
	}
	defer closeFn()
	if c.Enabled() {
		t.Error("Enabled() = true with no locations")
	}
	if c.SaveFunc(context.Background()) != nil {
		t.Error("SaveFunc() != nil with no locations")
	}
}

func TestOpenCheckpointsWithDatabase(t *testing.T) {
	c, closeFn, err := OpenCheckpoints("", filepath.Join(t.TempDir(), "db", "farkle.db"), "fair")
	if err != nil {
		t.Fatalf("OpenCheckpoints() error = %v", err)
	}
	defer closeFn()
	if !c.Enabled() || c.DB == nil {
		t.Fatal("catalogue not opened")
	}
	if err := c.Save(context.Background(), fairStrategy(t)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, err := c.DB.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "fair" {
		t.Errorf("List() = %+v, want a single entry named fair", entries)
	}
}
