package solver

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/scoring"
)

var (
	optimal1Once sync.Once
	optimal1     *Strategy
)

// fairOptimal1 returns a shared Optimal_1 strategy for six fair dice.
func fairOptimal1(t *testing.T) *Strategy {
	t.Helper()
	optimal1Once.Do(func() {
		optimal1 = New(dice.Fair(), Options{})
	})
	return optimal1
}

func TestNewWrapRule(t *testing.T) {
	s := fairOptimal1(t)
	for b := 0; b < scoring.NumBuckets; b++ {
		p := bucketScore(b)
		if got, want := s.QueryScore(p, dice.NoDice), s.QueryScore(p, dice.AllDice); got != want {
			t.Errorf("QueryScore(%d, none) = %v, want %v", p, got, want)
		}
	}
	if s.N() != 1 {
		t.Errorf("N() = %d, want 1", s.N())
	}
}

func TestOptimal1ExpectedBestScore(t *testing.T) {
	s := fairOptimal1(t)

	// Enumerate the 6^6 equally likely rolls directly.
	var sum float64
	for n := 0; n < 46656; n++ {
		v := n
		var h scoring.Histogram
		for i := 0; i < dice.NumDice; i++ {
			h[v%6]++
			v /= 6
		}
		sum += float64(scoring.BestScore(h))
	}
	want := sum / 46656

	if got := float64(s.QueryScore(0, dice.AllDice)); math.Abs(got-want) > 1e-2 {
		t.Errorf("QueryScore(0, all) = %v, want %v", got, want)
	}
}

func TestOptimal1BustLoss(t *testing.T) {
	s := fairOptimal1(t)
	masks := []dice.Mask{1, 3, 7, 21, dice.AllDice}
	for _, m := range masks {
		base := float64(s.QueryScore(0, m))
		got := float64(s.QueryScore(1000, m))
		want := base - 1000*float64(s.BustProbability(m))
		if math.Abs(got-want) > 1e-2 {
			t.Errorf("QueryScore(1000, %v) = %v, want %v", m, got, want)
		}
	}
}

func TestBustProbabilities(t *testing.T) {
	s := fairOptimal1(t)
	tests := []struct {
		mask dice.Mask
		want float64
	}{
		{0b000001, 4.0 / 6.0},
		{0b100000, 4.0 / 6.0},
		{0b000011, 16.0 / 36.0},
		{0b000111, 60.0 / 216.0},
		{dice.AllDice, 1440.0 / 46656.0},
		{dice.NoDice, 1440.0 / 46656.0},
	}
	for _, tt := range tests {
		if got := float64(s.BustProbability(tt.mask)); math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("BustProbability(%v) = %v, want %v", tt.mask, got, tt.want)
		}
	}
}

func TestBustProbabilitiesLoadedDie(t *testing.T) {
	dd := dice.Fair()
	dd[0] = dice.FromWeights([dice.NumSides]uint32{1, 0, 0, 0, 0, 0})
	bust := bustProbabilities(&dd, Options{Workers: 2})

	for m := dice.Mask(1); m <= dice.AllDice; m++ {
		got := bust.Get(m)
		if m.Has(0) && got != 0 {
			t.Errorf("bust(%v) = %v, want 0 with a die that always rolls 1", m, got)
		}
		if !m.Has(0) && got == 0 {
			t.Errorf("bust(%v) = 0, want > 0", m)
		}
	}
}

func TestProgressReportsEveryCell(t *testing.T) {
	var mu sync.Mutex
	last := map[string]Progress{}
	New(dice.Fair(), Options{
		Workers:   3,
		ChunkSize: 5,
		Progress: func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			if p.Done > last[p.Pass].Done {
				last[p.Pass] = p
			}
		},
	})

	want := map[string]Progress{
		"bust":      {Pass: "bust", Done: 64, Total: 64},
		"optimal-1": {Pass: "optimal-1", Done: 64 * 120, Total: 64 * 120},
	}
	if diff := cmp.Diff(want, last); diff != "" {
		t.Errorf("final progress mismatch (-want +got):\n%s", diff)
	}
}

func TestBestHold(t *testing.T) {
	s := fairOptimal1(t)
	scores := s.Scores().Cells()

	// A single 1 rolled on the last die: bank it and roll all six again.
	roll := dice.Sample{dice.None, dice.None, dice.None, dice.None, dice.None, dice.One}
	got := bestHold(200, selections(roll, nil), scores)
	want := Hold{Gain: 100 + s.QueryScore(300, dice.AllDice), Selection: roll}
	if got != want {
		t.Errorf("bestHold(200, %v) = %+v, want %+v", roll, got, want)
	}

	// 1 and 5 on two dice: three candidates, in selection order.
	roll = dice.Sample{dice.One, dice.Five}
	cands := []struct {
		keep dice.Sample
		gain float32
	}{
		{dice.Sample{dice.One, dice.Five}, 150 + s.QueryScore(150, dice.AllDice)},
		{dice.Sample{dice.None, dice.Five}, 50 + s.QueryScore(50, 0b000001)},
		{dice.Sample{dice.One}, 100 + s.QueryScore(100, 0b000010)},
	}
	var best Hold
	for _, c := range cands {
		if c.gain > best.Gain {
			best = Hold{Gain: c.gain, Selection: c.keep}
		}
	}
	if got := bestHold(0, selections(roll, nil), scores); got != best {
		t.Errorf("bestHold(0, %v) = %+v, want %+v", roll, got, best)
	}

	// Nothing scores: the zero Hold.
	roll = dice.Sample{dice.Two, dice.Three, dice.Four, dice.Six}
	if got := bestHold(0, selections(roll, nil), scores); got != (Hold{}) {
		t.Errorf("bestHold(0, %v) = %+v, want zero", roll, got)
	}
}

func TestSelectionsSkipIncompleteHands(t *testing.T) {
	roll := dice.Sample{dice.One, dice.Two, dice.Five}
	got := selections(roll, nil)
	if len(got) != 3 {
		t.Fatalf("selections(%v) = %d candidates, want 3", roll, len(got))
	}
	for _, c := range got {
		if c.dice[1] != dice.None {
			t.Errorf("selection %v keeps the unscorable 2", c.dice)
		}
		if c.remain&c.dice.PresentMask() != 0 {
			t.Errorf("selection %v: remaining %v overlaps kept dice", c.dice, c.remain)
		}
	}
}

func TestQueryDecisionOptimal1(t *testing.T) {
	s := fairOptimal1(t)

	roll := dice.Sample{dice.One, dice.Two, dice.Two, dice.Three, dice.Five, dice.Six}
	d := s.QueryDecision(500, roll)
	if d.Continue || d.Bust {
		t.Errorf("QueryDecision(%v) = %+v, want stop", roll, d)
	}
	if want := (dice.Sample{dice.One, dice.None, dice.None, dice.None, dice.Five}); d.Keep != want {
		t.Errorf("Keep = %v, want %v", d.Keep, want)
	}
	if d.Terminate != 150 {
		t.Errorf("Terminate = %v, want 150", d.Terminate)
	}

	bust := dice.Sample{dice.Two, dice.Three, dice.Four, dice.Six}
	d = s.QueryDecision(500, bust)
	if !d.Bust {
		t.Errorf("QueryDecision(%v).Bust = false, want true", bust)
	}
	if d.Keep != (dice.Sample{}) {
		t.Errorf("QueryDecision(%v).Keep = %v, want empty", bust, d.Keep)
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		roll, keep dice.Sample
		want       dice.Mask
	}{
		{dice.Sample{dice.One, dice.Two, dice.Three}, dice.Sample{dice.One}, 0b000110},
		{dice.Sample{dice.One, dice.Five}, dice.Sample{dice.One, dice.Five}, dice.AllDice},
		{dice.Sample{dice.None, dice.None, dice.Five, dice.Two}, dice.Sample{dice.None, dice.None, dice.Five}, 0b001000},
	}
	for _, tt := range tests {
		if got := Remaining(tt.roll, tt.keep); got != tt.want {
			t.Errorf("Remaining(%v, %v) = %v, want %v", tt.roll, tt.keep, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	fair := dice.Fair()
	loaded := dice.Fair()
	loaded[3] = dice.FromWeights([dice.NumSides]uint32{2, 1, 1, 1, 1, 1})

	if Fingerprint(fair) != Fingerprint(dice.Fair()) {
		t.Error("Fingerprint differs for identical dice")
	}
	if Fingerprint(fair) == Fingerprint(loaded) {
		t.Error("Fingerprint equal for different dice")
	}
	if fairOptimal1(t).Fingerprint() != Fingerprint(fair) {
		t.Error("Strategy.Fingerprint does not match its dice")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := fairOptimal1(t)

	var buf bytes.Buffer
	if err := WriteCheckpoint(&buf, s); err != nil {
		t.Fatalf("WriteCheckpoint() error = %v", err)
	}
	got, err := ReadCheckpoint(&buf)
	if err != nil {
		t.Fatalf("ReadCheckpoint() error = %v", err)
	}
	assertSameStrategy(t, s, got)
}

func TestCheckpointRejectsCorruption(t *testing.T) {
	s := fairOptimal1(t)
	var buf bytes.Buffer
	if err := WriteCheckpoint(&buf, s); err != nil {
		t.Fatalf("WriteCheckpoint() error = %v", err)
	}
	data := buf.Bytes()

	flipped := bytes.Clone(data)
	flipped[headerSize+100] ^= 0xff

	badMagic := bytes.Clone(data)
	copy(badMagic, "notfarkle")

	badHold := bytes.Clone(data)
	copy(badHold, []byte("farkle-strat v1 n=2 hold=0"))

	tests := []struct {
		name string
		data []byte
	}{
		{"flipped byte", flipped},
		{"truncated", data[:len(data)-20]},
		{"short header", data[:10]},
		{"bad magic", badMagic},
		{"generation without hold table", badHold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCheckpoint(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrBadCheckpoint) {
				t.Errorf("ReadCheckpoint() error = %v, want ErrBadCheckpoint", err)
			}
		})
	}
}

func TestSaveLoadFile(t *testing.T) {
	s := fairOptimal1(t)
	path := filepath.Join(t.TempDir(), "optimal1.strat")

	if err := SaveFile(path, s); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	assertSameStrategy(t, s, got)

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadFile(missing) error = nil")
	}
}

func TestSimulateOptimal1(t *testing.T) {
	s := fairOptimal1(t)
	res := Simulate(s, SimOptions{Turns: 20000, Seed: 42, Workers: 4})

	if res.Turns != 20000 {
		t.Fatalf("Turns = %d, want 20000", res.Turns)
	}
	// Optimal_1 never rolls twice.
	if res.MeanRolls != 1 {
		t.Errorf("MeanRolls = %v, want 1", res.MeanRolls)
	}
	want := float64(s.QueryScore(0, dice.AllDice))
	if tol := 6 * res.StdDev / math.Sqrt(float64(res.Turns)); math.Abs(res.Mean-want) > tol {
		t.Errorf("Mean = %v, want %v +/- %v", res.Mean, want, tol)
	}
	if math.Abs(res.BustRate-float64(s.BustProbability(dice.AllDice))) > 0.01 {
		t.Errorf("BustRate = %v, want about %v", res.BustRate, s.BustProbability(dice.AllDice))
	}
}

func TestSimulateDeterministicSeed(t *testing.T) {
	s := fairOptimal1(t)
	opts := SimOptions{Turns: 500, Seed: 7, Workers: 3, Start: 300}
	a := Simulate(s, opts)
	b := Simulate(s, opts)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Simulate with a fixed seed differs (-first +second):\n%s", diff)
	}
}

func TestSimulateProgress(t *testing.T) {
	s := fairOptimal1(t)
	var mu sync.Mutex
	maxDone := 0
	Simulate(s, SimOptions{Turns: 1000, Seed: 1, Workers: 4, Progress: func(p SimProgress) {
		mu.Lock()
		defer mu.Unlock()
		maxDone = max(maxDone, p.TurnsCompleted)
	}})
	if maxDone != 1000 {
		t.Errorf("final TurnsCompleted = %d, want 1000", maxDone)
	}
}

func TestEngineBusy(t *testing.T) {
	e := NewEngine(fairOptimal1(t), nil)
	e.running.Store(true)
	if _, err := e.Advance(1, Options{}); !errors.Is(err, ErrBusy) {
		t.Errorf("Advance() error = %v, want ErrBusy", err)
	}
}

func TestIterate(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the full hold table")
	}

	s1 := fairOptimal1(t)
	before := float32Bytes(s1.Scores().Cells())

	var saved []int
	e := NewEngine(s1, func(s *Strategy) error {
		saved = append(saved, s.N())
		return nil
	})
	var mu sync.Mutex
	passes := map[string]bool{}
	unsubscribe := e.Subscribe(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		passes[p.Pass] = true
	})
	defer unsubscribe()

	done, err := e.Advance(1, Options{})
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Advance() result = %v", err)
	}
	if e.Running() {
		t.Error("Running() = true after completion")
	}
	if diff := cmp.Diff([]int{2}, saved); diff != "" {
		t.Errorf("saved generations mismatch (-want +got):\n%s", diff)
	}
	if !passes["hold"] || !passes["scores"] {
		t.Errorf("progress passes = %v, want hold and scores", passes)
	}

	s2 := e.Current()
	if s2.N() != 2 {
		t.Fatalf("N() = %d, want 2", s2.N())
	}
	if !bytes.Equal(before, float32Bytes(s1.Scores().Cells())) {
		t.Error("Iterate modified the previous generation")
	}

	for b := 0; b < scoring.NumBuckets; b++ {
		p := bucketScore(b)
		if s2.QueryScore(p, dice.NoDice) != s2.QueryScore(p, dice.AllDice) {
			t.Errorf("wrap rule broken at score %d", p)
		}
		// Generation 2 adds an option to every roll, so no state gets worse.
		for m := dice.Mask(1); m <= dice.AllDice; m++ {
			if s2.QueryScore(p, m) < s1.QueryScore(p, m)-1e-2 {
				t.Fatalf("QueryScore(%d, %v): generation 2 = %v < generation 1 = %v", p, m, s2.QueryScore(p, m), s1.QueryScore(p, m))
			}
		}
	}

	// The hold table agrees with a direct evaluation against generation 1.
	rolls := []dice.Sample{
		{dice.One, dice.Five, dice.Two, dice.Two, dice.Three, dice.Four},
		{dice.Five},
		{dice.None, dice.One, dice.One, dice.One},
	}
	for _, roll := range rolls {
		for _, p := range []scoring.Points{0, 350, 2000} {
			want := bestHold(p, selections(roll, nil), s1.Scores().Cells())
			if got := s2.QueryHold(p, roll); got != want {
				t.Errorf("QueryHold(%d, %v) = %+v, want %+v", p, roll, got, want)
			}
		}
	}

	// With nothing banked, a lone 5 on six dice is worth rolling on.
	roll := dice.Sample{dice.Five, dice.Two, dice.Two, dice.Three, dice.Three, dice.Six}
	d := s2.QueryDecision(0, roll)
	if !d.Continue {
		t.Errorf("QueryDecision(0, %v) = %+v, want continue", roll, d)
	}
	if d.Keep != (dice.Sample{dice.Five}) {
		t.Errorf("QueryDecision(0, %v).Keep = %v, want [5 _ _ _ _ _]", roll, d.Keep)
	}

	path := filepath.Join(t.TempDir(), "optimal2.strat")
	if err := SaveFile(path, s2); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	assertSameStrategy(t, s2, loaded)
}

func assertSameStrategy(t *testing.T, want, got *Strategy) {
	t.Helper()
	if got.N() != want.N() {
		t.Errorf("N() = %d, want %d", got.N(), want.N())
	}
	if diff := cmp.Diff(want.Dice(), got.Dice(), cmp.AllowUnexported(dice.Die{})); diff != "" {
		t.Errorf("dice mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.bust.Cells(), got.bust.Cells()); diff != "" {
		t.Errorf("bust table mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(float32Bytes(want.scores.Cells()), float32Bytes(got.scores.Cells())) {
		t.Error("score table mismatch")
	}
	if (want.hold == nil) != (got.hold == nil) {
		t.Fatalf("hold table presence = %v, want %v", got.hold != nil, want.hold != nil)
	}
	if want.hold != nil {
		w, g := want.hold.Cells(), got.hold.Cells()
		for i := range w {
			if w[i] != g[i] {
				t.Fatalf("hold cell %d = %+v, want %+v", i, g[i], w[i])
			}
		}
	}
}

func float32Bytes(vals []float32) []byte {
	out := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		b := math.Float32bits(v)
		out = append(out, byte(b), byte(b>>8), byte(b>>16), byte(b>>24))
	}
	return out
}
