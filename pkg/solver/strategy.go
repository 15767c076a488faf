// Package solver computes expected-value tables for a single Farkle turn by
// value iteration.
//
// Generation 1 (Optimal_1) models a player who rolls once and banks the best
// hand. Each further generation lets the player bank part of a roll and roll
// the remaining dice again, using the previous generation's values for the
// continuation. A Strategy is immutable once built: Iterate returns a new
// snapshot, so older generations can be queried while newer ones are built.
package solver

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/perfhash"
	"github.com/yourusername/farklesolver/internal/scoring"
)

// Strategy is one generation of the solver tables.
type Strategy struct {
	scores *ScoreTable
	hold   *HoldTable // nil for generation 1
	bust   *BustTable // shared between generations
	dice   [dice.NumDice]dice.Die
	n      int
}

// New builds Optimal_1 for the given dice: the expected best score of a single
// roll of each dice subset, less the banked score lost when that roll busts.
func New(dd [dice.NumDice]dice.Die, opts Options) *Strategy {
	s := &Strategy{dice: dd, n: 1}
	s.bust = bustProbabilities(&s.dice, opts)

	// Expected best score of one roll depends only on the mask.
	var gain [numMasks]float64
	fill("optimal-1", numMasks, scoring.NumBuckets, opts, func(m int) {
		set := dice.NewSet(&s.dice, dice.Mask(m))
		sum := 0.0
		for outcome, p := range set.Outcomes() {
			sum += p * float64(scoring.BestScore(scoring.Count(outcome)))
		}
		gain[m] = sum
	})

	s.scores = newScoreTable()
	cells := s.scores.Cells()
	bust := s.bust.Cells()
	for i := range cells {
		k := s.scores.Key(i)
		cells[i] = float32(gain[k.Second] - float64(k.First)*float64(bust[k.Second]))
	}
	wrapScores(s.scores)
	return s
}

// Iterate builds the next generation from s. s is left untouched.
func (s *Strategy) Iterate(opts Options) *Strategy {
	next := &Strategy{
		bust: s.bust,
		dice: s.dice,
		n:    s.n + 1,
	}
	next.hold = s.buildHold(opts)
	next.scores = next.buildScores(opts)
	return next
}

// selection is a scoring subset of a roll.
type selection struct {
	points scoring.Points
	remain dice.Mask
	dice   dice.Sample
}

// buildHold computes the hold table from s's score table. The work is split
// by sample: the scoring selections of a roll are found once and then
// evaluated for every score bucket.
func (s *Strategy) buildHold(opts Options) *HoldTable {
	hold := newHoldTable()
	cells := hold.Cells()
	scores := s.scores.Cells()

	fill("hold", sampleCells, scoring.NumBuckets, opts, func(i int) {
		var buf [numMasks]selection
		cands := selections(dice.SampleCodec{}.Decode(perfhash.Hash[dice.Sample](i)), buf[:0])
		for b := 0; b < scoring.NumBuckets; b++ {
			cells[b*sampleCells+i] = bestHold(bucketScore(b), cands, scores)
		}
	})
	return hold
}

// selections appends to dst every selection of roll that is a complete
// scoring hand, in Sample.Selections order.
func selections(roll dice.Sample, dst []selection) []selection {
	present := roll.PresentMask()
	for sel := range roll.Selections() {
		pts := scoring.Score(scoring.Count(sel))
		if pts == 0 {
			continue
		}
		// Empty slots of roll are dice banked earlier; they stay out of play.
		dst = append(dst, selection{points: pts, remain: present &^ sel.PresentMask(), dice: sel})
	}
	return dst
}

// bestHold picks the selection maximising its points plus the value of the
// resulting state in scores. The first of equal candidates wins, and a
// candidate must beat zero to be chosen.
func bestHold(banked scoring.Points, cands []selection, scores []float32) Hold {
	var best Hold
	for _, c := range cands {
		next := scoring.Clamp(int(banked) + int(c.points))
		total := float32(c.points) + scores[next.Bucket()*numMasks+int(c.remain)]
		if total > best.Gain {
			best = Hold{Gain: total, Selection: c.dice}
		}
	}
	return best
}

// buildScores computes the score table from s's hold table: every outcome of
// the roll is worth the better of banking the best hand and stopping, or the
// best hold.
func (s *Strategy) buildScores(opts Options) *ScoreTable {
	best := bestScores()
	hold := s.hold.Cells()
	bust := s.bust.Cells()

	scores := newScoreTable()
	cells := scores.Cells()
	fill("scores", scoreCells, 1, opts, func(i int) {
		k := scores.Key(i)
		b := k.First.Bucket()
		sum := 0.0
		for outcome, p := range dice.NewSet(&s.dice, k.Second).Outcomes() {
			h := int(dice.SampleCodec{}.Encode(outcome))
			v := max(best[h], hold[b*sampleCells+h].Gain)
			sum += p * float64(v)
		}
		cells[i] = float32(sum - float64(k.First)*float64(bust[k.Second]))
	})
	wrapScores(scores)
	return scores
}

// bestScores returns BestScore of every sample, indexed by sample hash.
func bestScores() []float32 {
	out := make([]float32, sampleCells)
	for i := range out {
		s := dice.SampleCodec{}.Decode(perfhash.Hash[dice.Sample](i))
		out[i] = float32(scoring.BestScore(scoring.Count(s)))
	}
	return out
}

// bustProbabilities computes, for every non-empty mask, the probability that
// rolling those dice scores nothing. The empty mask wraps to all six dice.
func bustProbabilities(dd *[dice.NumDice]dice.Die, opts Options) *BustTable {
	t := newBustTable()
	cells := t.Cells()
	fill("bust", numMasks, 1, opts, func(m int) {
		if m == 0 {
			return
		}
		sum := 0.0
		for outcome, p := range dice.NewSet(dd, dice.Mask(m)).Outcomes() {
			if !scoring.NotBusted(scoring.Count(outcome)) {
				sum += p
			}
		}
		cells[m] = float32(sum)
	})
	cells[dice.NoDice] = cells[dice.AllDice]
	return t
}

// N returns the generation number: the strategy is Optimal_N.
func (s *Strategy) N() int {
	return s.n
}

// Dice returns the dice the tables were computed for.
func (s *Strategy) Dice() [dice.NumDice]dice.Die {
	return s.dice
}

// Scores exposes the score table. It must not be modified.
func (s *Strategy) Scores() *ScoreTable {
	return s.scores
}

// BustProbability returns the probability that rolling the masked dice scores
// nothing.
func (s *Strategy) BustProbability(m dice.Mask) float32 {
	return s.bust.Get(m)
}

// QueryScore returns the expected additional score from a state with score
// banked and the masked dice left to roll.
func (s *Strategy) QueryScore(score scoring.Points, m dice.Mask) float32 {
	return s.scores.Get(perfhash.MakePair(score, m))
}

// QueryHold returns the best hold for roll with score banked. Generation 1
// has no hold table and always returns the zero Hold.
func (s *Strategy) QueryHold(score scoring.Points, roll dice.Sample) Hold {
	if s.hold == nil {
		return Hold{}
	}
	return s.hold.Get(perfhash.MakePair(score, roll))
}

// Decision is the strategy's move for a roll.
type Decision struct {
	Keep      dice.Sample // Dice to bank
	Continue  bool        // Roll the remaining dice again
	Bust      bool        // The roll scores nothing
	Terminate float32     // Payoff of banking the best hand and stopping
	Hold      float32     // Payoff of the best hold
}

// QueryDecision decides what to do with roll when score is banked. Stopping
// wins only when its payoff strictly exceeds the hold payoff. A busted roll
// has no scoring selection: Keep is empty and Bust is set.
func (s *Strategy) QueryDecision(score scoring.Points, roll dice.Sample) Decision {
	terminate := float32(scoring.BestScore(scoring.Count(roll)))
	hold := s.QueryHold(score, roll)
	d := Decision{
		Terminate: terminate,
		Hold:      hold.Gain,
		Bust:      terminate == 0,
	}
	if terminate > hold.Gain {
		d.Keep = scoring.BestSelection(roll)
		return d
	}
	d.Keep = hold.Selection
	d.Continue = true
	return d
}

// Remaining returns the dice left to roll after banking keep from roll.
// Banking every die rolled brings all six back.
func Remaining(roll, keep dice.Sample) dice.Mask {
	m := roll.PresentMask() &^ keep.PresentMask()
	if m == dice.NoDice {
		return dice.AllDice
	}
	return m
}

// Fingerprint identifies the dice model, so checkpoints computed for other
// dice can be told apart.
func Fingerprint(dd [dice.NumDice]dice.Die) uint64 {
	var buf [dice.NumDice * dice.NumSides * 8]byte
	off := 0
	for _, d := range dd {
		for _, p := range d.Probabilities() {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(p))
			off += 8
		}
	}
	return xxhash.Sum64(buf[:])
}

// Fingerprint returns the fingerprint of s's dice.
func (s *Strategy) Fingerprint() uint64 {
	return Fingerprint(s.dice)
}
