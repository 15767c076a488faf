package solver

import (
	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/perfhash"
	"github.com/yourusername/farklesolver/internal/scoring"
)

// ScoreKey is a banked score together with the dice still available.
type ScoreKey = perfhash.Pair[scoring.Points, dice.Mask]

// ScoreCodec hashes a ScoreKey as bucket*64 + mask.
type ScoreCodec = perfhash.PairCodec[scoring.Points, dice.Mask, scoring.BucketCodec, dice.MaskCodec]

// ScoreTable holds the expected additional score of each (score, dice) state.
type ScoreTable = perfhash.Map[ScoreKey, float32, ScoreCodec]

// HoldKey is a banked score together with the dice just rolled.
type HoldKey = perfhash.Pair[scoring.Points, dice.Sample]

// HoldCodec hashes a HoldKey as bucket*7^6 + sample.
type HoldCodec = perfhash.PairCodec[scoring.Points, dice.Sample, scoring.BucketCodec, dice.SampleCodec]

// Hold is the best payoff for banking part of a roll and rolling the rest
// again, along with the dice to bank. The zero Hold means no scoring
// selection improves on doing nothing.
type Hold struct {
	Gain      float32
	Selection dice.Sample
}

// HoldTable holds the best Hold of each (score, roll) state.
type HoldTable = perfhash.Map[HoldKey, Hold, HoldCodec]

// BustTable holds the probability that rolling the masked dice scores nothing.
type BustTable = perfhash.Map[dice.Mask, float32, dice.MaskCodec]

const (
	numMasks    = 1 << dice.NumDice
	scoreCells  = scoring.NumBuckets * numMasks
	sampleCells = dice.SampleSpace
	holdCells   = scoring.NumBuckets * sampleCells
)

func newScoreTable() *ScoreTable {
	return perfhash.NewMap[ScoreKey, float32, ScoreCodec]()
}

func newHoldTable() *HoldTable {
	return perfhash.NewMap[HoldKey, Hold, HoldCodec]()
}

func newBustTable() *BustTable {
	return perfhash.NewMap[dice.Mask, float32, dice.MaskCodec]()
}

// wrapScores copies the six-dice value of every bucket onto the no-dice
// state: scoring with every die restarts the roll with all six.
func wrapScores(t *ScoreTable) {
	for b := 0; b < scoring.NumBuckets; b++ {
		p := bucketScore(b)
		t.Set(perfhash.MakePair(p, dice.NoDice), t.Get(perfhash.MakePair(p, dice.AllDice)))
	}
}

// bucketScore returns the banked score a table bucket stands for.
func bucketScore(b int) scoring.Points {
	return scoring.BucketCodec{}.Decode(perfhash.Hash[scoring.Points](b))
}
