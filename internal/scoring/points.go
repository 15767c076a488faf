package scoring

import (
	"fmt"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/perfhash"
)

// Points is a Farkle score.
type Points uint32

const (
	// MaxScore is the highest banked score tracked by the solver tables.
	MaxScore Points = 5950
	// BucketWidth is the width of one score bucket.
	BucketWidth = 50
	// NumBuckets is the number of score buckets, covering [0, MaxScore].
	NumBuckets = int(MaxScore)/BucketWidth + 1
)

// Combination point values.
const (
	FullStraightPoints Points = 1500
	HighStraightPoints Points = 750
	LowStraightPoints  Points = 500
	SingleOnePoints    Points = 100
	SingleFivePoints   Points = 50
)

// Clamp limits v to [0, MaxScore].
func Clamp(v int) Points {
	switch {
	case v < 0:
		return 0
	case v > int(MaxScore):
		return MaxScore
	}
	return Points(v)
}

// Bucket returns the bucket index of p.
func (p Points) Bucket() int {
	b := int(p) / BucketWidth
	if b >= NumBuckets {
		return NumBuckets - 1
	}
	return b
}

// BucketCodec hashes scores into NumBuckets buckets of BucketWidth points.
// It is lossy: Decode returns the lower bound of the bucket, and scores
// above MaxScore share the last bucket.
type BucketCodec struct{}

// Size returns NumBuckets.
func (BucketCodec) Size() int { return NumBuckets }

// Encode returns the bucket of p.
func (BucketCodec) Encode(p Points) perfhash.Hash[Points] { return perfhash.Hash[Points](p.Bucket()) }

// Decode returns the lowest score in bucket h.
func (BucketCodec) Decode(h perfhash.Hash[Points]) Points { return Points(int(h) * BucketWidth) }

// Kind identifies a scoring combination.
type Kind uint8

const (
	FullStraight Kind = iota + 1 // 1-6
	HighStraight                 // 2-6
	LowStraight                  // 1-5
	OfAKind                      // three or more of one face
	Single                       // a lone 1 or 5
)

var kindNames = map[Kind]string{
	FullStraight: "full-straight",
	HighStraight: "straight-2-6",
	LowStraight:  "straight-1-5",
	OfAKind:      "of-a-kind",
	Single:       "single",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Combination is one scoring group taken out of a hand.
type Combination struct {
	Kind   Kind
	Face   dice.Side // set for OfAKind and Single
	Count  uint8
	Points Points
}

func (c Combination) String() string {
	switch c.Kind {
	case OfAKind:
		return fmt.Sprintf("%dx%v (%d)", c.Count, c.Face, c.Points)
	case Single:
		return fmt.Sprintf("%v (%d)", c.Face, c.Points)
	}
	return fmt.Sprintf("%v (%d)", c.Kind, c.Points)
}

// Explain lists the combinations the best hand of h is made of, in the order
// they are taken, along with the unused dice.
func Explain(h Histogram) ([]Combination, Histogram) {
	var combos []Combination
	_, left := consume(h, &combos)
	return combos, left
}
