// Package scoring evaluates Farkle hands under the Kingdom Come: Deliverance
// rules.
//
// A hand is consumed greedily in a fixed priority order: full straight,
// straight 2-6, straight 1-5, the best three-or-more of a kind, single ones,
// single fives. Score is the exact mode, where a hand with dice left over is
// worth nothing; BestScore ignores the leftovers.
package scoring

import (
	"github.com/yourusername/farklesolver/internal/dice"
)

// Histogram counts the occurrences of each face: index i holds the count of
// face i+1. Counts above six are outside the supported domain.
type Histogram [dice.NumSides]uint8

// Count builds the histogram of the present dice of s.
func Count(s dice.Sample) Histogram {
	var h Histogram
	for _, side := range s {
		if side != dice.None {
			h[side.Index()]++
		}
	}
	return h
}

// CountSides builds the histogram of a list of faces.
func CountSides(sides []dice.Side) Histogram {
	var h Histogram
	for _, side := range sides {
		h[side.Index()]++
	}
	return h
}

// Len returns the number of dice in the histogram.
func (h Histogram) Len() int {
	n := 0
	for _, c := range h {
		n += int(c)
	}
	return n
}

// Empty reports whether no dice are counted.
func (h Histogram) Empty() bool {
	return h == Histogram{}
}

func (h Histogram) hasRun(from, to int) bool {
	for i := from; i <= to; i++ {
		if h[i] == 0 {
			return false
		}
	}
	return true
}

func (h *Histogram) takeRun(from, to int) {
	for i := from; i <= to; i++ {
		h[i]--
	}
}

// Multi is a three-or-more of a kind.
type Multi struct {
	Face   dice.Side
	Count  uint8
	Points Points
}

// Found reports whether m describes an actual combination.
func (m Multi) Found() bool {
	return m.Face != dice.None
}

// multiPoints scores count dice showing face: 1000 for three ones, 100 times
// the face value otherwise, doubled for each die beyond the third.
func multiPoints(face dice.Side, count uint8) Points {
	base := Points(100) * Points(face)
	if face == dice.One {
		base = 1000
	}
	return base << (count - 3)
}

// HighestMulti returns the highest scoring three-or-more of a kind in h.
// Equal scores go to the lowest face. The zero Multi is returned when no face
// occurs three times.
func HighestMulti(h Histogram) Multi {
	var best Multi
	for i, c := range h {
		if c < 3 {
			continue
		}
		face := dice.SideFromIndex(i)
		if p := multiPoints(face, c); p > best.Points {
			best = Multi{Face: face, Count: c, Points: p}
		}
	}
	return best
}

// NotBusted reports whether h contains any scoring combination.
func NotBusted(h Histogram) bool {
	if h.hasRun(0, 4) || h.hasRun(1, 5) {
		return true
	}
	if HighestMulti(h).Found() {
		return true
	}
	return h[0] > 0 || h[4] > 0
}

// Score returns the exact score of h: every die must be part of a scoring
// combination, otherwise the hand is invalid and scores 0.
func Score(h Histogram) Points {
	total, left := consume(h, nil)
	if !left.Empty() {
		return 0
	}
	return total
}

// BestScore returns the best score obtainable from h, ignoring dice that do
// not form part of any combination.
func BestScore(h Histogram) Points {
	total, _ := consume(h, nil)
	return total
}

// Leftover returns the dice of h that the best hand does not use.
func Leftover(h Histogram) Histogram {
	_, left := consume(h, nil)
	return left
}

// BestSelection returns s with every die that is not part of the best scoring
// hand cleared. When several physical dice show an unused face, the ones in
// the lowest slots are cleared.
func BestSelection(s dice.Sample) dice.Sample {
	left := Leftover(Count(s))
	out := s
	for i, side := range out {
		if side == dice.None {
			continue
		}
		if left[side.Index()] > 0 {
			left[side.Index()]--
			out[i] = dice.None
		}
	}
	return out
}

// consume removes combinations from h in priority order until none applies,
// returning the points collected and the unused dice. Each combination taken
// is appended to combos when it is non-nil.
func consume(h Histogram, combos *[]Combination) (Points, Histogram) {
	var total Points
	take := func(kind Kind, face dice.Side, count uint8, p Points) {
		total += p
		if combos != nil {
			*combos = append(*combos, Combination{Kind: kind, Face: face, Count: count, Points: p})
		}
	}
	for {
		switch {
		case h.hasRun(0, 5):
			h.takeRun(0, 5)
			take(FullStraight, dice.None, 6, FullStraightPoints)
			continue
		case h.hasRun(1, 5):
			h.takeRun(1, 5)
			take(HighStraight, dice.None, 5, HighStraightPoints)
			continue
		case h.hasRun(0, 4):
			h.takeRun(0, 4)
			take(LowStraight, dice.None, 5, LowStraightPoints)
			continue
		}
		if m := HighestMulti(h); m.Found() {
			h[m.Face.Index()] -= m.Count
			take(OfAKind, m.Face, m.Count, m.Points)
			continue
		}
		if h[0] > 0 {
			h[0]--
			take(Single, dice.One, 1, SingleOnePoints)
			continue
		}
		if h[4] > 0 {
			h[4]--
			take(Single, dice.Five, 1, SingleFivePoints)
			continue
		}
		return total, h
	}
}
