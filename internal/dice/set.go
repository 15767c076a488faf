package dice

import (
	"iter"
	"math/rand/v2"
)

// Set is a view over six externally owned dice restricted to the slots in a
// mask. It holds a pointer to the caller's array and is cheap to copy; the
// array must outlive the Set.
type Set struct {
	dice *[NumDice]Die
	mask Mask
}

// NewSet creates a view over dice restricted to mask.
func NewSet(dice *[NumDice]Die, mask Mask) Set {
	return Set{dice: dice, mask: mask & AllDice}
}

// Mask returns the active slots.
func (s Set) Mask() Mask {
	return s.mask
}

// Len returns the number of active dice.
func (s Set) Len() int {
	return s.mask.Count()
}

// Complement returns the set of the inactive slots over the same dice.
func (s Set) Complement() Set {
	return Set{dice: s.dice, mask: ^s.mask & AllDice}
}

// Subset returns the set of slots active both in s and in mask.
func (s Set) Subset(mask Mask) Set {
	return Set{dice: s.dice, mask: s.mask & mask}
}

// NumOutcomes returns 6^k for k active dice.
func (s Set) NumOutcomes() int {
	n := 1
	for i := 0; i < s.Len(); i++ {
		n *= NumSides
	}
	return n
}

// Outcomes iterates over every face assignment of the active dice together
// with its probability. The active slot with the lowest index varies fastest.
// Probabilities over a full iteration sum to 1.
func (s Set) Outcomes() iter.Seq2[Sample, float64] {
	return func(yield func(Sample, float64) bool) {
		var slots [NumDice]int
		k := 0
		for i := 0; i < NumDice; i++ {
			if s.mask.Has(i) {
				slots[k] = i
				k++
			}
		}
		total := s.NumOutcomes()
		for n := 0; n < total; n++ {
			var out Sample
			prob := 1.0
			v := n
			for _, slot := range slots[:k] {
				side := SideFromIndex(v % NumSides)
				out[slot] = side
				prob *= s.dice[slot].p[side.Index()]
				v /= NumSides
			}
			if !yield(out, prob) {
				return
			}
		}
	}
}

// Subsets iterates over every non-empty subset of the active slots,
// including s itself. Subset j keeps the i-th active slot when bit i of j is
// set, for j = 1 .. 2^k-1.
func (s Set) Subsets() iter.Seq[Set] {
	return func(yield func(Set) bool) {
		var slots [NumDice]int
		k := 0
		for i := 0; i < NumDice; i++ {
			if s.mask.Has(i) {
				slots[k] = i
				k++
			}
		}
		for j := 1; j < 1<<k; j++ {
			var m Mask
			for b := 0; b < k; b++ {
				if j&(1<<b) != 0 {
					m |= 1 << slots[b]
				}
			}
			if !yield(Set{dice: s.dice, mask: m}) {
				return
			}
		}
	}
}

// Roll rolls every active die.
func (s Set) Roll(src rand.Source) Sample {
	var out Sample
	for i := 0; i < NumDice; i++ {
		if s.mask.Has(i) {
			out[i] = s.dice[i].Roll(src)
		}
	}
	return out
}
