package dice

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/yourusername/farklesolver/internal/perfhash"
)

// Sample is the result of rolling some of the six dice. Slots holding None
// are dice that were not rolled (held, banked, or not in play).
type Sample [NumDice]Side

// Present returns the faces of the occupied slots in slot order.
func (s Sample) Present() []Side {
	out := make([]Side, 0, NumDice)
	for _, side := range s {
		if side != None {
			out = append(out, side)
		}
	}
	return out
}

// PresentMask returns the mask of occupied slots.
func (s Sample) PresentMask() Mask {
	var m Mask
	for i, side := range s {
		if side != None {
			m |= 1 << i
		}
	}
	return m
}

// Len returns the number of occupied slots.
func (s Sample) Len() int {
	return s.PresentMask().Count()
}

// Keep returns a copy of s with every slot outside m cleared.
func (s Sample) Keep(m Mask) Sample {
	var out Sample
	for i, side := range s {
		if m.Has(i) {
			out[i] = side
		}
	}
	return out
}

// Selections iterates over every non-empty subset of the present dice, each
// as a Sample with the unselected slots cleared. Subset j clears the i-th
// present die when bit i of j is set, for j = 0 .. 2^p-2, so the full roll
// comes first and the empty selection is never produced.
func (s Sample) Selections() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		var slots [NumDice]int
		n := 0
		for i, side := range s {
			if side != None {
				slots[n] = i
				n++
			}
		}
		for j := 0; j < 1<<n-1; j++ {
			var out Sample
			for b := 0; b < n; b++ {
				if j&(1<<b) == 0 {
					out[slots[b]] = s[slots[b]]
				}
			}
			if !yield(out) {
				return
			}
		}
	}
}

// String renders the sample as e.g. "[1 _ 5 5 _ 2]".
func (s Sample) String() string {
	parts := make([]string, NumDice)
	for i, side := range s {
		parts[i] = side.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Ints returns the faces as integers with 0 for empty slots.
func (s Sample) Ints() []int {
	out := make([]int, NumDice)
	for i, side := range s {
		out[i] = int(side)
	}
	return out
}

// SampleFromInts builds a sample from face values, 0 meaning an empty slot.
// Missing trailing slots are empty.
func SampleFromInts(faces []int) (Sample, error) {
	var s Sample
	if len(faces) > NumDice {
		return s, fmt.Errorf("%d dice given, at most %d allowed", len(faces), NumDice)
	}
	for i, f := range faces {
		if f < 0 || f > NumSides {
			return s, fmt.Errorf("slot %d: face %d out of range", i, f)
		}
		s[i] = Side(f)
	}
	return s, nil
}

// ParseSample parses a roll such as "1,5,5,2" or "1 _ 5 5 _ 2".
// "_", "-" and "0" mark empty slots.
func ParseSample(str string) (Sample, error) {
	fields := strings.FieldsFunc(str, func(r rune) bool {
		return r == ',' || r == ' ' || r == '[' || r == ']'
	})
	faces := make([]int, 0, len(fields))
	for _, f := range fields {
		switch f {
		case "_", "-":
			faces = append(faces, 0)
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil {
			return Sample{}, fmt.Errorf("invalid face %q", f)
		}
		faces = append(faces, v)
	}
	return SampleFromInts(faces)
}

// SampleCodec perfectly hashes the 7^6 samples: each slot is a base-7 digit
// (0 = empty, 1..6 = face), slot 0 least significant.
type SampleCodec struct{}

// SampleSpace is the number of distinct samples.
const SampleSpace = 7 * 7 * 7 * 7 * 7 * 7

// Size returns 7^6.
func (SampleCodec) Size() int { return SampleSpace }

// Encode returns the base-7 value of s.
func (SampleCodec) Encode(s Sample) perfhash.Hash[Sample] {
	h := 0
	for i := NumDice - 1; i >= 0; i-- {
		h = h*7 + int(s[i])
	}
	return perfhash.Hash[Sample](h)
}

// Decode is the inverse of Encode.
func (SampleCodec) Decode(h perfhash.Hash[Sample]) Sample {
	var s Sample
	n := int(h)
	for i := range s {
		s[i] = Side(n % 7)
		n /= 7
	}
	return s
}
