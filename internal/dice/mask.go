package dice

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/yourusername/farklesolver/internal/perfhash"
)

// Mask selects dice slots: bit i set means slot i takes part.
type Mask uint8

const (
	// NoDice selects nothing.
	NoDice Mask = 0
	// AllDice selects all six slots.
	AllDice Mask = 1<<NumDice - 1
)

// MaskOf builds a mask from per-slot flags.
func MaskOf(flags [NumDice]bool) Mask {
	var m Mask
	for i, f := range flags {
		if f {
			m |= 1 << i
		}
	}
	return m
}

// Has reports whether slot i is selected.
func (m Mask) Has(i int) bool {
	return m&(1<<i) != 0
}

// Count returns the number of selected slots.
func (m Mask) Count() int {
	return bits.OnesCount8(uint8(m & AllDice))
}

// Flags returns the per-slot flags.
func (m Mask) Flags() [NumDice]bool {
	var out [NumDice]bool
	for i := range out {
		out[i] = m.Has(i)
	}
	return out
}

// String renders the mask slot by slot, e.g. "110000" for the first two dice.
func (m Mask) String() string {
	var b strings.Builder
	for i := 0; i < NumDice; i++ {
		if m.Has(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// ParseMask parses the String form. Shorter strings leave the remaining
// slots unselected.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if len(s) > NumDice {
		return 0, fmt.Errorf("mask %q longer than %d slots", s, NumDice)
	}
	var m Mask
	for i, c := range s {
		switch c {
		case '1':
			m |= 1 << i
		case '0':
		default:
			return 0, fmt.Errorf("mask %q: invalid character %q", s, c)
		}
	}
	return m, nil
}

// MaskCodec perfectly hashes the 2^6 masks.
type MaskCodec struct{}

// Size returns 64.
func (MaskCodec) Size() int { return 1 << NumDice }

// Encode returns the mask's bit pattern.
func (MaskCodec) Encode(m Mask) perfhash.Hash[Mask] { return perfhash.Hash[Mask](m & AllDice) }

// Decode is the inverse of Encode.
func (MaskCodec) Decode(h perfhash.Hash[Mask]) Mask { return Mask(h) }
