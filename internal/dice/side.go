// Package dice models the six dice of a Farkle turn: per-die face
// distributions, roll outcomes over any subset of the dice, and the perfect
// hash codecs that index solver tables by samples and masks.
package dice

import "strconv"

const (
	// NumDice is the number of physical dice in a turn.
	NumDice = 6
	// NumSides is the number of faces on a die.
	NumSides = 6
)

// Side is a die face. The zero value None marks a slot with no die in it.
type Side uint8

const (
	None Side = iota
	One
	Two
	Three
	Four
	Five
	Six
)

// SideFromIndex converts a 0-based face index (0 = One) to a Side.
func SideFromIndex(i int) Side {
	return Side(i + 1)
}

// Index returns the 0-based face index used by histograms and probability
// vectors. It must not be called on None.
func (s Side) Index() int {
	return int(s) - 1
}

// Valid reports whether s is a real face.
func (s Side) Valid() bool {
	return s >= One && s <= Six
}

// String returns the face value, or "_" for None.
func (s Side) String() string {
	if s == None {
		return "_"
	}
	return strconv.Itoa(int(s))
}
