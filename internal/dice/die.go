package dice

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"lukechampine.com/frand"
)

// Die is the face distribution of one (possibly loaded) die.
// Probabilities are not validated: a distribution that does not sum to 1
// silently yields wrong expectations downstream.
type Die struct {
	p [NumSides]float64
}

// Uniform returns a fair die.
func Uniform() Die {
	var d Die
	for i := range d.p {
		d.p[i] = 1.0 / NumSides
	}
	return d
}

// Fair returns six fair dice.
func Fair() [NumDice]Die {
	var set [NumDice]Die
	for i := range set {
		set[i] = Uniform()
	}
	return set
}

// New creates a die from per-face probabilities for faces 1..6.
func New(p [NumSides]float64) Die {
	return Die{p: p}
}

// FromWeights creates a die whose face probabilities are proportional to the
// given weights, e.g. {1, 2, 1, 1, 1, 1} gives face 2 a probability of 2/7.
func FromWeights(w [NumSides]uint32) Die {
	p := make([]float64, NumSides)
	for i, v := range w {
		p[i] = float64(v)
	}
	floats.Scale(1/floats.Sum(p), p)

	var d Die
	copy(d.p[:], p)
	return d
}

// Prob returns the probability of rolling s.
func (d Die) Prob(s Side) float64 {
	return d.p[s.Index()]
}

// Probabilities returns the face probabilities for faces 1..6.
func (d Die) Probabilities() [NumSides]float64 {
	return d.p
}

// Total returns the sum of the face probabilities.
func (d Die) Total() float64 {
	return floats.Sum(d.p[:])
}

// ExpectedRoll returns the mean face value.
func (d Die) ExpectedRoll() float64 {
	faces := []float64{1, 2, 3, 4, 5, 6}
	return floats.Dot(faces, d.p[:])
}

// Roll draws one face using src.
func (d Die) Roll(src rand.Source) Side {
	c := distuv.NewCategorical(d.p[:], src)
	return SideFromIndex(int(c.Rand()))
}

// NewSource returns a cryptographically seeded random source for live rolls.
func NewSource() rand.Source {
	return frand.NewSource()
}
