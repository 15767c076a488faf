package perfhash

import "gonum.org/v1/gonum/stat/combin"

// Pair is a two-component key.
type Pair[A, B any] struct {
	First  A
	Second B
}

// MakePair builds a Pair.
func MakePair[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{First: a, Second: b}
}

// PairCodec composes two codecs in row-major order:
// hash(a, b) = hash(a)*size(B) + hash(b).
type PairCodec[A, B any, CA Codec[A], CB Codec[B]] struct {
	first  CA
	second CB
}

// Size returns size(A) * size(B).
func (c PairCodec[A, B, CA, CB]) Size() int {
	return combin.Card([]int{c.first.Size(), c.second.Size()})
}

// Encode hashes p. This sits on the solver's inner loop, so the row-major
// product is computed directly rather than through combin.IdxFor.
func (c PairCodec[A, B, CA, CB]) Encode(p Pair[A, B]) Hash[Pair[A, B]] {
	return Hash[Pair[A, B]](int(c.first.Encode(p.First))*c.second.Size() + int(c.second.Encode(p.Second)))
}

// Decode splits h back into its components.
func (c PairCodec[A, B, CA, CB]) Decode(h Hash[Pair[A, B]]) Pair[A, B] {
	var sub [2]int
	combin.SubFor(sub[:], int(h), []int{c.first.Size(), c.second.Size()})
	return Pair[A, B]{
		First:  c.first.Decode(Hash[A](sub[0])),
		Second: c.second.Decode(Hash[B](sub[1])),
	}
}
