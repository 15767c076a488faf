// Package perfhash provides perfect hashing for finite combinatorial domains.
//
// A Codec maps every value of its domain onto a contiguous range [0, Size()),
// which lets a Map store one cell per domain value in a single dense slice.
// Lookups are plain slice indexing: there are no collisions, no resizing and
// no missing keys.
package perfhash

import (
	"fmt"
	"iter"
)

// Hash is the perfect hash of a value of type T.
// It is only meaningful relative to the Codec that produced it.
type Hash[T any] int

// Codec is a bijection between a finite domain of T and [0, Size()).
//
// Implementations are expected to be zero-size value types so that generic
// containers can obtain one with a plain zero value.
type Codec[T any] interface {
	// Size returns the number of values in the domain.
	Size() int
	// Encode returns the hash of v.
	Encode(v T) Hash[T]
	// Decode returns the value whose hash is h.
	Decode(h Hash[T]) T
}

// Map is a dense map keyed by a perfectly hashable type.
// Every key of the domain is always present; cells start at V's zero value.
//
// A Map is not safe for concurrent writes to the same cell. Writes to
// distinct cells, and any number of concurrent reads, are fine.
type Map[K, V any, C Codec[K]] struct {
	codec C
	cells []V
}

// NewMap allocates a map with one zero-valued cell per domain value.
func NewMap[K, V any, C Codec[K]]() *Map[K, V, C] {
	var c C
	return &Map[K, V, C]{
		codec: c,
		cells: make([]V, c.Size()),
	}
}

// FromCells wraps an existing cell slice, which must cover the whole domain.
func FromCells[K, V any, C Codec[K]](cells []V) (*Map[K, V, C], error) {
	var c C
	if len(cells) != c.Size() {
		return nil, fmt.Errorf("perfhash: %d cells for a domain of %d", len(cells), c.Size())
	}
	return &Map[K, V, C]{codec: c, cells: cells}, nil
}

// Len returns the domain size.
func (m *Map[K, V, C]) Len() int {
	return len(m.cells)
}

// Get returns the value stored for k.
func (m *Map[K, V, C]) Get(k K) V {
	return m.cells[m.codec.Encode(k)]
}

// Set stores v for k.
func (m *Map[K, V, C]) Set(k K, v V) {
	m.cells[m.codec.Encode(k)] = v
}

// At returns the value stored under hash h.
func (m *Map[K, V, C]) At(h Hash[K]) V {
	return m.cells[h]
}

// Key returns the key stored at cell index i.
func (m *Map[K, V, C]) Key(i int) K {
	return m.codec.Decode(Hash[K](i))
}

// Cells exposes the backing slice, indexed by hash. It is used by parallel
// fills, where each worker owns a disjoint index range, and by serialisers.
func (m *Map[K, V, C]) Cells() []V {
	return m.cells
}

// All iterates over every (key, value) pair in hash order.
func (m *Map[K, V, C]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, v := range m.cells {
			if !yield(m.codec.Decode(Hash[K](i)), v) {
				return
			}
		}
	}
}

// Clone returns an independent copy of m.
func (m *Map[K, V, C]) Clone() *Map[K, V, C] {
	cells := make([]V, len(m.cells))
	copy(cells, m.cells)
	return &Map[K, V, C]{codec: m.codec, cells: cells}
}
