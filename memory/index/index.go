// Package index implements the exact nearest-neighbour vector index used by
// the memory store.
//
// Vectors are kept in insertion order; the ordinal of a vector is its
// zero-based insertion position and never changes. Search is an exhaustive
// Euclidean scan. Callers store unit vectors so that distance ranks results
// exactly like cosine similarity.
package index

import (
	"errors"
	"math"
)

var (
	// ErrDimension is returned when a vector does not match the index dimension.
	ErrDimension = errors.New("index: dimension mismatch")

	// ErrCorrupt is returned when a persisted index cannot be decoded.
	ErrCorrupt = errors.New("index: corrupt index file")
)

// Neighbor is a single search hit.
type Neighbor struct {
	// Ordinal is the insertion position of the matched vector.
	Ordinal int

	// Distance is the Euclidean distance between the query and the vector.
	Distance float32
}

// Index is an append-only vector index.
type Index interface {
	// Dim returns the vector dimension.
	Dim() int

	// Len returns the number of stored vectors.
	Len() int

	// Add appends a vector. Its ordinal is the previous Len.
	Add(vec []float32) error

	// Search returns up to k nearest vectors ordered by ascending distance,
	// ties broken by ordinal.
	Search(query []float32, k int) ([]Neighbor, error)
}

// IsZero reports whether vec has zero L2 norm. Such a vector has no
// direction and cannot be normalized.
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// Normalize returns a unit-length copy of vec. A zero vector is returned as a
// zero copy.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
