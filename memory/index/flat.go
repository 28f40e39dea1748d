package index

import (
	"fmt"
	"math"
	"sort"
)

// Flat is a CPU-resident index holding every vector in one contiguous slice.
// It is not safe for concurrent mutation; the owner serializes access.
type Flat struct {
	dim  int
	data []float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the vector dimension.
func (f *Flat) Dim() int {
	return f.dim
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends a copy of vec.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim || f.dim == 0 {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), f.dim)
	}
	f.data = append(f.data, vec...)
	return nil
}

// Vector returns a copy of the vector stored at ordinal i.
func (f *Flat) Vector(i int) []float32 {
	if i < 0 || i >= f.Len() {
		return nil
	}
	out := make([]float32, f.dim)
	copy(out, f.data[i*f.dim:(i+1)*f.dim])
	return out
}

// Search scans every stored vector and returns the k closest.
// k is clamped to Len; k <= 0 or an empty index yields no hits.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	n := f.Len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), f.dim)
	}

	type scored struct {
		ordinal int
		sq      float64
	}
	all := make([]scored, n)
	for i := 0; i < n; i++ {
		row := f.data[i*f.dim : (i+1)*f.dim]
		var sum float64
		for j, q := range query {
			d := float64(q) - float64(row[j])
			sum += d * d
		}
		all[i] = scored{ordinal: i, sq: sum}
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].sq != all[b].sq {
			return all[a].sq < all[b].sq
		}
		return all[a].ordinal < all[b].ordinal
	})

	hits := make([]Neighbor, k)
	for i := 0; i < k; i++ {
		hits[i] = Neighbor{
			Ordinal:  all[i].ordinal,
			Distance: float32(math.Sqrt(all[i].sq)),
		}
	}
	return hits, nil
}

// Clone returns an independent copy of the index.
func (f *Flat) Clone() *Flat {
	data := make([]float32, len(f.data))
	copy(data, f.data)
	return &Flat{dim: f.dim, data: data}
}
