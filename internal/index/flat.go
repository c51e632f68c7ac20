// ABOUTME: FlatIndex is an exhaustive squared-L2 nearest neighbour index over float32 vectors
// ABOUTME: Equal distances keep insertion order so searches are deterministic
package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/harper/cenly/internal/models"
)

// Neighbor is a search hit: insertion position and squared L2 distance
type Neighbor struct {
	Pos      int
	Distance float64
}

// FlatIndex stores vectors contiguously and scans all of them per query
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlatIndex creates an empty index of fixed dimension
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim returns the vector dimension
func (f *FlatIndex) Dim() int { return f.dim }

// Len returns the number of stored vectors
func (f *FlatIndex) Len() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vectors, rejecting any whose width differs from the index
func (f *FlatIndex) Add(vecs ...[]float32) error {
	for i, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("%w: vector %d has %d dims, index has %d", models.ErrDimensionMismatch, i, len(v), f.dim)
		}
	}
	for _, v := range vecs {
		f.data = append(f.data, v...)
	}
	return nil
}

// Vector returns a copy of the vector stored at pos
func (f *FlatIndex) Vector(pos int) []float32 {
	return slices.Clone(f.data[pos*f.dim : (pos+1)*f.dim])
}

// Search returns up to k nearest vectors ordered by ascending distance
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", models.ErrDimensionMismatch, len(query), f.dim)
	}
	n := f.Len()
	if k <= 0 || n == 0 {
		return nil, nil
	}

	all := make([]Neighbor, n)
	for pos := 0; pos < n; pos++ {
		all[pos] = Neighbor{Pos: pos, Distance: squaredL2(query, f.data[pos*f.dim:(pos+1)*f.dim])}
	}
	slices.SortStableFunc(all, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return all[:min(k, n)], nil
}

// Distance returns the squared L2 distance used to rank neighbours
func Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return squaredL2(a, b)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when either is zero
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
