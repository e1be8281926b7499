package internal

import (
	"cmp"
	"fmt"
	"slices"
)

// Neighbor is a position in an index and its squared L2 distance to a query.
type Neighbor struct {
	Position int
	Distance float32
}

// Searcher is a nearest neighbour index over vectors of one dimension.
type Searcher interface {
	Search(query []float32, k int) ([]Neighbor, error)
	Count() int
	Dimension() int
}

var _ Searcher = (*FlatIndex)(nil)

// FlatIndex is an exact L2 index. Vectors are stored row-major.
type FlatIndex struct {
	dim  int
	data []float32
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (f *FlatIndex) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, f.dim, len(vec))
	}
	f.data = append(f.data, vec...)
	return nil
}

func (f *FlatIndex) Count() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

func (f *FlatIndex) Dimension() int { return f.dim }

// Vector returns the stored row at position i. The slice aliases index memory.
func (f *FlatIndex) Vector(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// Search returns up to k neighbours by ascending distance. Equal distances
// keep insertion order.
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), f.dim)
	}
	n := f.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}

	all := make([]Neighbor, n)
	for i := range n {
		all[i] = Neighbor{Position: i, Distance: squaredL2(query, f.Vector(i))}
	}
	return topK(all, k), nil
}

// rerank orders the candidate positions by exact distance.
func (f *FlatIndex) rerank(query []float32, positions []int, k int) []Neighbor {
	out := make([]Neighbor, 0, len(positions))
	for _, p := range positions {
		if p < 0 || p >= f.Count() {
			continue
		}
		out = append(out, Neighbor{Position: p, Distance: squaredL2(query, f.Vector(p))})
	}
	return topK(out, k)
}

func topK(ns []Neighbor, k int) []Neighbor {
	slices.SortStableFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	if len(ns) > k {
		ns = ns[:k]
	}
	return ns
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
