package internal

import (
	"fmt"
	"os"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const (
	DefaultAnnoyTrees = 10
	annoyOversample   = 4
)

var _ Searcher = (*AnnoyIndex)(nil)

// AnnoyIndex answers queries with approximate candidates from an annoy
// forest and re-ranks them by exact L2 distance against the flat vectors.
type AnnoyIndex struct {
	idx  interfaces.AnnoyIndex[float32, uint32]
	flat *FlatIndex
}

func newAnnoy(dim int) interfaces.AnnoyIndex[float32, uint32] {
	return builder.Index[float32, uint32]().
		AngularDistance(dim).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()
}

// BuildAnnoyIndex builds a forest over every vector of flat.
func BuildAnnoyIndex(flat *FlatIndex, numTrees int) (*AnnoyIndex, error) {
	if flat.Count() == 0 {
		return nil, ErrNothingToIndex
	}
	if numTrees <= 0 {
		numTrees = DefaultAnnoyTrees
	}

	idx := newAnnoy(flat.Dimension())
	for i := range flat.Count() {
		vec := make([]float32, flat.Dimension())
		copy(vec, flat.Vector(i))
		idx.AddItem(uint32(i), vec)
	}
	idx.Build(numTrees, -1)

	return &AnnoyIndex{idx: idx, flat: flat}, nil
}

// LoadAnnoyIndex maps a saved forest. flat must hold the vectors it was
// built from.
func LoadAnnoyIndex(path string, flat *FlatIndex) (*AnnoyIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	idx := newAnnoy(flat.Dimension())
	if err := idx.Load(path); err != nil {
		return nil, fmt.Errorf("%w: load annoy index: %v", ErrCorruptIndex, err)
	}
	return &AnnoyIndex{idx: idx, flat: flat}, nil
}

func (a *AnnoyIndex) Save(path string) error {
	if err := a.idx.Save(path); err != nil {
		return fmt.Errorf("save annoy index: %w", err)
	}
	return nil
}

func (a *AnnoyIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != a.flat.Dimension() {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), a.flat.Dimension())
	}
	n := a.flat.Count()
	if k <= 0 || n == 0 {
		return nil, nil
	}

	candidates := min(k*annoyOversample, n)
	searchCtx := a.idx.CreateContext()
	ids, _ := a.idx.GetNnsByVector(query, candidates, -1, searchCtx)

	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		positions = append(positions, int(id))
	}
	return a.flat.rerank(query, positions, k), nil
}

func (a *AnnoyIndex) Count() int     { return a.flat.Count() }
func (a *AnnoyIndex) Dimension() int { return a.flat.Dimension() }
