package internal

import (
	"context"
	"fmt"
	"log/slog"
)

const DefaultTopK = 3

// Retriever answers queries against the snapshot held by an IndexStore.
type Retriever struct {
	store    *IndexStore
	embedder Embedder
	logger   *slog.Logger
}

func NewRetriever(store *IndexStore, embedder Embedder, logger *slog.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: orDiscard(logger)}
}

// Retrieve returns up to topK records nearest to query, nearest first.
// Without a persisted index it returns ErrNoIndex.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, topK)
	}

	snap, err := r.store.Current()
	if err != nil {
		return nil, err
	}

	if dim := r.embedder.Dimension(); dim > 0 && dim != snap.Dimension() {
		return nil, fmt.Errorf("%w: index %d (%s), embedder %d (%s)", ErrDimensionMismatch,
			snap.Dimension(), snap.Model, dim, r.embedder.Model())
	}
	if snap.Model != r.embedder.Model() {
		r.logger.Warn("index was built with a different embedding model", "index_model", snap.Model, "model", r.embedder.Model())
	}

	vecs, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	if len(vecs[0]) != snap.Dimension() {
		return nil, fmt.Errorf("%w: index %d, query %d", ErrDimensionMismatch, snap.Dimension(), len(vecs[0]))
	}

	neighbors, err := snap.Searcher.Search(vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]Result, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Position < 0 || n.Position >= len(snap.Records) {
			r.logger.Debug("dropping out of range position", "position", n.Position, "records", len(snap.Records))
			continue
		}
		results = append(results, Result{Record: snap.Records[n.Position], Distance: n.Distance})
	}
	return results, nil
}
