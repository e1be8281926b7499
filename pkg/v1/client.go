package v1

import (
	"context"
	"fmt"
	"os"

	"github.com/4thel00z/speedchaser/internal"
)

// ErrNoIndex is returned by Retrieve before anything has been ingested.
var ErrNoIndex = internal.ErrNoIndex

// Client provides programmatic access to ingestion and retrieval.
type Client struct {
	svc  *internal.Services
	topK int
}

// New creates a new Client with the given options. Environment overrides
// such as OPENAI_API_KEY apply before the options do.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	resolver := internal.NewScopeResolver()
	scope := resolver.Resolve(cfg.scope)
	if cfg.stateDir != "" {
		scope = internal.Scope{Type: internal.ScopeProject, Path: cfg.stateDir, StateDir: cfg.stateDir}
	}

	conf, err := internal.LoadConfig(scope)
	if err != nil {
		return nil, err
	}
	conf.ApplyEnv(os.Getenv)
	if cfg.dimension > 0 {
		conf.Embeddings.Dimension = cfg.dimension
	}
	if cfg.topK > 0 {
		conf.Retrieval.TopK = cfg.topK
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	embedder, err := internal.NewEmbedder(conf.Embeddings, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Client{
		svc:  internal.NewServices(scope, conf, embedder, cfg.logger),
		topK: conf.Retrieval.TopK,
	}, nil
}

// Ingest rebuilds the index from the files under path.
func (c *Client) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	out, err := c.svc.Ingest.Execute(ctx, internal.IngestInput{Path: path})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return &IngestReport{
		Documents: out.Documents,
		Chunks:    out.Chunks,
		Skipped:   len(out.Skipped),
		NoOp:      out.NoOp,
		Duration:  out.Duration,
	}, nil
}

// Retrieve returns the chunks nearest to query. k <= 0 uses the configured
// default.
func (c *Client) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = c.topK
	}
	results, err := c.svc.Retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{
			Source:   r.SourcePath,
			Content:  r.Content,
			Offset:   r.Offset,
			Distance: r.Distance,
		})
	}
	return chunks, nil
}

// Status reports the persisted index.
func (c *Client) Status() (IndexStatus, error) {
	st, err := c.svc.Store.Status()
	if err != nil {
		return IndexStatus{}, err
	}
	return IndexStatus{
		Exists:    st.Exists,
		Count:     st.Count,
		Dimension: st.Dimension,
		Model:     st.Model,
		BuiltAt:   st.BuiltAt,
	}, nil
}

// Invalidate drops the cached index so the next Retrieve reads it from disk.
func (c *Client) Invalidate() {
	c.svc.Store.Invalidate()
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return c.svc.Close()
}
