package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultEmbedBatchSize       = 64
)

var knownEmbeddingDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

type OpenAIEmbedderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder talks to any OpenAI compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
	logger    *slog.Logger

	mu  sync.Mutex
	dim int
}

func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai embeddings need an api key (OPENAI_API_KEY)", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIEmbeddingModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultEmbedBatchSize
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = knownEmbeddingDims[cfg.Model]
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		logger:    orDiscard(logger),
		dim:       cfg.Dimension,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
		}

		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("create embeddings: response index %d out of range", d.Index)
			}
			if err := e.checkDimension(len(d.Embedding)); err != nil {
				return nil, err
			}
			vec := make([]float32, len(d.Embedding))
			copy(vec, d.Embedding)
			vecs[d.Index] = normalize(vec)
		}
		out = append(out, vecs...)

		e.logger.Debug("embedded batch", "model", e.model, "size", len(batch), "done", end, "total", len(texts))
	}

	return out, nil
}

func (e *OpenAIEmbedder) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		e.dim = n
		return nil
	}
	if e.dim != n {
		return fmt.Errorf("%w: model %s returned %d values, expected %d", ErrDimensionMismatch, e.model, n, e.dim)
	}
	return nil
}

// Dimension is 0 until the first response when the model is not a known one
// and no dimension was configured.
func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *OpenAIEmbedder) Model() string  { return e.model }
func (e *OpenAIEmbedder) Device() string { return "remote" }
func (e *OpenAIEmbedder) Close() error   { return nil }
