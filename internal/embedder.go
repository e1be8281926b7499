package internal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Embedder maps text to fixed-dimension vectors. Output order matches input
// order and the same model always returns the same vector for the same text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Device() string
	Close() error
}

const (
	EmbedBackendHash   = "hash"
	EmbedBackendOpenAI = "openai"
)

// NewEmbedder builds the backend selected in cfg.
func NewEmbedder(cfg EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	device := ResolveDevice(cfg.Device)

	switch cfg.Backend {
	case "", EmbedBackendHash:
		return NewHashEmbedder(cfg.Dimension, device), nil
	case EmbedBackendOpenAI:
		return NewOpenAIEmbedder(OpenAIEmbedderConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown embeddings backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
