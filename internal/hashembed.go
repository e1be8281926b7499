package internal

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	DefaultHashDimension = 384
	hashModelName        = "feature-hash-v1"
)

var _ Embedder = (*HashEmbedder)(nil)

// HashEmbedder is an offline embedder: lower-cased word tokens are hashed
// into signed buckets and the result is L2 normalised. Texts sharing words
// land close together, which is enough for local lookups without a model.
type HashEmbedder struct {
	dim    int
	device Device
}

func NewHashEmbedder(dim int, device Device) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim, device: device}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dim))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	return normalize(vec), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) Dimension() int { return e.dim }
func (e *HashEmbedder) Model() string  { return hashModelName }
func (e *HashEmbedder) Device() string { return string(e.device) }
func (e *HashEmbedder) Close() error   { return nil }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
