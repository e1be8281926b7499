package internal

import (
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// Chunker cuts text into fixed-size windows that overlap by a fixed amount.
// Sizes are counted in runes.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns every trimmed window, including windows that trim to "".
func (c *Chunker) Split(text string) []string {
	spans := c.spans(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		out = append(out, s.text)
	}
	return out
}

// Chunk windows a document. Windows that are only whitespace are dropped so
// every chunk carries content.
func (c *Chunker) Chunk(doc Document) []Chunk {
	spans := c.spans(doc.Text)
	chunks := make([]Chunk, 0, len(spans))
	for _, s := range spans {
		if s.text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			SourcePath: doc.Path,
			Content:    s.text,
			Offset:     s.start,
		})
	}
	return chunks
}

type span struct {
	start int
	text  string
}

func (c *Chunker) spans(text string) []span {
	runes := []rune(text)
	step := c.size - c.overlap

	var out []span
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		out = append(out, span{
			start: start,
			text:  strings.TrimSpace(string(runes[start:end])),
		})
	}
	return out
}
