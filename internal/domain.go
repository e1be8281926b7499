package internal

import (
	"errors"
)

var (
	ErrNoIndex           = errors.New("no vector index available")
	ErrCorruptIndex      = errors.New("vector index is corrupt")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrNothingToIndex    = errors.New("nothing to index")
	ErrEmptyContent      = errors.New("no usable text")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtraction        = errors.New("text extraction failed")
	ErrProvider          = errors.New("chat provider error")
)

// Document is a file's extracted text. It only lives between the walk and
// the chunker.
type Document struct {
	Path string
	Text string
}

// Chunk is one window of a document. Offset is the rune offset of the
// window start in the document text.
type Chunk struct {
	SourcePath string
	Content    string
	Offset     int
}

// Record is the persisted metadata for the vector at the same index position.
type Record struct {
	SourcePath string `json:"source_path"`
	Content    string `json:"content"`
	Offset     int    `json:"offset"`
}

func RecordFromChunk(c Chunk) Record {
	return Record{SourcePath: c.SourcePath, Content: c.Content, Offset: c.Offset}
}

// Result is a retrieved record and its squared L2 distance to the query.
type Result struct {
	Record
	Distance float32 `json:"distance"`
}
