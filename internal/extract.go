package internal

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/go-git/go-billy/v5"
)

// Extractor turns one file format into raw text.
type Extractor interface {
	CanRead(path string) bool
	ReadText(fs billy.Filesystem, path string) (string, error)
}

var (
	_ Extractor = (*TextExtractor)(nil)
	_ Extractor = (*PDFExtractor)(nil)
)

type TextExtractor struct {
	extensions map[string]bool
}

func NewTextExtractor(extensions []string) *TextExtractor {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if ext == ".pdf" {
			continue
		}
		set[ext] = true
	}
	return &TextExtractor{extensions: set}
}

func (e *TextExtractor) CanRead(path string) bool {
	return e.extensions[normalizeExt(filepath.Ext(path))]
}

// ReadText decodes the file as UTF-8. Invalid byte sequences are dropped.
func (e *TextExtractor) ReadText(fs billy.Filesystem, path string) (string, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

type PDFExtractor struct{}

func (e *PDFExtractor) CanRead(path string) bool {
	return normalizeExt(filepath.Ext(path)) == ".pdf"
}

func (e *PDFExtractor) ReadText(fs billy.Filesystem, path string) (string, error) {
	data, err := readAll(fs, path)
	if err != nil {
		return "", err
	}

	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: read pdf %s: %v", ErrExtraction, path, err)
	}
	return body, nil
}

// ExtractorRegistry dispatches a path to the first extractor that accepts it.
type ExtractorRegistry struct {
	extractors []Extractor
}

func NewExtractorRegistry(extractors ...Extractor) *ExtractorRegistry {
	return &ExtractorRegistry{extractors: extractors}
}

// DefaultExtractors covers PDF plus the given text extensions.
func DefaultExtractors(extensions []string) *ExtractorRegistry {
	var pdf bool
	for _, ext := range extensions {
		if normalizeExt(ext) == ".pdf" {
			pdf = true
		}
	}

	extractors := []Extractor{NewTextExtractor(extensions)}
	if pdf {
		extractors = append(extractors, &PDFExtractor{})
	}
	return NewExtractorRegistry(extractors...)
}

// Extract returns the document text. Text that is only whitespace yields
// ErrEmptyContent.
func (r *ExtractorRegistry) Extract(fs billy.Filesystem, path string) (Document, error) {
	for _, e := range r.extractors {
		if !e.CanRead(path) {
			continue
		}
		text, err := e.ReadText(fs, path)
		if err != nil {
			return Document{}, err
		}
		if strings.TrimSpace(text) == "" {
			return Document{}, fmt.Errorf("%w: %s", ErrEmptyContent, path)
		}
		return Document{Path: path, Text: text}, nil
	}
	return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func readAll(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExtraction, path, err)
	}
	return data, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
