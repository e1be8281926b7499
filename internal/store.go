package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	IndexFilename    = "index.bin"
	MetadataFilename = "metadata.json"

	IndexBackendFlat  = "flat"
	IndexBackendAnnoy = "annoy"

	indexMagic    = "SCIX"
	formatVersion = 1
	maxModelName  = 1 << 10
)

// Snapshot is a loaded index and its metadata. Position i of Searcher
// corresponds to Records[i]. A snapshot is never mutated after it is built
// or loaded.
type Snapshot struct {
	Searcher   Searcher
	Vectors    *FlatIndex
	Records    []Record
	Model      string
	Backend    string
	Generation int64

	annoy *AnnoyIndex
}

func (s *Snapshot) Count() int     { return len(s.Records) }
func (s *Snapshot) Dimension() int { return s.Vectors.Dimension() }

type IndexStatus struct {
	Exists       bool      `json:"exists"`
	Count        int       `json:"count"`
	Dimension    int       `json:"dimension"`
	Model        string    `json:"model"`
	Backend      string    `json:"backend"`
	Generation   int64     `json:"generation"`
	BuiltAt      time.Time `json:"built_at"`
	IndexPath    string    `json:"index_path"`
	MetadataPath string    `json:"metadata_path"`
}

// IndexStore owns the on-disk index and metadata pair for one directory and
// caches the loaded snapshot. There must be a single writer per directory
// and no ingestion while queries run against the same directory.
type IndexStore struct {
	dir    string
	cfg    IndexConfig
	logger *slog.Logger
	now    func() time.Time
	rename func(oldpath, newpath string) error

	mu   sync.RWMutex
	snap *Snapshot
}

func NewIndexStore(dir string, cfg IndexConfig, logger *slog.Logger) *IndexStore {
	if cfg.Backend == "" {
		cfg.Backend = IndexBackendFlat
	}
	return &IndexStore{
		dir:    dir,
		cfg:    cfg,
		logger: orDiscard(logger),
		now:    time.Now,
		rename: os.Rename,
	}
}

func (s *IndexStore) Dir() string          { return s.dir }
func (s *IndexStore) IndexPath() string    { return filepath.Join(s.dir, IndexFilename) }
func (s *IndexStore) MetadataPath() string { return filepath.Join(s.dir, MetadataFilename) }

func (s *IndexStore) annoyPath(generation int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("index-%d.ann", generation))
}

// Build embeds every chunk in batches and returns a snapshot whose positions
// follow chunk order. It does not touch the disk.
func (s *IndexStore) Build(ctx context.Context, embedder Embedder, chunks []Chunk, batchSize int) (*Snapshot, error) {
	if len(chunks) == 0 {
		return nil, ErrNothingToIndex
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	var (
		flat    *FlatIndex
		records = make([]Record, 0, len(chunks))
	)

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts", start, end, len(vecs), len(texts))
		}

		for i, vec := range vecs {
			if flat == nil {
				if want := embedder.Dimension(); want > 0 && want != len(vec) {
					return nil, fmt.Errorf("%w: embedder reports %d, produced %d", ErrDimensionMismatch, want, len(vec))
				}
				flat = NewFlatIndex(len(vec))
			}
			if err := flat.Add(vec); err != nil {
				return nil, fmt.Errorf("add chunk %d: %w", start+i, err)
			}
			records = append(records, RecordFromChunk(chunks[start+i]))
		}

		s.logger.Debug("indexed batch", "done", end, "total", len(chunks))
	}

	snap := &Snapshot{
		Searcher:   flat,
		Vectors:    flat,
		Records:    records,
		Model:      embedder.Model(),
		Backend:    IndexBackendFlat,
		Generation: s.now().UnixNano(),
	}

	if s.cfg.Backend == IndexBackendAnnoy {
		ann, err := BuildAnnoyIndex(flat, s.cfg.Trees)
		if err != nil {
			return nil, fmt.Errorf("build annoy index: %w", err)
		}
		snap.Searcher = ann
		snap.Backend = IndexBackendAnnoy
		snap.annoy = ann
	}

	return snap, nil
}

// Persist writes the snapshot as a new generation. Both files are staged
// next to their targets and renamed into place, index first. Any failure,
// including a failed metadata rename after the index rename, leaves the
// previous generation in place. A crash or a concurrent reader between the
// two renames sees the new index.bin next to the old metadata.json; the
// generation stamps differ, so Load reports ErrCorruptIndex instead of
// returning misaligned records.
func (s *IndexStore) Persist(snap *Snapshot) (err error) {
	if snap == nil || snap.Count() == 0 {
		return ErrNothingToIndex
	}
	if snap.Count() != snap.Vectors.Count() {
		return fmt.Errorf("%w: %d records for %d vectors", ErrCorruptIndex, snap.Count(), snap.Vectors.Count())
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	var staged []string
	defer func() {
		if err != nil {
			for _, p := range staged {
				_ = os.Remove(p)
			}
		}
	}()

	indexTmp, err := writeTemp(s.dir, IndexFilename, func(w io.Writer) error {
		return writeIndex(w, snap)
	})
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	staged = append(staged, indexTmp)

	metaTmp, err := writeTemp(s.dir, MetadataFilename, func(w io.Writer) error {
		return writeMetadata(w, snap)
	})
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	staged = append(staged, metaTmp)

	if snap.annoy != nil {
		annPath := s.annoyPath(snap.Generation)
		if err := snap.annoy.Save(annPath); err != nil {
			return err
		}
		staged = append(staged, annPath)
	}

	// Hold the previous index under a second name so a failed metadata
	// rename can put it back.
	backup := s.IndexPath() + ".prev"
	_ = os.Remove(backup)
	hadPrevious := true
	if err := os.Link(s.IndexPath(), backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("keep previous index: %w", err)
		}
		hadPrevious = false
	}
	defer os.Remove(backup)

	if err := s.rename(indexTmp, s.IndexPath()); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	if err := s.rename(metaTmp, s.MetadataPath()); err != nil {
		if hadPrevious {
			if rerr := s.rename(backup, s.IndexPath()); rerr != nil {
				s.logger.Error("restore previous index", "error", rerr)
			}
		} else {
			_ = os.Remove(s.IndexPath())
		}
		return fmt.Errorf("commit metadata: %w", err)
	}

	s.removeStaleAnnoy(snap.Generation)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("index persisted", "dir", s.dir, "count", snap.Count(), "dimension", snap.Dimension(), "backend", snap.Backend)
	return nil
}

// Load reads the artifacts without touching the cache. A missing file gives
// ErrNoIndex. Unreadable files, a record count that differs from the vector
// count, or files from different generations give ErrCorruptIndex.
func (s *IndexStore) Load() (*Snapshot, error) {
	for _, p := range []string{s.IndexPath(), s.MetadataPath()} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s is missing", ErrNoIndex, filepath.Base(p))
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	hdr, flat, err := readIndexFile(s.IndexPath())
	if err != nil {
		return nil, err
	}

	meta, err := readMetadataFile(s.MetadataPath())
	if err != nil {
		return nil, err
	}

	if meta.Generation != hdr.generation {
		return nil, fmt.Errorf("%w: index generation %d, metadata generation %d", ErrCorruptIndex, hdr.generation, meta.Generation)
	}
	if len(meta.Records) != flat.Count() {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata has %d records", ErrCorruptIndex, flat.Count(), len(meta.Records))
	}

	snap := &Snapshot{
		Searcher:   flat,
		Vectors:    flat,
		Records:    meta.Records,
		Model:      hdr.model,
		Backend:    IndexBackendFlat,
		Generation: hdr.generation,
	}

	if meta.Backend == IndexBackendAnnoy {
		ann, err := LoadAnnoyIndex(s.annoyPath(hdr.generation), flat)
		if err != nil {
			s.logger.Warn("annoy index unavailable, using exact search", "error", err)
		} else {
			snap.Searcher = ann
			snap.Backend = IndexBackendAnnoy
			snap.annoy = ann
		}
	}

	return snap, nil
}

// Current returns the cached snapshot, loading it on first use.
func (s *IndexStore) Current() (*Snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil {
		return s.snap, nil
	}

	snap, err := s.Load()
	if err != nil {
		return nil, err
	}
	s.snap = snap
	s.logger.Debug("index loaded", "count", snap.Count(), "dimension", snap.Dimension(), "model", snap.Model)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Current reloads from disk.
func (s *IndexStore) Invalidate() {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
}

func (s *IndexStore) Exists() bool {
	for _, p := range []string{s.IndexPath(), s.MetadataPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (s *IndexStore) Status() (IndexStatus, error) {
	st := IndexStatus{IndexPath: s.IndexPath(), MetadataPath: s.MetadataPath()}

	snap, err := s.Current()
	if errors.Is(err, ErrNoIndex) {
		return st, nil
	}
	if err != nil {
		return st, err
	}

	st.Exists = true
	st.Count = snap.Count()
	st.Dimension = snap.Dimension()
	st.Model = snap.Model
	st.Backend = snap.Backend
	st.Generation = snap.Generation
	st.BuiltAt = time.Unix(0, snap.Generation).UTC()
	return st, nil
}

func (s *IndexStore) removeStaleAnnoy(keep int64) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "index-*.ann"))
	if err != nil {
		return
	}
	current := s.annoyPath(keep)
	for _, m := range matches {
		if m != current {
			_ = os.Remove(m)
		}
	}
}

// writeTemp stages a file in dir and returns its path once it is synced.
func writeTemp(dir, name string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return "", err
	}
	path := f.Name()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

type indexHeader struct {
	dimension  int
	count      int
	generation int64
	model      string
}

func writeIndex(w io.Writer, snap *Snapshot) error {
	flat := snap.Vectors
	if len(snap.Model) > maxModelName {
		return fmt.Errorf("model name longer than %d bytes", maxModelName)
	}

	fields := []any{
		[]byte(indexMagic),
		uint16(formatVersion),
		uint32(flat.Dimension()),
		uint32(flat.Count()),
		snap.Generation,
		uint16(len(snap.Model)),
		[]byte(snap.Model),
		flat.data,
	}
	for _, v := range fields {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readIndexFile(path string) (indexHeader, *FlatIndex, error) {
	var hdr indexHeader

	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return hdr, nil, fmt.Errorf("stat index: %w", err)
	}

	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrCorruptIndex, fmt.Sprintf(format, args...))
	}

	r := bufio.NewReader(f)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != indexMagic {
		return hdr, nil, corrupt("bad magic in %s", filepath.Base(path))
	}

	var (
		version  uint16
		dim      uint32
		count    uint32
		modelLen uint16
	)
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return hdr, nil, corrupt("read version: %v", err)
	}
	if version != formatVersion {
		return hdr, nil, corrupt("unsupported index version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return hdr, nil, corrupt("read dimension: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return hdr, nil, corrupt("read count: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.generation); err != nil {
		return hdr, nil, corrupt("read generation: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &modelLen); err != nil {
		return hdr, nil, corrupt("read model length: %v", err)
	}
	if modelLen > maxModelName {
		return hdr, nil, corrupt("model name length %d", modelLen)
	}
	model := make([]byte, modelLen)
	if _, err := io.ReadFull(r, model); err != nil {
		return hdr, nil, corrupt("read model: %v", err)
	}
	if dim == 0 {
		return hdr, nil, corrupt("zero dimension")
	}

	headerSize := int64(len(indexMagic) + 2 + 4 + 4 + 8 + 2 + int(modelLen))
	want := headerSize + int64(dim)*int64(count)*4
	if info.Size() != want {
		return hdr, nil, corrupt("index is %d bytes, header describes %d", info.Size(), want)
	}

	data := make([]float32, int(dim)*int(count))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return hdr, nil, corrupt("read vectors: %v", err)
	}

	hdr.dimension = int(dim)
	hdr.count = int(count)
	hdr.model = string(model)
	return hdr, &FlatIndex{dim: int(dim), data: data}, nil
}

type metadataFile struct {
	Version    int      `json:"version"`
	Generation int64    `json:"generation"`
	Model      string   `json:"model"`
	Dimension  int      `json:"dimension"`
	Backend    string   `json:"backend"`
	Records    []Record `json:"records"`
}

func writeMetadata(w io.Writer, snap *Snapshot) error {
	return json.NewEncoder(w).Encode(metadataFile{
		Version:    formatVersion,
		Generation: snap.Generation,
		Model:      snap.Model,
		Dimension:  snap.Dimension(),
		Backend:    snap.Backend,
		Records:    snap.Records,
	})
}

func readMetadataFile(path string) (*metadataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	if err := validateMetadata(data); err != nil {
		return nil, err
	}

	var meta metadataFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse metadata: %v", ErrCorruptIndex, err)
	}
	if meta.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrCorruptIndex, meta.Version)
	}
	return &meta, nil
}

const metadataSchemaURL = "speedchaser://metadata.schema.json"

const metadataSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "generation", "model", "dimension", "backend", "records"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "generation": {"type": "integer"},
    "model": {"type": "string"},
    "dimension": {"type": "integer", "minimum": 1},
    "backend": {"enum": ["flat", "annoy"]},
    "records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source_path", "content", "offset"],
        "properties": {
          "source_path": {"type": "string", "minLength": 1},
          "content": {"type": "string", "pattern": "\\S"},
          "offset": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var metadataSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(metadataSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(metadataSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(metadataSchemaURL)
})

// validateMetadata checks the shape of metadata.json before it is decoded, so
// a record without content or a negative offset is reported as corruption.
func validateMetadata(data []byte) error {
	schema, err := metadataSchema()
	if err != nil {
		return fmt.Errorf("compile metadata schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: parse metadata: %v", ErrCorruptIndex, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrCorruptIndex, err)
	}
	return nil
}
