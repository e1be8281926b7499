package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Use case input/output DTOs

type IngestInput struct {
	Path string
}

type IngestOutput struct {
	Path      string        `json:"path"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   []SkippedFile `json:"skipped,omitempty"`
	Model     string        `json:"model"`
	Device    string        `json:"device"`
	Dimension int           `json:"dimension"`
	Backend   string        `json:"backend"`
	NoOp      bool          `json:"no_op"`
	Duration  time.Duration `json:"duration"`
}

type AskInput struct {
	Prompt       string
	SystemPrompt string
	NoContext    bool
}

type FileTaskInput struct {
	Name string
	Task string
}

type GenerateDocsInput struct {
	Dir string
}

// Use cases

// IngestUseCase rebuilds the index from a directory tree. Every run is a full
// rebuild.
type IngestUseCase struct {
	cfg        *Config
	store      *IndexStore
	embedder   Embedder
	extractors *ExtractorRegistry
	logger     *slog.Logger
	fsFor      func(root string) billy.Filesystem
}

func NewIngestUseCase(cfg *Config, store *IndexStore, embedder Embedder, logger *slog.Logger) *IngestUseCase {
	return &IngestUseCase{
		cfg:        cfg,
		store:      store,
		embedder:   embedder,
		extractors: DefaultExtractors(cfg.Ingest.Extensions),
		logger:     orDiscard(logger),
		fsFor:      func(root string) billy.Filesystem { return osfs.New(root) },
	}
}

func (uc *IngestUseCase) Execute(ctx context.Context, input IngestInput) (*IngestOutput, error) {
	started := time.Now()

	chunker, err := NewChunker(uc.cfg.Chunking.Size, uc.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	root := input.Path
	if root == "" {
		root = "."
	}

	fs, files, skipped, err := uc.listFiles(root)
	if err != nil {
		return nil, err
	}

	out := &IngestOutput{
		Path:    root,
		Model:   uc.embedder.Model(),
		Device:  uc.embedder.Device(),
		Backend: uc.cfg.Index.Backend,
	}
	for _, s := range skipped {
		uc.logger.Debug("skipping file", "path", s.Path, "reason", s.Reason)
	}

	var chunks []Chunk
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := uc.extractors.Extract(fs, rel)
		if err != nil {
			reason := "extraction failed"
			if errors.Is(err, ErrEmptyContent) {
				reason = "no usable text"
			}
			uc.logger.Warn("skipping file", "path", rel, "reason", reason, "error", err)
			skipped = append(skipped, SkippedFile{Path: rel, Reason: reason})
			continue
		}

		doc.Path = displayPath(root, rel)
		docChunks := chunker.Chunk(doc)
		uc.logger.Debug("chunked document", "path", doc.Path, "chunks", len(docChunks))

		chunks = append(chunks, docChunks...)
		out.Documents++
	}
	out.Skipped = skipped

	if len(chunks) == 0 {
		uc.logger.Warn("nothing to index, keeping the existing index", "path", root)
		out.NoOp = true
		out.Duration = time.Since(started)
		return out, nil
	}

	uc.logger.Info("embedding chunks", "chunks", len(chunks), "model", uc.embedder.Model(), "device", uc.embedder.Device())

	snap, err := uc.store.Build(ctx, uc.embedder, chunks, uc.cfg.Embeddings.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := uc.store.Persist(snap); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	out.Chunks = snap.Count()
	out.Dimension = snap.Dimension()
	out.Backend = snap.Backend
	out.Duration = time.Since(started)
	return out, nil
}

// listFiles walks root, or returns root alone when it is a file.
func (uc *IngestUseCase) listFiles(root string) (billy.Filesystem, []string, []SkippedFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("ingest path: %w", err)
	}

	if !info.IsDir() {
		return uc.fsFor(filepath.Dir(root)), []string{filepath.Base(root)}, nil, nil
	}

	fs := uc.fsFor(root)
	files, skipped, err := NewWalker(uc.cfg.Ingest.Rules()).Walk(fs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return fs, files, skipped, nil
}

func displayPath(root, rel string) string {
	info, err := os.Stat(root)
	if err == nil && !info.IsDir() {
		return filepath.Clean(root)
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}

// AskUseCase sends a single prompt with no conversation history.
type AskUseCase struct {
	cfg       *Config
	provider  ChatProvider
	retriever *Retriever
	logger    *slog.Logger
}

func NewAskUseCase(cfg *Config, provider ChatProvider, retriever *Retriever, logger *slog.Logger) *AskUseCase {
	return &AskUseCase{cfg: cfg, provider: provider, retriever: retriever, logger: orDiscard(logger)}
}

func (uc *AskUseCase) Execute(ctx context.Context, input AskInput) (Reply, error) {
	system := input.SystemPrompt
	if system == "" {
		system = uc.cfg.SystemPrompt
	}

	retriever := uc.retriever
	if input.NoContext {
		retriever = nil
	}

	session := NewChatSession(uc.provider, retriever, ChatOptions{
		SystemPrompt: system,
		TopK:         uc.cfg.Retrieval.TopK,
		Logger:       uc.logger,
	})
	return session.Send(ctx, input.Prompt)
}

// FileTaskUseCase runs a task against one file from the refs folder.
type FileTaskUseCase struct {
	refsDir    string
	provider   ChatProvider
	extractors *ExtractorRegistry
	logger     *slog.Logger
}

func NewFileTaskUseCase(refsDir string, cfg *Config, provider ChatProvider, logger *slog.Logger) *FileTaskUseCase {
	return &FileTaskUseCase{
		refsDir:    refsDir,
		provider:   provider,
		extractors: DefaultExtractors(cfg.Ingest.Extensions),
		logger:     orDiscard(logger),
	}
}

const defaultFileTask = "Process this file."

func (uc *FileTaskUseCase) Execute(ctx context.Context, input FileTaskInput) (Reply, error) {
	name := filepath.ToSlash(filepath.Clean(input.Name))
	if name == "." || strings.HasPrefix(name, "../") || filepath.IsAbs(input.Name) {
		return Reply{}, fmt.Errorf("%w: %q is not inside the refs folder", ErrInvalidConfig, input.Name)
	}

	fs := osfs.New(uc.refsDir)
	if _, err := fs.Stat(name); err != nil {
		return Reply{}, fmt.Errorf("file %s not found in %s: %w", name, uc.refsDir, err)
	}

	doc, err := uc.extractors.Extract(fs, name)
	if err != nil {
		return Reply{}, err
	}

	task := strings.TrimSpace(input.Task)
	if task == "" {
		task = defaultFileTask
	}

	session := NewChatSession(uc.provider, nil, ChatOptions{Logger: uc.logger})
	return session.Send(ctx, fmt.Sprintf("File content: %s\nTask: %s", doc.Text, task))
}

// GenerateDocsUseCase writes a markdown description of the active
// configuration to <dir>/current_config.md.
type GenerateDocsUseCase struct {
	cfg   *Config
	store *IndexStore
}

func NewGenerateDocsUseCase(cfg *Config, store *IndexStore) *GenerateDocsUseCase {
	return &GenerateDocsUseCase{cfg: cfg, store: store}
}

const DocsFilename = "current_config.md"

func (uc *GenerateDocsUseCase) Execute(_ context.Context, input GenerateDocsInput) (string, string, error) {
	dir := input.Dir
	if dir == "" {
		dir = "docs"
	}

	doc := uc.render()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create docs directory: %w", err)
	}
	path := filepath.Join(dir, DocsFilename)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return "", "", fmt.Errorf("write docs: %w", err)
	}
	return path, doc, nil
}

func (uc *GenerateDocsUseCase) render() string {
	cfg := uc.cfg
	var b strings.Builder

	b.WriteString("# Speed Chaser Configuration\n\n")
	fmt.Fprintf(&b, "**System Prompt:** %s\n\n", cfg.SystemPrompt)
	fmt.Fprintf(&b, "**Reference Folder:** %s\n\n", cfg.RefsFolder)

	if name, p, err := cfg.Provider(""); err == nil {
		fmt.Fprintf(&b, "**Chat Provider:** %s (%s)\n\n", name, p.Model)
	}

	b.WriteString("## Retrieval\n\n")
	fmt.Fprintf(&b, "- Chunk size: %d\n", cfg.Chunking.Size)
	fmt.Fprintf(&b, "- Chunk overlap: %d\n", cfg.Chunking.Overlap)
	fmt.Fprintf(&b, "- Top k: %d\n", cfg.Retrieval.TopK)
	fmt.Fprintf(&b, "- Embeddings: %s", cfg.Embeddings.Backend)
	if cfg.Embeddings.Model != "" {
		fmt.Fprintf(&b, " (%s)", cfg.Embeddings.Model)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Index backend: %s\n", cfg.Index.Backend)
	fmt.Fprintf(&b, "- Extensions: %s\n", strings.Join(cfg.Ingest.Extensions, " "))
	fmt.Fprintf(&b, "- Ignored folders: %s\n", strings.Join(cfg.Ingest.IgnoreFolders, " "))
	fmt.Fprintf(&b, "- Ignored files: %s\n\n", strings.Join(cfg.Ingest.IgnoreFiles, " "))

	if uc.store != nil {
		st, err := uc.store.Status()
		switch {
		case err != nil:
			fmt.Fprintf(&b, "**Index:** unreadable (%v)\n\n", err)
		case !st.Exists:
			b.WriteString("**Index:** not built yet\n\n")
		default:
			fmt.Fprintf(&b, "**Index:** %d chunks, dimension %d, model %s, built %s\n\n",
				st.Count, st.Dimension, st.Model, st.BuiltAt.Format(time.RFC3339))
		}
	}

	if len(cfg.Contexts) > 0 {
		b.WriteString("## Contexts\n\n")
		b.WriteString("| Name | Folder | Prompt |\n|---|---|---|\n")
		for _, name := range sortedKeys(cfg.Contexts) {
			c := cfg.Contexts[name]
			fmt.Fprintf(&b, "| %s | %s | %s |\n", name, c.Folder, strings.ReplaceAll(c.Prompt, "|", "\\|"))
		}
	}

	return b.String()
}
