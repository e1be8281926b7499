package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newIngestFixture(t *testing.T) (*IngestUseCase, *IndexStore) {
	t.Helper()
	cfg := DefaultConfig()
	store := NewIndexStore(filepath.Join(t.TempDir(), "vectorstore"), cfg.Index, nil)
	return NewIngestUseCase(cfg, store, NewHashEmbedder(0, DeviceCPU), nil), store
}

func TestIngestUseCaseBuildsIndex(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":                 "hello world",
		"docs/b.md":             "foo bar",
		"docs/blank.md":         "   \n",
		"image.png":             "png",
		"node_modules/x/y.js":   "ignored",
		"broken.pdf":            "not a pdf",
		".speedchaser/state.md": "state",
	})

	uc, store := newIngestFixture(t)
	out, err := uc.Execute(context.Background(), IngestInput{Path: root})
	require.NoError(t, err)

	assert.False(t, out.NoOp)
	assert.Equal(t, 2, out.Documents)
	assert.Equal(t, 2, out.Chunks)
	assert.Equal(t, DefaultHashDimension, out.Dimension)
	assert.Equal(t, hashModelName, out.Model)
	assert.Equal(t, IndexBackendFlat, out.Backend)

	reasons := map[string]string{}
	for _, s := range out.Skipped {
		reasons[s.Path] = s.Reason
	}
	assert.Equal(t, "extension not whitelisted", reasons["image.png"])
	assert.Equal(t, "no usable text", reasons["docs/blank.md"])
	assert.NotEmpty(t, reasons["broken.pdf"])

	snap, err := store.Current()
	require.NoError(t, err)
	require.Equal(t, 2, snap.Count())
	assert.Equal(t, filepath.Join(root, "a.txt"), snap.Records[0].SourcePath)
	assert.Equal(t, filepath.Join(root, "docs", "b.md"), snap.Records[1].SourcePath)
}

func TestIngestUseCaseSingleFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"notes.md": "just one file"})

	uc, store := newIngestFixture(t)
	out, err := uc.Execute(context.Background(), IngestInput{Path: filepath.Join(root, "notes.md")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Documents)

	snap, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes.md"), snap.Records[0].SourcePath)
}

func TestIngestUseCaseEmptyCorpusKeepsIndex(t *testing.T) {
	full := t.TempDir()
	writeTree(t, full, map[string]string{"a.txt": "hello world", "b.txt": "foo bar"})
	empty := t.TempDir()
	writeTree(t, empty, map[string]string{"only.png": "png"})

	uc, store := newIngestFixture(t)
	_, err := uc.Execute(context.Background(), IngestInput{Path: full})
	require.NoError(t, err)
	before, err := os.ReadFile(store.IndexPath())
	require.NoError(t, err)

	out, err := uc.Execute(context.Background(), IngestInput{Path: empty})
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Zero(t, out.Chunks)

	after, err := os.ReadFile(store.IndexPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap, err := store.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count())
}

func TestIngestUseCaseRejectsBadChunking(t *testing.T) {
	uc, store := newIngestFixture(t)
	uc.cfg.Chunking.Overlap = uc.cfg.Chunking.Size

	_, err := uc.Execute(context.Background(), IngestInput{Path: t.TempDir()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, store.Exists())
}

func TestIngestUseCaseMissingPath(t *testing.T) {
	uc, _ := newIngestFixture(t)
	_, err := uc.Execute(context.Background(), IngestInput{Path: filepath.Join(t.TempDir(), "nope")})
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestAskUseCase(t *testing.T) {
	store := ingestTexts(t, t.TempDir(), Document{Path: "a.txt", Text: "hello world"})
	retriever := NewRetriever(store, NewHashEmbedder(0, DeviceCPU), nil)
	cfg := DefaultConfig()
	ctx := context.Background()

	provider := &fakeProvider{reply: "answer"}
	reply, err := NewAskUseCase(cfg, provider, retriever, nil).Execute(ctx, AskInput{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply.Text)
	require.Len(t, provider.calls[0], 3)
	assert.Equal(t, DefaultSystemPrompt, provider.calls[0][0].Content)

	provider = &fakeProvider{reply: "bare"}
	_, err = NewAskUseCase(cfg, provider, retriever, nil).Execute(ctx, AskInput{
		Prompt:       "hello",
		SystemPrompt: "custom",
		NoContext:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "custom"},
		{Role: RoleUser, Content: "hello"},
	}, provider.calls[0])
}

func TestFileTaskUseCase(t *testing.T) {
	refs := t.TempDir()
	writeTree(t, refs, map[string]string{"guide.md": "step one"})
	provider := &fakeProvider{reply: "summary"}
	uc := NewFileTaskUseCase(refs, DefaultConfig(), provider, nil)
	ctx := context.Background()

	reply, err := uc.Execute(ctx, FileTaskInput{Name: "guide.md", Task: "Summarize it."})
	require.NoError(t, err)
	assert.Equal(t, "summary", reply.Text)
	assert.Equal(t, "File content: step one\nTask: Summarize it.", provider.calls[0][0].Content)

	_, err = uc.Execute(ctx, FileTaskInput{Name: "guide.md"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(provider.calls[1][0].Content, "Task: Process this file."))

	_, err = uc.Execute(ctx, FileTaskInput{Name: "missing.md"})
	assert.Error(t, err)

	_, err = uc.Execute(ctx, FileTaskInput{Name: "../escape.md"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Len(t, provider.calls, 2)
}

func TestGenerateDocsUseCase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	cfg := DefaultConfig()
	store := NewIndexStore(t.TempDir(), cfg.Index, nil)

	path, doc, err := NewGenerateDocsUseCase(cfg, store).Execute(context.Background(), GenerateDocsInput{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DocsFilename), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, string(written))

	assert.Contains(t, doc, "# Speed Chaser Configuration")
	assert.Contains(t, doc, "**System Prompt:** "+DefaultSystemPrompt)
	assert.Contains(t, doc, "**Reference Folder:** refs")
	assert.Contains(t, doc, "- Top k: 3")
	assert.Contains(t, doc, "**Index:** not built yet")
	assert.Contains(t, doc, "| self-reference | . |")
}
