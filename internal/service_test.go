package internal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupServiceTest(t *testing.T) *Services {
	t.Helper()
	tmpDir := t.TempDir()

	scope := Scope{
		Type:     ScopeProject,
		Path:     tmpDir,
		StateDir: filepath.Join(tmpDir, ScopeDirName),
	}
	if err := os.MkdirAll(scope.VectorPath(), 0755); err != nil {
		t.Fatalf("mkdir vectors: %v", err)
	}

	svc := NewServices(scope, DefaultConfig(), NewHashEmbedder(0, DeviceCPU), nil)
	svc.Providers = func(context.Context, *Config, string) (ChatProvider, error) {
		return &fakeProvider{reply: "pong"}, nil
	}
	return svc
}

func TestServicesIngestAndChat(t *testing.T) {
	svc := setupServiceTest(t)
	ctx := context.Background()

	docs := filepath.Join(svc.Scope.Path, "docs")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "a.md"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := svc.Ingest.Execute(ctx, IngestInput{Path: docs})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if out.Chunks != 1 {
		t.Fatalf("expected 1 chunk, got %d", out.Chunks)
	}

	provider, err := svc.Provider(ctx, "")
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	session, err := svc.Chat(provider, DefaultContextName)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	reply, err := session.Send(ctx, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != "pong" || len(reply.Sources) != 1 {
		t.Errorf("unexpected reply %+v", reply)
	}

	fp := provider.(*fakeProvider)
	if got := fp.calls[0][0].Content; got != svc.Config.Contexts[DefaultContextName].Prompt {
		t.Errorf("expected the context prompt, got %q", got)
	}

	if _, err := svc.Chat(provider, "nope"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown context, got %v", err)
	}
}

func TestServicesIngestPath(t *testing.T) {
	svc := setupServiceTest(t)
	svc.Config.Contexts["refs"] = ContextConfig{Folder: "refs", Prompt: "p"}

	tests := []struct {
		path, context, want string
	}{
		{"explicit", "refs", "explicit"},
		{"", "refs", "refs"},
		{"", DefaultContextName, "."},
		{"", "", "."},
	}
	for _, tt := range tests {
		got, err := svc.IngestPath(tt.path, tt.context)
		if err != nil {
			t.Fatalf("IngestPath(%q, %q): %v", tt.path, tt.context, err)
		}
		if got != tt.want {
			t.Errorf("IngestPath(%q, %q) = %q, want %q", tt.path, tt.context, got, tt.want)
		}
	}

	if _, err := svc.IngestPath("", "missing"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestServicesFileTaskUsesScopeRefs(t *testing.T) {
	svc := setupServiceTest(t)
	refs := filepath.Join(svc.Scope.Path, DefaultRefsFolder)
	if err := os.MkdirAll(refs, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(refs, "r.txt"), []byte("ref text"), 0644); err != nil {
		t.Fatal(err)
	}

	provider, _ := svc.Provider(context.Background(), "")
	reply, err := svc.FileTask(provider).Execute(context.Background(), FileTaskInput{Name: "r.txt"})
	if err != nil {
		t.Fatalf("file task: %v", err)
	}
	if reply.Text != "pong" {
		t.Errorf("unexpected reply %q", reply.Text)
	}
}

func TestLoadServicesRejectsInvalidConfig(t *testing.T) {
	home := t.TempDir()
	resolver := testResolver(home, home)
	scope := resolver.Global()
	if err := os.MkdirAll(scope.StateDir, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Retrieval.TopK = 0
	if err := SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := LoadServices(resolver, "global", nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg.Retrieval.TopK = 2
	if err := SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	svc, err := LoadServices(resolver, "global", nil)
	if err != nil {
		t.Fatalf("load services: %v", err)
	}
	defer svc.Close()

	if svc.Store.Dir() != scope.VectorPath() {
		t.Errorf("store dir = %q, want %q", svc.Store.Dir(), scope.VectorPath())
	}
}
