package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testScope(t *testing.T) Scope {
	t.Helper()
	tmpDir := t.TempDir()
	stateDir := filepath.Join(tmpDir, ScopeDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return Scope{Type: ScopeProject, Path: tmpDir, StateDir: stateDir}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Embeddings.Backend != EmbedBackendHash {
		t.Errorf("expected backend %q, got %q", EmbedBackendHash, cfg.Embeddings.Backend)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("expected 800/100 chunking, got %d/%d", cfg.Chunking.Size, cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected top_k 3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.RefsFolder != "refs" {
		t.Errorf("expected refs folder 'refs', got %q", cfg.RefsFolder)
	}
	if _, ok := cfg.Contexts[DefaultContextName]; !ok {
		t.Errorf("expected context %q", DefaultContextName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	scope := testScope(t)

	cfg := DefaultConfig()
	cfg.DefaultProvider = "anthropic"
	cfg.Providers["anthropic"] = ProviderConfig{
		APIKey: "sk-test",
		Model:  "claude-3-haiku",
	}
	cfg.Contexts["review"] = ContextConfig{Folder: "src", Prompt: "Review carefully."}
	cfg.Index.Backend = IndexBackendAnnoy

	if err := SaveConfig(scope, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.DefaultProvider != "anthropic" {
		t.Errorf("default provider = %q, want %q", loaded.DefaultProvider, "anthropic")
	}
	if p, ok := loaded.Providers["anthropic"]; !ok {
		t.Error("expected provider 'anthropic' to exist")
	} else if p.APIKey != "sk-test" || p.Model != "claude-3-haiku" {
		t.Errorf("provider = %+v", p)
	}
	if c := loaded.Contexts["review"]; c.Folder != "src" || c.Prompt != "Review carefully." {
		t.Errorf("context = %+v", c)
	}
	if loaded.Index.Backend != IndexBackendAnnoy {
		t.Errorf("index backend = %q", loaded.Index.Backend)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(testScope(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Embeddings.Backend != EmbedBackendHash {
		t.Errorf("expected default backend, got %q", cfg.Embeddings.Backend)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	scope := testScope(t)
	if err := os.WriteFile(scope.ConfigPath(), []byte("{{invalid yaml:::"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadConfig(scope); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	scope := testScope(t)
	if err := os.WriteFile(scope.ConfigPath(), []byte("chunking:\n  size: 400\nretrieval:\n  top_k: 5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Chunking.Size != 400 {
		t.Errorf("size = %d, want 400", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap != DefaultChunkOverlap {
		t.Errorf("overlap = %d, want default %d", cfg.Chunking.Overlap, DefaultChunkOverlap)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("top_k = %d, want 5", cfg.Retrieval.TopK)
	}
	if cfg.SystemPrompt != DefaultSystemPrompt {
		t.Error("expected the default system prompt")
	}
}

func TestConfigApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["openai"] = ProviderConfig{Model: "gpt-4o-mini"}

	env := map[string]string{
		"REFS_FOLDER":             "/data/refs",
		"SYSTEM_PROMPT":           "Be terse.",
		"OPENROUTER_API_KEY":      "or-key",
		"OPENAI_API_KEY":          "oa-key",
		"ANTHROPIC_API_KEY":       "an-key",
		"DEFAULT_MODEL":           "mistralai/mistral-7b",
		"DEFAULT_EMBEDDING_MODEL": "text-embedding-3-large",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.RefsFolder != "/data/refs" {
		t.Errorf("refs folder = %q", cfg.RefsFolder)
	}
	if cfg.SystemPrompt != "Be terse." {
		t.Errorf("system prompt = %q", cfg.SystemPrompt)
	}
	if p := cfg.Providers["openrouter"]; p.APIKey != "or-key" || p.Model != "mistralai/mistral-7b" {
		t.Errorf("openrouter = %+v", p)
	}
	if p := cfg.Providers["openai"]; p.APIKey != "oa-key" {
		t.Errorf("openai = %+v", p)
	}
	if _, ok := cfg.Providers["anthropic"]; ok {
		t.Error("ANTHROPIC_API_KEY must not create an unconfigured provider")
	}
	if cfg.Embeddings.APIKey != "oa-key" || cfg.Embeddings.Model != "text-embedding-3-large" {
		t.Errorf("embeddings = %+v", cfg.Embeddings)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap not below size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"no extensions", func(c *Config) { c.Ingest.Extensions = nil }},
		{"unknown embeddings backend", func(c *Config) { c.Embeddings.Backend = "gollama" }},
		{"negative dimension", func(c *Config) { c.Embeddings.Dimension = -1 }},
		{"unknown index backend", func(c *Config) { c.Index.Backend = "faiss" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigLookups(t *testing.T) {
	cfg := DefaultConfig()

	name, p, err := cfg.Provider("")
	if err != nil || name != DefaultProviderName || p.Model != DefaultChatModel {
		t.Errorf("Provider(\"\") = %q, %+v, %v", name, p, err)
	}
	if _, _, err := cfg.Provider("missing"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	name, _, err = cfg.Context("")
	if err != nil || name != DefaultContextName {
		t.Errorf("Context(\"\") = %q, %v", name, err)
	}
	if _, _, err := cfg.Context("nope"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
