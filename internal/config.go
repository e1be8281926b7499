package internal

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSystemPrompt = "You are Speed Chaser, a personal AI assistant for technical tasks, coding, debugging, documentation and general support. " +
		"You reference your own source code, the local refs folder and the configuration files in this directory. " +
		"If you need more information, ask for relevant files or folders to be added."
	DefaultRefsFolder   = "refs"
	DefaultContextName  = "self-reference"
	DefaultProviderName = "openrouter"
	DefaultChatModel    = "openai/gpt-3.5-turbo"
)

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type IngestConfig struct {
	Extensions    []string `yaml:"extensions"`
	IgnoreFolders []string `yaml:"ignore_folders"`
	IgnoreFiles   []string `yaml:"ignore_files"`
}

func (c IngestConfig) Rules() WalkRules {
	return WalkRules{
		Extensions:    c.Extensions,
		IgnoreFolders: c.IgnoreFolders,
		IgnoreFiles:   c.IgnoreFiles,
	}
}

type EmbeddingsConfig struct {
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
	Device    string `yaml:"device,omitempty"`
	BatchSize int    `yaml:"batch_size,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
	Trees   int    `yaml:"trees,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

// ContextConfig is a named guided mode: a system prompt and the folder it
// is usually fed from.
type ContextConfig struct {
	Folder string `yaml:"folder,omitempty"`
	Prompt string `yaml:"prompt"`
}

type Config struct {
	SystemPrompt    string                    `yaml:"system_prompt"`
	RefsFolder      string                    `yaml:"refs_folder"`
	Chunking        ChunkingConfig            `yaml:"chunking"`
	Retrieval       RetrievalConfig           `yaml:"retrieval"`
	Ingest          IngestConfig              `yaml:"ingest"`
	Embeddings      EmbeddingsConfig          `yaml:"embeddings"`
	Index           IndexConfig               `yaml:"index"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Contexts        map[string]ContextConfig  `yaml:"contexts,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		SystemPrompt: DefaultSystemPrompt,
		RefsFolder:   DefaultRefsFolder,
		Chunking: ChunkingConfig{
			Size:    DefaultChunkSize,
			Overlap: DefaultChunkOverlap,
		},
		Retrieval: RetrievalConfig{TopK: DefaultTopK},
		Ingest: IngestConfig{
			Extensions:    append([]string(nil), DefaultExtensions...),
			IgnoreFolders: append([]string(nil), DefaultIgnoreFolders...),
			IgnoreFiles:   append([]string(nil), DefaultIgnoreFiles...),
		},
		Embeddings: EmbeddingsConfig{
			Backend:   EmbedBackendHash,
			Device:    "auto",
			BatchSize: defaultEmbedBatchSize,
		},
		Index: IndexConfig{
			Backend: IndexBackendFlat,
			Trees:   DefaultAnnoyTrees,
		},
		Providers: map[string]ProviderConfig{
			DefaultProviderName: {Model: DefaultChatModel},
		},
		DefaultProvider: DefaultProviderName,
		Contexts: map[string]ContextConfig{
			DefaultContextName: {
				Folder: ".",
				Prompt: "You are referencing your own codebase and configuration files. " +
					"Offer insights, suggestions or help with debugging based on the local source code and any references added to the refs folder.",
			},
		},
	}
}

func LoadConfig(scope Scope) (*Config, error) {
	path := scope.ConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]ContextConfig)
	}

	return cfg, nil
}

func SaveConfig(scope Scope, cfg *Config) error {
	path := scope.ConfigPath()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables. getenv is os.Getenv outside tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("REFS_FOLDER"); v != "" {
		c.RefsFolder = v
	}
	if v := getenv("SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}

	if v := getenv("OPENROUTER_API_KEY"); v != "" {
		p := c.Providers["openrouter"]
		p.APIKey = v
		c.Providers["openrouter"] = p
	}
	if v := getenv("ANTHROPIC_API_KEY"); v != "" {
		if p, ok := c.Providers["anthropic"]; ok {
			p.APIKey = v
			c.Providers["anthropic"] = p
		}
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		if p, ok := c.Providers["openai"]; ok {
			p.APIKey = v
			c.Providers["openai"] = p
		}
		if c.Embeddings.APIKey == "" {
			c.Embeddings.APIKey = v
		}
	}
	if v := getenv("DEFAULT_MODEL"); v != "" {
		name := c.DefaultProvider
		if name == "" {
			name = DefaultProviderName
		}
		p := c.Providers[name]
		p.Model = v
		c.Providers[name] = p
	}
	if v := getenv("DEFAULT_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
}

// Validate rejects settings that would fail later, before any embedding work.
func (c *Config) Validate() error {
	if _, err := NewChunker(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return err
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be at least 1, got %d", ErrInvalidConfig, c.Retrieval.TopK)
	}
	if len(c.Ingest.Extensions) == 0 {
		return fmt.Errorf("%w: ingest.extensions is empty", ErrInvalidConfig)
	}

	switch c.Embeddings.Backend {
	case "", EmbedBackendHash, EmbedBackendOpenAI:
	default:
		return fmt.Errorf("%w: unknown embeddings backend %q", ErrInvalidConfig, c.Embeddings.Backend)
	}
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("%w: embeddings.dimension must not be negative", ErrInvalidConfig)
	}

	switch c.Index.Backend {
	case "", IndexBackendFlat, IndexBackendAnnoy:
	default:
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidConfig, c.Index.Backend)
	}

	return nil
}

// Provider returns the named provider, or the default one for "".
func (c *Config) Provider(name string) (string, ProviderConfig, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	if name == "" {
		name = DefaultProviderName
	}
	p, ok := c.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("%w: provider %q is not configured", ErrInvalidConfig, name)
	}
	return name, p, nil
}

// Context returns the named guided context, or the default one for "".
func (c *Config) Context(name string) (string, ContextConfig, error) {
	if name == "" {
		name = DefaultContextName
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		known := sortedKeys(c.Contexts)
		return "", ContextConfig{}, fmt.Errorf("%w: unknown context %q (known: %s)", ErrInvalidConfig, name, strings.Join(known, ", "))
	}
	return name, ctx, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
