package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// ProviderFactory builds a chat provider by configured name; "" means the
// default provider.
type ProviderFactory func(ctx context.Context, cfg *Config, name string) (ChatProvider, error)

func DefaultProviderFactory(ctx context.Context, cfg *Config, name string) (ChatProvider, error) {
	return NewProviderFromConfig(ctx, cfg, name)
}

// Services wires the stores and use cases of one scope.
type Services struct {
	Scope     Scope
	Config    *Config
	Store     *IndexStore
	Embedder  Embedder
	Retriever *Retriever
	Ingest    *IngestUseCase
	Docs      *GenerateDocsUseCase
	Providers ProviderFactory

	logger *slog.Logger
}

func NewServices(scope Scope, cfg *Config, embedder Embedder, logger *slog.Logger) *Services {
	logger = orDiscard(logger)
	store := NewIndexStore(scope.VectorPath(), cfg.Index, logger)

	return &Services{
		Scope:     scope,
		Config:    cfg,
		Store:     store,
		Embedder:  embedder,
		Retriever: NewRetriever(store, embedder, logger),
		Ingest:    NewIngestUseCase(cfg, store, embedder, logger),
		Docs:      NewGenerateDocsUseCase(cfg, store),
		Providers: DefaultProviderFactory,
		logger:    logger,
	}
}

// LoadServices resolves the scope, reads its configuration with environment
// overrides, validates it and builds the configured embedder.
func LoadServices(resolver *ScopeResolver, scopeHint string, logger *slog.Logger) (*Services, error) {
	scope := resolver.Resolve(scopeHint)

	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(cfg.Embeddings, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return NewServices(scope, cfg, embedder, logger), nil
}

func (s *Services) Logger() *slog.Logger { return s.logger }

func (s *Services) Provider(ctx context.Context, name string) (ChatProvider, error) {
	p, err := s.Providers(ctx, s.Config, name)
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}
	return p, nil
}

func (s *Services) Ask(provider ChatProvider) *AskUseCase {
	return NewAskUseCase(s.Config, provider, s.Retriever, s.logger)
}

func (s *Services) FileTask(provider ChatProvider) *FileTaskUseCase {
	return NewFileTaskUseCase(s.Scope.Resolve(s.Config.RefsFolder), s.Config, provider, s.logger)
}

// Chat starts a guided session using the named context's prompt.
func (s *Services) Chat(provider ChatProvider, contextName string) (*ChatSession, error) {
	prompt := s.Config.SystemPrompt
	if contextName != "" {
		_, c, err := s.Config.Context(contextName)
		if err != nil {
			return nil, err
		}
		prompt = c.Prompt
	}

	return NewChatSession(provider, s.Retriever, ChatOptions{
		SystemPrompt: prompt,
		TopK:         s.Config.Retrieval.TopK,
		Logger:       s.logger,
	}), nil
}

// IngestPath picks what to ingest: an explicit path, else the named
// context's folder, else the working directory.
func (s *Services) IngestPath(path, contextName string) (string, error) {
	if path != "" {
		return path, nil
	}
	if contextName != "" {
		_, c, err := s.Config.Context(contextName)
		if err != nil {
			return "", err
		}
		if c.Folder != "" {
			return c.Folder, nil
		}
	}
	return ".", nil
}

func (s *Services) Close() error {
	if s.Embedder == nil {
		return nil
	}
	return s.Embedder.Close()
}
