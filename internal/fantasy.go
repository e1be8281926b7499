package internal

import (
	"context"
	"fmt"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

type FantasyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

var _ ChatProvider = (*FantasyProvider)(nil)

type FantasyProvider struct {
	model fantasy.LanguageModel
	name  string
}

func NewFantasyProvider(ctx context.Context, cfg FantasyConfig) (*FantasyProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: provider %s has no api key", ErrInvalidConfig, cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: provider %s has no model", ErrInvalidConfig, cfg.Provider)
	}

	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("%w: unsupported provider: %s", ErrInvalidConfig, cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	return &FantasyProvider{
		model: model,
		name:  cfg.Provider,
	}, nil
}

// NewProviderFromConfig builds the named provider, or the default one.
func NewProviderFromConfig(ctx context.Context, cfg *Config, name string) (*FantasyProvider, error) {
	name, pc, err := cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	return NewFantasyProvider(ctx, FantasyConfig{
		Provider: name,
		APIKey:   pc.APIKey,
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,
	})
}

func (p *FantasyProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	prompt := make(fantasy.Prompt, 0, len(messages))
	for _, m := range messages {
		prompt = append(prompt, toFantasyMessage(m))
	}

	resp, err := p.model.Generate(ctx, fantasy.Call{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProvider, p.name, err)
	}

	return resp.Content.Text(), nil
}

func toFantasyMessage(m Message) fantasy.Message {
	role := fantasy.MessageRoleUser
	switch m.Role {
	case RoleSystem:
		role = fantasy.MessageRoleSystem
	case RoleAssistant:
		role = fantasy.MessageRoleAssistant
	}
	return fantasy.Message{
		Role:    role,
		Content: []fantasy.MessagePart{fantasy.TextPart{Text: m.Content}},
	}
}
