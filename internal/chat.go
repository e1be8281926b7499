package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatProvider completes a conversation given as role-tagged messages.
type ChatProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ContextBlock renders retrieved chunks for injection as a system message.
func ContextBlock(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant local context:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[%s chunk]:\n%s\n\n", r.SourcePath, r.Content)
	}
	return b.String()
}

type Reply struct {
	Text    string   `json:"text"`
	Sources []Result `json:"sources,omitempty"`
}

type ChatOptions struct {
	SystemPrompt string
	TopK         int
	Logger       *slog.Logger
}

// ChatSession keeps the turns of one conversation. Retrieved context is sent
// with the turn it was retrieved for and is not kept in history.
type ChatSession struct {
	provider  ChatProvider
	retriever *Retriever
	system    string
	topK      int
	logger    *slog.Logger

	history     []Message
	noIndexSeen bool
}

// NewChatSession creates a session. retriever may be nil to disable
// retrieval.
func NewChatSession(provider ChatProvider, retriever *Retriever, opts ChatOptions) *ChatSession {
	if opts.TopK < 1 {
		opts.TopK = DefaultTopK
	}
	return &ChatSession{
		provider:  provider,
		retriever: retriever,
		system:    opts.SystemPrompt,
		topK:      opts.TopK,
		logger:    orDiscard(opts.Logger),
	}
}

func (s *ChatSession) History() []Message {
	return append([]Message(nil), s.history...)
}

func (s *ChatSession) Reset() { s.history = nil }

// Send runs one turn. When no index exists the turn goes out without
// context. A provider failure returns an error wrapping ErrProvider and
// leaves the history as it was.
func (s *ChatSession) Send(ctx context.Context, prompt string) (Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Reply{}, fmt.Errorf("%w: empty prompt", ErrInvalidConfig)
	}

	sources, err := s.retrieve(ctx, prompt)
	if err != nil {
		return Reply{}, err
	}

	messages := make([]Message, 0, len(s.history)+3)
	if s.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: s.system})
	}
	messages = append(messages, s.history...)
	if block := ContextBlock(sources); block != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: block})
	}
	user := Message{Role: RoleUser, Content: prompt}
	messages = append(messages, user)

	text, err := s.provider.Complete(ctx, messages)
	if err != nil {
		if !errors.Is(err, ErrProvider) {
			err = fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return Reply{Text: "Error: " + err.Error(), Sources: sources}, err
	}

	s.history = append(s.history, user, Message{Role: RoleAssistant, Content: text})
	return Reply{Text: text, Sources: sources}, nil
}

func (s *ChatSession) retrieve(ctx context.Context, prompt string) ([]Result, error) {
	if s.retriever == nil {
		return nil, nil
	}

	results, err := s.retriever.Retrieve(ctx, prompt, s.topK)
	if errors.Is(err, ErrNoIndex) {
		if !s.noIndexSeen {
			s.logger.Warn("no vector index, answering without local context")
			s.noIndexSeen = true
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	s.logger.Debug("retrieved context", "chunks", len(results))
	return results, nil
}
