package v1

import "log/slog"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	scope     string
	stateDir  string
	dimension int
	topK      int
	logger    *slog.Logger
}

// WithScope forces a specific scope (global or project).
func WithScope(scope string) Option {
	return func(c *clientConfig) {
		c.scope = scope
	}
}

// WithStateDir keeps the index and config in dir instead of a resolved scope.
func WithStateDir(dir string) Option {
	return func(c *clientConfig) {
		c.stateDir = dir
	}
}

// WithDimension sets the embedding dimension of the offline embedder.
func WithDimension(dim int) Option {
	return func(c *clientConfig) {
		c.dimension = dim
	}
}

// WithTopK sets the default number of results for Retrieve.
func WithTopK(k int) Option {
	return func(c *clientConfig) {
		c.topK = k
	}
}

// WithLogger routes client logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
