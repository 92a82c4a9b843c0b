package session

import (
	"log/slog"
	"time"
)

// Defaults for orchestrator configuration.
const (
	DefaultHistoryWindow   = 20
	DefaultMinPartialRunes = 3
	DefaultIdleTimeout     = 5 * time.Minute
)

// Config holds orchestrator tuning parameters.
type Config struct {
	// HistoryWindow caps conversation history length.
	HistoryWindow int

	// MinPartialRunes is the barge-in sensitivity threshold.
	MinPartialRunes int

	// MaxSegmentLen is the reply segment length cap.
	MaxSegmentLen int

	// SynthWorkers bounds concurrent synthesis calls.
	SynthWorkers int

	// IdleTimeout destroys a session with no user speech.
	IdleTimeout time.Duration

	// Logger for orchestrator events.
	Logger *slog.Logger
}

// Option is a functional option for orchestrator configuration.
type Option func(*Config)

// WithHistoryWindow sets the history cap.
func WithHistoryWindow(n int) Option {
	return func(c *Config) {
		c.HistoryWindow = n
	}
}

// WithMinPartialRunes sets the barge-in sensitivity threshold.
func WithMinPartialRunes(n int) Option {
	return func(c *Config) {
		c.MinPartialRunes = n
	}
}

// WithMaxSegmentLen sets the reply segment length cap.
func WithMaxSegmentLen(n int) Option {
	return func(c *Config) {
		c.MaxSegmentLen = n
	}
}

// WithSynthWorkers sets the synthesis concurrency bound.
func WithSynthWorkers(n int) Option {
	return func(c *Config) {
		c.SynthWorkers = n
	}
}

// WithIdleTimeout sets the idle session timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		HistoryWindow:   DefaultHistoryWindow,
		MinPartialRunes: DefaultMinPartialRunes,
		MaxSegmentLen:   DefaultMaxSegmentLen,
		SynthWorkers:    DefaultSynthWorkers,
		IdleTimeout:     DefaultIdleTimeout,
		Logger:          slog.Default(),
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
