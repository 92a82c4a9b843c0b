package stt

import (
	"log/slog"
	"time"
)

// Config holds STT provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey  string
	BaseURL string

	// Recognition settings
	Model       string
	Language    string
	SampleRate  int
	Channels    int
	Interim     bool
	Endpointing time.Duration

	// Connection settings
	HandshakeTimeout time.Duration
	MaxReconnects    int

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring STT providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default WebSocket base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithLanguage sets the language hint.
func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.Language = lang
	}
}

// WithSampleRate sets the input audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithInterimResults enables partial transcript events.
func WithInterimResults(enabled bool) Option {
	return func(c *Config) {
		c.Interim = enabled
	}
}

// WithEndpointing sets the provider-side trailing silence duration that
// marks the end of speech.
func WithEndpointing(d time.Duration) Option {
	return func(c *Config) {
		c.Endpointing = d
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:            "nova-2",
		Language:         "en",
		SampleRate:       16000,
		Channels:         1,
		Interim:          true,
		Endpointing:      300 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
		MaxReconnects:    1,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
