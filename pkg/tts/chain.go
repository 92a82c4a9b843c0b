package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Provider by trying providers in order until one
// succeeds. The voice pipeline uses it to fall back (ElevenLabs to
// OpenAI) without the turn noticing anything but a voice change.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "tts.chain"),
	}, nil
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	chain, err := NewChain(providers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "tts.chain")
	return chain, nil
}

// Synthesize tries each provider until one returns audio. A cancelled
// context stops the walk immediately; fallback never outlives the turn.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var failures []error

	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i, "chars", len(text))
			}
			return result, nil
		}

		failures = append(failures, err)
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)
	}

	return nil, &ChainError{Errors: failures}
}

// Stream tries each provider until one opens an audio stream.
func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	var failures []error

	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := p.Stream(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider stream succeeded", "provider_index", i, "chars", len(text))
			}
			return stream, nil
		}

		failures = append(failures, err)
		c.logger.Warn("provider stream failed, trying next", "provider_index", i, "error", err)
	}

	return nil, &ChainError{Errors: failures}
}

// Health reports healthy while at least one provider is reachable.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
	}

	c.logger.Debug("health check complete", "healthy", healthy, "total", len(c.providers))
	return nil
}

// Close closes all providers, returning the last error seen.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in fallback order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ChainError aggregates the per-provider errors of a failed chain call.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("tts chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap returns the last provider's error.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Is matches ErrAllProvidersFailed so callers need not know the
// concrete type.
func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
