package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when a provider is created without credentials.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrNoVoiceID is returned when synthesis is attempted without a voice.
	ErrNoVoiceID = errors.New("tts: voice ID required")

	// ErrStreamClosed is returned when reading from a closed audio stream.
	ErrStreamClosed = errors.New("tts: stream closed")

	// ErrProviderUnavailable is returned when a provider cannot serve the
	// request, or when a chain is built with no providers.
	ErrProviderUnavailable = errors.New("tts: no providers available")

	// ErrAllProvidersFailed matches a ChainError via errors.Is.
	ErrAllProvidersFailed = errors.New("tts: all providers failed")
)

// APIError is an error response from a synthesis API. The orchestrator
// treats synthesis errors per segment; callers inspecting the cause use
// the predicates below rather than matching status codes.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the API's own error code, when it sends one.
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether the provider throttled the request.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized reports whether the credentials were rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError reports a provider-side failure.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable reports whether retrying the same request can succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError tags an error with the provider that produced it, so a
// chain's aggregate errors stay attributable.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
