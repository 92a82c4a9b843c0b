// Package session implements the voice conversation core: the
// per-connection session, streaming reply segmentation, ordered
// synthesis scheduling, and the orchestrator state machine that ties
// transcription, generation, and synthesis together.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
)

// Session is one live voice conversation.
type Session struct {
	// ID is the session's unique identifier.
	ID string

	// Profile is the customer configuration, immutable for the
	// session's lifetime.
	Profile *customer.Profile

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	mu      sync.Mutex
	history []inference.Message
	window  int
}

// NewSession creates a session for a customer. The window caps how
// many history messages are kept.
func NewSession(profile *customer.Profile, window int) *Session {
	if window <= 0 {
		window = 20
	}
	return &Session{
		ID:        uuid.NewString(),
		Profile:   profile,
		CreatedAt: time.Now(),
		window:    window,
	}
}

// AppendTurn records a user utterance and the assistant's reply,
// clamping history to the window.
func (s *Session) AppendTurn(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		inference.NewUserMessage(userText),
		inference.NewAssistantMessage(assistantText),
	)
	s.clamp()
}

// AppendAssistant records an assistant-only turn (the greeting).
func (s *Session) AppendAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, inference.NewAssistantMessage(text))
	s.clamp()
}

// History returns a copy of the conversation history.
func (s *Session) History() []inference.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inference.Message, len(s.history))
	copy(out, s.history)
	return out
}

// clamp trims history to the window. Caller holds the lock.
func (s *Session) clamp() {
	if len(s.history) > s.window {
		s.history = s.history[len(s.history)-s.window:]
	}
}
