// Package prompt assembles the per-turn LLM request: the customer's
// persona, retrieved knowledge, and clamped conversation history,
// trimmed to a character budget.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
)

// Retriever fetches knowledge chunks for a customer query.
type Retriever interface {
	Retrieve(ctx context.Context, customerID, query string) ([]knowledge.Chunk, error)
}

// Prompt is a fully assembled LLM request.
type Prompt struct {
	// System is the system message content.
	System string

	// Messages is the clamped history plus the current user utterance.
	Messages []inference.Message

	// Chunks are the knowledge chunks grounding this prompt.
	Chunks []knowledge.Chunk

	// Ungrounded is set when retrieval failed and the reply must not
	// claim knowledge-base backing.
	Ungrounded bool
}

// All returns the system message followed by the conversation messages,
// ready for an inference request.
func (p *Prompt) All() []inference.Message {
	out := make([]inference.Message, 0, len(p.Messages)+1)
	out = append(out, inference.NewSystemMessage(p.System))
	return append(out, p.Messages...)
}

// Assembler builds prompts for conversation turns.
type Assembler struct {
	retriever     Retriever
	budget        int
	historyWindow int
	logger        *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithBudget sets the total character budget for an assembled prompt.
func WithBudget(chars int) Option {
	return func(a *Assembler) {
		if chars > 0 {
			a.budget = chars
		}
	}
}

// WithHistoryWindow caps how many history messages a prompt carries.
func WithHistoryWindow(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger.With("component", "prompt")
	}
}

// NewAssembler creates an assembler. A nil retriever always produces
// ungrounded prompts.
func NewAssembler(retriever Retriever, opts ...Option) *Assembler {
	a := &Assembler{
		retriever:     retriever,
		budget:        6000,
		historyWindow: 20,
		logger:        slog.Default().With("component", "prompt"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the prompt for one turn. Retrieval failure degrades
// to an ungrounded prompt rather than failing the turn.
func (a *Assembler) Assemble(ctx context.Context, profile *customer.Profile, history []inference.Message, utterance string) (*Prompt, error) {
	if profile == nil {
		return nil, fmt.Errorf("prompt: profile is required")
	}

	var chunks []knowledge.Chunk
	ungrounded := a.retriever == nil
	if a.retriever != nil {
		var err error
		chunks, err = a.retriever.Retrieve(ctx, profile.ID, utterance)
		if err != nil {
			a.logger.Warn("retrieval failed, assembling ungrounded prompt",
				"customer_id", profile.ID,
				"error", err,
			)
			ungrounded = true
			chunks = nil
		}
	}

	if len(history) > a.historyWindow {
		history = history[len(history)-a.historyWindow:]
	}
	messages := make([]inference.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, inference.NewUserMessage(utterance))

	// Trim to budget: oldest history first, then lowest-ranked chunks.
	// The persona and the current utterance are never dropped.
	system := buildSystem(profile, chunks, ungrounded)
	for size(system, messages) > a.budget && len(messages) > 1 {
		messages = messages[1:]
	}
	for size(system, messages) > a.budget && len(chunks) > 0 {
		chunks = chunks[:len(chunks)-1]
		system = buildSystem(profile, chunks, ungrounded)
	}

	return &Prompt{
		System:     system,
		Messages:   messages,
		Chunks:     chunks,
		Ungrounded: ungrounded,
	}, nil
}

// buildSystem renders the system message for a customer's assistant.
func buildSystem(profile *customer.Profile, chunks []knowledge.Chunk, ungrounded bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a voice assistant for %s.\n\n", profile.BotName, profile.CompanyName)
	if profile.Personality != "" {
		b.WriteString(profile.Personality)
		b.WriteString("\n\n")
	}

	b.WriteString("IMPORTANT GUIDELINES:\n")
	if ungrounded {
		b.WriteString("- The company's knowledge base is temporarily unavailable. Answer only from general conversation, and say you cannot look up company details right now.\n")
	} else {
		b.WriteString("- You have access to the company's knowledge base. Use it to answer questions accurately.\n")
	}
	b.WriteString("- If you don't know something, say so honestly - never make things up.\n")
	b.WriteString("- Keep responses conversational and brief (1-2 sentences when possible) since this is a voice conversation.\n")
	b.WriteString("- Speak naturally, as if talking to a friend. Avoid overly formal language.\n")
	fmt.Fprintf(&b, "- If asked about something outside your knowledge base, politely explain you can only help with %s-related topics.\n", profile.CompanyName)

	if context := knowledge.FormatContext(chunks); context != "" {
		b.WriteString("\nRELEVANT KNOWLEDGE:\n")
		b.WriteString(context)
		b.WriteString("\n")
	}

	b.WriteString("\nRemember: You are speaking, not writing. Keep it natural and concise.")
	return b.String()
}

// size is the character cost of a prompt: system plus all messages.
func size(system string, messages []inference.Message) int {
	total := len(system)
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}
