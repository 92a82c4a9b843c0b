package prompt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
	"github.com/parleyvoice/go-parley/pkg/prompt"
)

type stubRetriever struct {
	chunks []knowledge.Chunk
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, customerID, query string) ([]knowledge.Chunk, error) {
	return s.chunks, s.err
}

func testProfile() *customer.Profile {
	return &customer.Profile{
		ID:          "acme",
		CompanyName: "Acme Corp",
		BotName:     "Ava",
		Personality: "Be warm and direct.",
	}
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()

	t.Run("grounded prompt carries knowledge", func(t *testing.T) {
		retriever := &stubRetriever{chunks: []knowledge.Chunk{
			{Source: "faq.md", Text: "Refunds take five business days."},
		}}
		assembler := prompt.NewAssembler(retriever)

		p, err := assembler.Assemble(ctx, testProfile(), nil, "how long do refunds take?")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if p.Ungrounded {
			t.Error("expected grounded prompt")
		}
		if !strings.Contains(p.System, "Ava") || !strings.Contains(p.System, "Acme Corp") {
			t.Error("system prompt missing persona")
		}
		if !strings.Contains(p.System, "Refunds take five business days.") {
			t.Error("system prompt missing retrieved knowledge")
		}
		if !strings.Contains(p.System, "Be warm and direct.") {
			t.Error("system prompt missing personality")
		}
	})

	t.Run("retrieval failure degrades to ungrounded", func(t *testing.T) {
		retriever := &stubRetriever{err: errors.New("store down")}
		assembler := prompt.NewAssembler(retriever)

		p, err := assembler.Assemble(ctx, testProfile(), nil, "anything")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if !p.Ungrounded {
			t.Error("expected ungrounded prompt")
		}
		if len(p.Chunks) != 0 {
			t.Error("ungrounded prompt must carry no chunks")
		}
		if !strings.Contains(p.System, "temporarily unavailable") {
			t.Error("system prompt should disclose unavailability")
		}
	})

	t.Run("history clamps to window", func(t *testing.T) {
		assembler := prompt.NewAssembler(&stubRetriever{}, prompt.WithHistoryWindow(4))

		var history []inference.Message
		for i := 0; i < 10; i++ {
			history = append(history, inference.NewUserMessage("question"))
			history = append(history, inference.NewAssistantMessage("answer"))
		}

		p, err := assembler.Assemble(ctx, testProfile(), history, "latest")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		// 4 history messages plus the current utterance.
		if len(p.Messages) != 5 {
			t.Errorf("expected 5 messages, got %d", len(p.Messages))
		}
		if last := p.Messages[len(p.Messages)-1]; last.Content != "latest" || last.Role != inference.RoleUser {
			t.Errorf("unexpected final message: %+v", last)
		}
	})

	t.Run("budget drops oldest history before chunks", func(t *testing.T) {
		retriever := &stubRetriever{chunks: []knowledge.Chunk{
			{Source: "faq.md", Text: "kept chunk"},
		}}
		assembler := prompt.NewAssembler(retriever, prompt.WithBudget(1200))

		long := strings.Repeat("a", 400)
		history := []inference.Message{
			inference.NewUserMessage(long),
			inference.NewAssistantMessage(long),
			inference.NewUserMessage("recent question"),
			inference.NewAssistantMessage("recent answer"),
		}

		p, err := assembler.Assemble(ctx, testProfile(), history, "now")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if len(p.Messages) >= 5 {
			t.Error("expected history to be trimmed")
		}
		if p.Messages[0].Content == long && p.Messages[0].Role == inference.RoleUser {
			t.Error("oldest history message survived trimming")
		}
		if last := p.Messages[len(p.Messages)-1]; last.Content != "now" {
			t.Errorf("current utterance lost: %+v", last)
		}
		if !strings.Contains(p.System, "kept chunk") {
			t.Error("chunk dropped before history")
		}
	})

	t.Run("utterance survives extreme budget", func(t *testing.T) {
		assembler := prompt.NewAssembler(&stubRetriever{}, prompt.WithBudget(1))

		p, err := assembler.Assemble(ctx, testProfile(), []inference.Message{
			inference.NewUserMessage("old"),
		}, "current")
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if len(p.Messages) != 1 || p.Messages[0].Content != "current" {
			t.Errorf("expected only the current utterance, got %+v", p.Messages)
		}
		if !strings.Contains(p.System, "Be warm and direct.") {
			t.Error("personality must never be dropped")
		}
	})

	t.Run("nil profile rejected", func(t *testing.T) {
		assembler := prompt.NewAssembler(&stubRetriever{})
		if _, err := assembler.Assemble(ctx, nil, nil, "x"); err == nil {
			t.Error("expected error for nil profile")
		}
	})
}

func TestPromptAll(t *testing.T) {
	p := &prompt.Prompt{
		System: "system text",
		Messages: []inference.Message{
			inference.NewUserMessage("hello"),
		},
	}

	all := p.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(all))
	}
	if all[0].Role != inference.RoleSystem || all[0].Content != "system text" {
		t.Errorf("unexpected system message: %+v", all[0])
	}
	if all[1].Role != inference.RoleUser {
		t.Errorf("unexpected user message: %+v", all[1])
	}
}
