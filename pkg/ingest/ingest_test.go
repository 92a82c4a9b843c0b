package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/ingest"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
)

func TestSplitter(t *testing.T) {
	t.Run("short text stays whole", func(t *testing.T) {
		s := ingest.NewSplitter(500, 50)
		chunks := s.Split("A single short paragraph.")
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(chunks))
		}
		if chunks[0] != "A single short paragraph." {
			t.Errorf("unexpected chunk: %q", chunks[0])
		}
	})

	t.Run("empty input yields nothing", func(t *testing.T) {
		s := ingest.NewSplitter(500, 50)
		if chunks := s.Split("   \n\n  "); len(chunks) != 0 {
			t.Errorf("expected no chunks, got %d", len(chunks))
		}
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		s := ingest.NewSplitter(60, 0)
		text := "First paragraph about refunds.\n\nSecond paragraph about shipping policy details."
		chunks := s.Split(text)
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
		}
		if !strings.Contains(chunks[0], "refunds") || !strings.Contains(chunks[1], "shipping") {
			t.Errorf("paragraphs not split cleanly: %q", chunks)
		}
	})

	t.Run("respects chunk size", func(t *testing.T) {
		s := ingest.NewSplitter(100, 20)
		text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
		chunks := s.Split(text)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, chunk := range chunks {
			if len(chunk) > 100 {
				t.Errorf("chunk %d exceeds size: %d bytes", i, len(chunk))
			}
		}
	})

	t.Run("overlapping chunks share context", func(t *testing.T) {
		s := ingest.NewSplitter(100, 40)
		text := strings.Repeat("alpha beta gamma delta epsilon. ", 20)
		chunks := s.Split(text)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		// Each chunk after the first starts with text from its predecessor.
		head := strings.Fields(chunks[1])[0]
		if !strings.Contains(chunks[0], head) {
			t.Errorf("no overlap between %q and %q", chunks[0], chunks[1])
		}
	})

	t.Run("hard cuts unbroken text", func(t *testing.T) {
		s := ingest.NewSplitter(50, 10)
		chunks := s.Split(strings.Repeat("x", 200))
		if len(chunks) < 3 {
			t.Fatalf("expected several chunks, got %d", len(chunks))
		}
		for i, chunk := range chunks {
			if len(chunk) > 50 {
				t.Errorf("chunk %d exceeds size: %d", i, len(chunk))
			}
		}
	})
}

func TestIngestText(t *testing.T) {
	ctx := context.Background()

	t.Run("splits embeds and stores", func(t *testing.T) {
		store := knowledge.NewMemory()
		ingestor := ingest.NewIngestor(inference.NewMock(), store)

		text := "Our refund policy allows returns within thirty days.\n\n" +
			"Support is available by phone from nine to five on weekdays."
		result, err := ingestor.IngestText(ctx, "acme", "faq.md", text)
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
		if result.Chunks == 0 {
			t.Fatal("expected chunks")
		}
		if result.DocumentID == "" {
			t.Fatal("expected document ID")
		}
		if got := store.Count("acme"); got != result.Chunks {
			t.Errorf("store holds %d chunks, result says %d", got, result.Chunks)
		}
	})

	t.Run("empty text rejected", func(t *testing.T) {
		ingestor := ingest.NewIngestor(inference.NewMock(), knowledge.NewMemory())
		if _, err := ingestor.IngestText(ctx, "acme", "empty.md", "  "); !errors.Is(err, ingest.ErrNoContent) {
			t.Errorf("expected ErrNoContent, got %v", err)
		}
	})

	t.Run("embed failure surfaces", func(t *testing.T) {
		wantErr := errors.New("embeddings down")
		mock := inference.NewMock()
		mock.EmbedFunc = func(ctx context.Context, req *inference.EmbedRequest) (*inference.EmbedResponse, error) {
			return nil, wantErr
		}

		ingestor := ingest.NewIngestor(mock, knowledge.NewMemory())
		if _, err := ingestor.IngestText(ctx, "acme", "faq.md", "some text"); !errors.Is(err, wantErr) {
			t.Errorf("expected embed error, got %v", err)
		}
	})

	t.Run("ingested chunks are retrievable", func(t *testing.T) {
		store := knowledge.NewMemory()
		ingestor := ingest.NewIngestor(inference.NewMock(), store)

		_, err := ingestor.IngestText(ctx, "acme", "faq.md",
			"Refunds are processed within five business days of approval.")
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}

		retriever := knowledge.NewRetriever(inference.NewMock(), store)
		chunks, err := retriever.Retrieve(ctx, "acme", "how long do refunds take")
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if len(chunks) == 0 {
			t.Fatal("expected retrievable chunks")
		}
	})
}

func TestTracker(t *testing.T) {
	tracker := ingest.NewTracker()

	job := tracker.Begin("acme", "faq.md")
	if job.State != ingest.JobPending {
		t.Errorf("expected pending, got %s", job.State)
	}

	t.Run("complete updates state", func(t *testing.T) {
		tracker.Complete(job.ID, &ingest.Result{DocumentID: "doc-1", Chunks: 4})
		got, ok := tracker.Get(job.ID)
		if !ok {
			t.Fatal("job not found")
		}
		if got.State != ingest.JobCompleted || got.Chunks != 4 || got.DocumentID != "doc-1" {
			t.Errorf("unexpected job: %+v", got)
		}
	})

	t.Run("fail records error", func(t *testing.T) {
		failed := tracker.Begin("acme", "bad.md")
		tracker.Fail(failed.ID, errors.New("boom"))
		got, _ := tracker.Get(failed.ID)
		if got.State != ingest.JobFailed || got.Error != "boom" {
			t.Errorf("unexpected job: %+v", got)
		}
	})

	t.Run("lists jobs per customer", func(t *testing.T) {
		if jobs := tracker.ForCustomer("acme"); len(jobs) != 2 {
			t.Errorf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs := tracker.ForCustomer("globex"); len(jobs) != 0 {
			t.Errorf("expected 0 jobs, got %d", len(jobs))
		}
	})
}
