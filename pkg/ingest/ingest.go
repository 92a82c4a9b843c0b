// Package ingest turns raw customer documents into embedded knowledge
// chunks: split, embed, upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
)

// ErrNoContent is returned when the input text produces no chunks.
var ErrNoContent = errors.New("ingest: no content to ingest")

// embedBatchSize bounds how many chunks go into one embedding request.
const embedBatchSize = 64

// Result describes a completed ingestion.
type Result struct {
	// DocumentID identifies the ingested document's chunks in the store.
	DocumentID string

	// Chunks is the number of chunks created.
	Chunks int
}

// Ingestor splits, embeds, and stores customer documents.
type Ingestor struct {
	embedder inference.Provider
	store    knowledge.Store
	splitter *Splitter
	logger   *slog.Logger
}

// NewIngestor creates an ingestor with default chunking parameters.
func NewIngestor(embedder inference.Provider, store knowledge.Store) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		store:    store,
		splitter: NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		logger:   slog.Default().With("component", "ingest"),
	}
}

// WithSplitter overrides the chunking parameters.
func (in *Ingestor) WithSplitter(s *Splitter) *Ingestor {
	in.splitter = s
	return in
}

// WithLogger overrides the logger.
func (in *Ingestor) WithLogger(logger *slog.Logger) *Ingestor {
	in.logger = logger.With("component", "ingest")
	return in
}

// IngestText ingests a text document into a customer's knowledge base.
// Source is a human-readable label attributed to the resulting chunks.
func (in *Ingestor) IngestText(ctx context.Context, customerID, source, text string) (*Result, error) {
	if customerID == "" {
		return nil, fmt.Errorf("ingest: customer id is required")
	}

	start := time.Now()

	texts := in.splitter.Split(text)
	if len(texts) == 0 {
		return nil, ErrNoContent
	}

	documentID := uuid.NewString()
	chunks := make([]knowledge.Chunk, 0, len(texts))

	for offset := 0; offset < len(texts); offset += embedBatchSize {
		end := offset + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[offset:end]

		resp, err := in.embedder.Embed(ctx, &inference.EmbedRequest{Input: batch})
		if err != nil {
			return nil, fmt.Errorf("ingest: embed batch: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("ingest: embed batch: got %d vectors for %d texts",
				len(resp.Embeddings), len(batch))
		}

		for i, t := range batch {
			chunks = append(chunks, knowledge.Chunk{
				ID:         uuid.NewString(),
				CustomerID: customerID,
				DocumentID: documentID,
				Source:     source,
				Text:       t,
				Vector:     resp.Embeddings[i],
			})
		}
	}

	if err := in.store.Upsert(ctx, chunks); err != nil {
		return nil, fmt.Errorf("ingest: store chunks: %w", err)
	}

	in.logger.Info("ingested document",
		"customer_id", customerID,
		"document_id", documentID,
		"source", source,
		"chunks", len(chunks),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Result{DocumentID: documentID, Chunks: len(chunks)}, nil
}
