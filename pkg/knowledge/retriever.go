package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parleyvoice/go-parley/pkg/inference"
)

// Retriever embeds a query and searches a customer's knowledge base.
type Retriever struct {
	embedder inference.Provider
	store    Store
	topK     int
	timeout  time.Duration
	logger   *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets how many chunks a query returns.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithTimeout bounds the total embed-plus-search time per query.
func WithTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger.With("component", "knowledge.retriever")
	}
}

// NewRetriever creates a retriever over the given embedder and store.
func NewRetriever(embedder inference.Provider, store Store, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		topK:     3,
		timeout:  2 * time.Second,
		logger:   slog.Default().With("component", "knowledge.retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the chunks most relevant to the query within the
// customer's knowledge base. The whole call is bounded by the
// retriever's timeout so a slow store cannot stall a conversation turn.
func (r *Retriever) Retrieve(ctx context.Context, customerID, query string) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()

	embedResp, err := r.embedder.Embed(ctx, &inference.EmbedRequest{
		Input: []string{query},
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, fmt.Errorf("knowledge: embed query: empty response")
	}

	chunks, err := r.store.Search(ctx, customerID, embedResp.Embeddings[0], r.topK)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved context",
		"customer_id", customerID,
		"chunks", len(chunks),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return chunks, nil
}

// FormatContext renders chunks for prompt injection, each attributed
// to its source document.
func FormatContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		source := chunk.Source
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[%s]: %s", source, chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}
