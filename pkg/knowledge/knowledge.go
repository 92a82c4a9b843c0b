// Package knowledge provides per-customer vector search over ingested
// documents. Every query is scoped to a single customer; a chunk ingested
// for one customer can never surface in another customer's results.
package knowledge

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("knowledge: store unavailable")

	// ErrEmptyVector is returned when a chunk has no embedding.
	ErrEmptyVector = errors.New("knowledge: chunk has no vector")
)

// Chunk is a unit of retrievable knowledge: a slice of an ingested
// document together with its embedding and owning customer.
type Chunk struct {
	// ID is the chunk's unique identifier (UUID).
	ID string

	// CustomerID identifies the owning customer. Search never crosses it.
	CustomerID string

	// DocumentID groups chunks from the same ingested document.
	DocumentID string

	// Source is a human-readable origin label (filename, upload title).
	Source string

	// Text is the chunk content.
	Text string

	// Vector is the embedding of Text.
	Vector []float32

	// Score is the similarity score, populated on search results only.
	Score float32
}

// Store is a vector store scoped by customer.
type Store interface {
	// Search returns up to limit chunks owned by customerID, most
	// similar first. An unknown customer yields an empty slice, not
	// an error.
	Search(ctx context.Context, customerID string, vector []float32, limit int) ([]Chunk, error)

	// Upsert writes chunks, replacing any with the same ID.
	Upsert(ctx context.Context, chunks []Chunk) error

	// DeleteDocument removes all chunks of one document.
	DeleteDocument(ctx context.Context, customerID, documentID string) error

	// DeleteCustomer removes every chunk owned by a customer.
	DeleteCustomer(ctx context.Context, customerID string) error

	// Close releases any resources held by the store.
	Close() error
}
