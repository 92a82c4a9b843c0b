package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory implements Store in process memory. It backs development mode
// and tests; ranking matches the Qdrant store (cosine similarity).
type Memory struct {
	mu     sync.RWMutex
	chunks map[string][]Chunk // customerID -> chunks in insertion order
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[string][]Chunk)}
}

// Search implements Store.
func (m *Memory) Search(ctx context.Context, customerID string, vector []float32, limit int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	owned := m.chunks[customerID]
	scored := make([]Chunk, len(owned))
	copy(scored, owned)
	m.mu.RUnlock()

	for i := range scored {
		scored[i].Score = cosine(vector, scored[i].Vector)
	}

	// Stable keeps insertion order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			return ErrEmptyVector
		}
		owned := m.chunks[chunk.CustomerID]
		replaced := false
		for i := range owned {
			if owned[i].ID == chunk.ID {
				owned[i] = chunk
				replaced = true
				break
			}
		}
		if !replaced {
			owned = append(owned, chunk)
		}
		m.chunks[chunk.CustomerID] = owned
	}
	return nil
}

// DeleteDocument implements Store.
func (m *Memory) DeleteDocument(ctx context.Context, customerID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.chunks[customerID]
	kept := owned[:0]
	for _, chunk := range owned {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
		}
	}
	m.chunks[customerID] = kept
	return nil
}

// DeleteCustomer implements Store.
func (m *Memory) DeleteCustomer(ctx context.Context, customerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, customerID)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

// Count returns the number of chunks owned by a customer.
func (m *Memory) Count(customerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[customerID])
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Compile-time check that Memory implements Store.
var _ Store = (*Memory)(nil)
