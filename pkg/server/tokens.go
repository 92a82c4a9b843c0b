package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// tokenStore holds single-use session tokens in memory. Tokens bind a
// WebSocket connection to the customer it was provisioned for without
// putting customer IDs in URLs.
type tokenStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	customerID string
	expiresAt  time.Time
}

func newTokenStore(ttl time.Duration) *tokenStore {
	return &tokenStore{
		ttl:    ttl,
		tokens: make(map[string]tokenEntry),
	}
}

// Issue creates a token for the customer.
func (t *tokenStore) Issue(customerID string) (string, time.Time) {
	token := uuid.NewString()
	expires := time.Now().Add(t.ttl)

	t.mu.Lock()
	t.tokens[token] = tokenEntry{customerID: customerID, expiresAt: expires}
	t.sweepLocked()
	t.mu.Unlock()

	return token, expires
}

// Redeem consumes a token, returning the customer it was issued for.
// A token redeems at most once.
func (t *tokenStore) Redeem(token string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tokens[token]
	if !ok {
		return "", false
	}
	delete(t.tokens, token)

	if time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.customerID, true
}

// sweepLocked drops expired tokens. Caller holds the lock.
func (t *tokenStore) sweepLocked() {
	now := time.Now()
	for token, entry := range t.tokens {
		if now.After(entry.expiresAt) {
			delete(t.tokens, token)
		}
	}
}
