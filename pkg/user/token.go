package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// DefaultTokenTTL is how long an access token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Signer issues and verifies HMAC-signed access tokens of the form
// "userID|expiryRFC3339|signature". The pipe separator keeps the colon
// free for the timestamp.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a token signer. A zero ttl uses DefaultTokenTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token for the given user.
func (s *Signer) Sign(userID string) string {
	expiry := time.Now().UTC().Add(s.ttl).Format(time.RFC3339)
	payload := userID + "|" + expiry
	return payload + "|" + s.signature(payload)
}

// Verify checks a token's signature and expiry, returning the user ID.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	userID, expiryStr, sig := parts[0], parts[1], parts[2]

	payload := userID + "|" + expiryStr
	if !hmac.Equal([]byte(sig), []byte(s.signature(payload))) {
		return "", ErrInvalidToken
	}

	expiry, err := time.Parse(time.RFC3339, expiryStr)
	if err != nil {
		return "", fmt.Errorf("%w: bad expiry", ErrInvalidToken)
	}
	if time.Now().UTC().After(expiry) {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *Signer) signature(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
