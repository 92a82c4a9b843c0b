// Package user manages dashboard accounts: registration, credential
// checks, and signed access tokens for the management API.
package user

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a user does not exist.
	ErrNotFound = errors.New("user: not found")

	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("user: email already registered")

	// ErrBadCredentials is returned when email or password do not match.
	ErrBadCredentials = errors.New("user: invalid email or password")

	// ErrInvalidToken is returned for a malformed, forged, or expired token.
	ErrInvalidToken = errors.New("user: invalid or expired token")
)

// User is one dashboard account.
type User struct {
	// ID is the user's unique identifier.
	ID string `json:"id"`

	// Email is the login identity, stored lowercased.
	Email string `json:"email"`

	// Name is the display name.
	Name string `json:"name"`

	// PasswordHash is the hex SHA-256 of the password.
	PasswordHash string `json:"password_hash"`

	// CreatedAt is when the account was created.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists user accounts.
type Store interface {
	// Register adds an account, assigning its ID and timestamp.
	// The email must not already be registered.
	Register(email, name, password string) (*User, error)

	// Authenticate checks credentials and returns the matching user.
	Authenticate(email, password string) (*User, error)

	// Get returns a user by ID.
	Get(id string) (*User, error)
}

// HashPassword returns the stored form of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
