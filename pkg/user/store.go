package user

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore implements Store backed by a single JSON file, the same
// shape as the customer profile store: accounts held in memory,
// flushed on every write.
type FileStore struct {
	path string

	mu    sync.RWMutex
	users map[string]*User
}

// NewFileStore opens a file store, loading existing accounts if the
// file is present. An empty path keeps the store memory-only.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		users: make(map[string]*User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Register implements Store.
func (s *FileStore) Register(email, name, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrBadCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}

	u := &User{
		// Short IDs keep URLs and logs readable.
		ID:           uuid.NewString()[:8],
		Email:        email,
		Name:         name,
		PasswordHash: HashPassword(password),
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	if err := s.flush(); err != nil {
		return nil, err
	}

	copied := *u
	return &copied, nil
}

// Authenticate implements Store.
func (s *FileStore) Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			if u.PasswordHash != HashPassword(password) {
				return nil, ErrBadCredentials
			}
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrBadCredentials
}

// Get implements Store.
func (s *FileStore) Get(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *u
	return &copied, nil
}

// load reads the JSON file into memory. A missing file is an empty store.
func (s *FileStore) load() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("user: read store: %w", err)
	}

	var users map[string]*User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("user: parse store: %w", err)
	}
	s.users = users
	return nil
}

// flush writes the full account map to disk. Caller holds the lock.
func (s *FileStore) flush() error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("user: create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("user: encode store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("user: write store: %w", err)
	}
	return nil
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
