package customer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore implements Store backed by a single JSON file. Profiles
// are held in memory and flushed on every write, so reads never touch
// the disk.
type FileStore struct {
	path string

	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewFileStore opens a file store, loading existing profiles if the
// file is present. An empty path keeps the store memory-only.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		profiles: make(map[string]*Profile),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Create implements Store.
func (s *FileStore) Create(profile *Profile) error {
	if profile.CompanyName == "" {
		return ErrEmptyCompanyName
	}

	profile.applyDefaults()
	if profile.ID == "" {
		// Short IDs keep URLs and logs readable.
		profile.ID = uuid.NewString()[:8]
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *profile
	s.profiles[profile.ID] = &copied
	return s.flush()
}

// Get implements Store.
func (s *FileStore) Get(id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *profile
	return &copied, nil
}

// List implements Store. Profiles come back ordered by creation time.
func (s *FileStore) List() ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]*Profile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		copied := *profile
		profiles = append(profiles, &copied)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

// Update implements Store. CreatedAt is preserved from the stored profile.
func (s *FileStore) Update(profile *Profile) error {
	if profile.CompanyName == "" {
		return ErrEmptyCompanyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[profile.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, profile.ID)
	}

	profile.applyDefaults()
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now().UTC()

	copied := *profile
	s.profiles[profile.ID] = &copied
	return s.flush()
}

// Delete implements Store.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.profiles, id)
	return s.flush()
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
		return fmt.Errorf("customer: read store: %w", err)
	}

	var profiles map[string]*Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("customer: parse store: %w", err)
	}
	s.profiles = profiles
	return nil
}

// flush writes the full profile map to disk. Caller holds the lock.
func (s *FileStore) flush() error {
	if s.path == "" {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("customer: create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("customer: encode store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("customer: write store: %w", err)
	}
	return nil
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
