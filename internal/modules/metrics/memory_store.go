package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	versions map[string]RegistryVersion
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string]RegistryVersion)}
}

// CreateDraft stores a new draft version.
func (s *MemoryStore) CreateDraft(_ context.Context, version RegistryVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.versions[version.ID]; exists {
		return fmt.Errorf("registry version %s already exists", version.ID)
	}
	if version.Status != StatusDraft {
		return fmt.Errorf("registry version %s is not a draft", version.ID)
	}
	s.versions[version.ID] = copyVersion(version)
	return nil
}

// GetVersion returns a copy of the stored version, or nil.
func (s *MemoryStore) GetVersion(_ context.Context, id string) (*RegistryVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, nil
	}
	out := copyVersion(v)
	return &out, nil
}

// LatestPublished returns the version with the latest publish time.
func (s *MemoryStore) LatestPublished(_ context.Context) (*RegistryVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *RegistryVersion
	for _, v := range s.versions {
		if v.Status != StatusPublished || v.PublishedAt == nil {
			continue
		}
		if latest == nil ||
			v.PublishedAt.After(*latest.PublishedAt) ||
			(v.PublishedAt.Equal(*latest.PublishedAt) && v.ID > latest.ID) {
			c := copyVersion(v)
			latest = &c
		}
	}
	return latest, nil
}

// CompareAndSwapStatus flips the status only if it still equals from.
func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, id string, from, to VersionStatus, contentHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.versions[id]
	if !ok || v.Status != from {
		return false, nil
	}
	v.Status = to
	v.ContentHash = contentHash
	publishedAt := at
	v.PublishedAt = &publishedAt
	s.versions[id] = v
	return true, nil
}

func copyVersion(v RegistryVersion) RegistryVersion {
	out := v
	out.Entries = append([]RegistryEntry{}, v.Entries...)
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		out.PublishedAt = &t
	}
	return out
}
