// Package profile supplies player identity for a validated account id.
package profile

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates no profile exists for the account.
var ErrNotFound = errors.New("profile not found")

// Profile is the subset of account data the room needs.
type Profile struct {
	UserID   string
	Username string
}

// Store looks up profiles. Implementations must be safe for concurrent use.
type Store interface {
	FindByUserID(ctx context.Context, userID string) (Profile, error)
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

// Put inserts or replaces a profile.
func (s *MemoryStore) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

func (s *MemoryStore) FindByUserID(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}
