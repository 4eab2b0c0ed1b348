package profile

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	now      func() time.Time
}

// NewMemoryStore constructs an in-memory profile store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{profiles: make(map[string]Profile), now: time.Now}
}

func (s *memoryStore) Upsert(_ context.Context, userID string, fields Fields) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	p, ok := s.profiles[userID]
	if !ok {
		p = Profile{UserID: userID, CreatedAt: now}
	}
	p = p.merge(fields)
	p.UpdatedAt = now
	s.profiles[userID] = p
	return nil
}

func (s *memoryStore) Get(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}
