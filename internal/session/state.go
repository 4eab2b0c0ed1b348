package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portal-auth/authpage/internal/screen"
)

const statePrefix = "authscreen:state:v1:"

// StateStore keeps the sign-in form state of each browser session. Passwords
// are never stored.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (screen.State, error)
	Save(ctx context.Context, sessionID string, st screen.State) error
	Clear(ctx context.Context, sessionID string) error
}

// RedisStateStore stores form state as JSON with a sliding expiry.
type RedisStateStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisStateStore builds a Redis-backed form state store.
func NewRedisStateStore(cache *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{cache: cache, ttl: ttl}
}

// Load returns the stored state, or the initial state when none exists.
func (s *RedisStateStore) Load(ctx context.Context, sessionID string) (screen.State, error) {
	raw, err := s.cache.Get(ctx, statePrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return screen.State{}, nil
	}
	if err != nil {
		return screen.State{}, fmt.Errorf("load screen state: %w", err)
	}
	var st screen.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return screen.State{}, fmt.Errorf("decode screen state: %w", err)
	}
	return st, nil
}

// Save stores the state and refreshes its expiry.
func (s *RedisStateStore) Save(ctx context.Context, sessionID string, st screen.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, statePrefix+sessionID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save screen state: %w", err)
	}
	return nil
}

// Clear forgets the session's form state.
func (s *RedisStateStore) Clear(ctx context.Context, sessionID string) error {
	return s.cache.Del(ctx, statePrefix+sessionID).Err()
}

type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]screen.State
}

// NewMemoryStateStore builds an in-process form state store.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{states: make(map[string]screen.State)}
}

func (s *memoryStateStore) Load(_ context.Context, sessionID string) (screen.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[sessionID], nil
}

func (s *memoryStateStore) Save(_ context.Context, sessionID string, st screen.State) error {
	st.Password = ""
	st.Busy = false
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = st
	return nil
}

func (s *memoryStateStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}
