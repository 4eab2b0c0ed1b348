package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const oauthStatePrefix = "oauth:state:v1:"

// ErrStateNotFound is returned when a sign-in state is unknown, expired or
// already used.
var ErrStateNotFound = errors.New("sign-in state not found")

// PendingSignIn is what a started federated sign-in remembers until the
// provider calls back.
type PendingSignIn struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	// Session is the browser session that started the sign-in.
	Session string `json:"session"`
}

// StateStore keeps pending federated sign-ins keyed by their state parameter.
// Take must remove the entry so every state is used at most once.
type StateStore interface {
	Put(ctx context.Context, state string, pending PendingSignIn, ttl time.Duration) error
	Take(ctx context.Context, state string) (PendingSignIn, error)
}

// RedisStateStore implements StateStore on Redis.
type RedisStateStore struct {
	cache *redis.Client
}

// NewRedisStateStore builds a Redis-backed state store.
func NewRedisStateStore(cache *redis.Client) *RedisStateStore {
	return &RedisStateStore{cache: cache}
}

// Put stores the pending sign-in with an expiry.
func (s *RedisStateStore) Put(ctx context.Context, state string, pending PendingSignIn, ttl time.Duration) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, oauthStatePrefix+state, payload, ttl).Err()
}

// Take atomically reads and deletes the pending sign-in.
func (s *RedisStateStore) Take(ctx context.Context, state string) (PendingSignIn, error) {
	if state == "" {
		return PendingSignIn{}, ErrStateNotFound
	}
	raw, err := s.cache.GetDel(ctx, oauthStatePrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingSignIn{}, ErrStateNotFound
	}
	if err != nil {
		return PendingSignIn{}, fmt.Errorf("take state: %w", err)
	}
	var pending PendingSignIn
	if err := json.Unmarshal(raw, &pending); err != nil {
		return PendingSignIn{}, fmt.Errorf("decode state: %w", err)
	}
	return pending, nil
}

type memoryStateEntry struct {
	pending PendingSignIn
	expires time.Time
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryStateEntry
	now     func() time.Time
}

// NewMemoryStateStore builds an in-process state store.
func NewMemoryStateStore() StateStore {
	return &memoryStateStore{entries: make(map[string]memoryStateEntry), now: time.Now}
}

func (s *memoryStateStore) Put(_ context.Context, state string, pending PendingSignIn, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = memoryStateEntry{pending: pending, expires: now.Add(ttl)}
	return nil
}

func (s *memoryStateStore) Take(_ context.Context, state string) (PendingSignIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return PendingSignIn{}, ErrStateNotFound
	}
	delete(s.entries, state)
	if s.now().After(e.expires) {
		return PendingSignIn{}, ErrStateNotFound
	}
	return e.pending, nil
}
