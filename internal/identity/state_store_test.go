package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStateStoreTakeIsOneShot(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	store := NewRedisStateStore(cache)
	ctx := context.Background()

	if err := store.Put(ctx, "abc", PendingSignIn{Provider: ProviderGoogle, Nonce: "n-1", Session: "sid-1"}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL(oauthStatePrefix + "abc"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}

	pending, err := store.Take(ctx, "abc")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if pending.Provider != ProviderGoogle || pending.Nonce != "n-1" || pending.Session != "sid-1" {
		t.Fatalf("unexpected pending sign-in %+v", pending)
	}

	if _, err := store.Take(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected state to be consumed, got %v", err)
	}
}

func TestRedisStateStoreExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	store := NewRedisStateStore(cache)
	ctx := context.Background()
	if err := store.Put(ctx, "abc", PendingSignIn{Provider: ProviderGoogle}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Take(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expired state, got %v", err)
	}
}

func TestMemoryStateStoreExpires(t *testing.T) {
	now := time.Now()
	store := &memoryStateStore{entries: make(map[string]memoryStateEntry), now: func() time.Time { return now }}
	ctx := context.Background()

	if err := store.Put(ctx, "abc", PendingSignIn{Provider: ProviderGoogle}, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Take(ctx, "abc"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expired state, got %v", err)
	}
}
