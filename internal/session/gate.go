package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/portal-auth/authpage/internal/screen"
)

const inFlightPrefix = "authscreen:inflight:v1:"

// releaseScript deletes the lock only while it still carries our token, so a
// holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Gates hands out per-session in-flight gates.
type Gates interface {
	For(sessionID string) screen.Gate
}

// RedisGates locks sessions with SET NX. The lock expires after ttl in case
// its holder dies mid-attempt.
type RedisGates struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisGates builds Redis-backed session gates.
func NewRedisGates(cache *redis.Client, ttl time.Duration) *RedisGates {
	return &RedisGates{cache: cache, ttl: ttl}
}

// For returns the gate of one browser session.
func (g *RedisGates) For(sessionID string) screen.Gate {
	return redisGate{gates: g, key: inFlightPrefix + sessionID}
}

type redisGate struct {
	gates *RedisGates
	key   string
}

func (g redisGate) Enter(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.gates.cache.SetNX(ctx, g.key, token, g.gates.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire attempt lock: %w", err)
	}
	if !ok {
		return nil, screen.ErrInFlight
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, g.gates.cache, []string{g.key}, token) // best effort, the lock expires anyway
	}, nil
}

// MemoryGates locks sessions within this process.
type MemoryGates struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGates builds in-process session gates.
func NewMemoryGates() *MemoryGates {
	return &MemoryGates{held: make(map[string]struct{})}
}

// For returns the gate of one browser session.
func (g *MemoryGates) For(sessionID string) screen.Gate {
	return memoryGate{gates: g, id: sessionID}
}

type memoryGate struct {
	gates *MemoryGates
	id    string
}

func (g memoryGate) Enter(context.Context) (func(), error) {
	g.gates.mu.Lock()
	defer g.gates.mu.Unlock()
	if _, ok := g.gates.held[g.id]; ok {
		return nil, screen.ErrInFlight
	}
	g.gates.held[g.id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.gates.mu.Lock()
			delete(g.gates.held, g.id)
			g.gates.mu.Unlock()
		})
	}, nil
}
