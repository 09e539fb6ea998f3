package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamRateLimiter acota cuántos streams puede iniciar una misma clave
// (usuario o IP) dentro de una ventana.
type StreamRateLimiter interface {
	Allow(key string) bool
}

const redisStreamAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisStreamRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
}

// NewRedisStreamRateLimiter crea un limitador respaldado por Redis.
func NewRedisStreamRateLimiter(client *redis.Client, window time.Duration, max int) StreamRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisStreamRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "stream:rl:",
	}
}

func (l *redisStreamRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	count, err := l.client.Eval(ctx, redisStreamAllowScript, []string{l.prefix + normalized}, seconds).Int()
	if err != nil {
		// Ante una falla de Redis preferimos dejar pasar antes que
		// bloquear todos los streams.
		return true
	}
	return count <= l.max
}

type memoryStreamRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
}

// NewMemoryStreamRateLimiter crea un limitador en memoria, usado cuando
// no hay Redis configurado.
func NewMemoryStreamRateLimiter(window time.Duration, max int) StreamRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &memoryStreamRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
	}
}

func (l *memoryStreamRateLimiter) Allow(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.hits[normalized][:0]
	for _, t := range l.hits[normalized] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.hits[normalized] = kept
		return false
	}
	l.hits[normalized] = append(kept, now)
	return true
}
