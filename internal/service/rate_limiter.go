package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"contacts-api/internal/metrics"
)

// RateLimiter limita la frecuencia de requests por clave (IP o usuario).
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// redisWindowScript cuenta el golpe en la ventana actual y devuelve {contador, ms restantes}.
// La expiracion se fija solo con el primer golpe para no alargar la ventana.
const redisWindowScript = `
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`

const redisLimiterTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisRateLimiter implementa una ventana fija compartida entre instancias.
type redisRateLimiter struct {
	client redisEvaler
	name   string
	window time.Duration
	max    int
}

// NewRedisRateLimiter crea un limiter de ventana fija; name separa los contadores por ruta.
func NewRedisRateLimiter(client *redis.Client, name string, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{client: client, name: name, window: window, max: max}
}

func (l *redisRateLimiter) key(clientKey string) string {
	return "contacts:rl:" + l.name + ":" + clientKey
}

// Allow falla abierto si redis no responde.
func (l *redisRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	clientKey := strings.ToLower(strings.TrimSpace(key))
	if clientKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	res, err := l.client.Eval(ctx, redisWindowScript, []string{l.key(clientKey)}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) == 0 {
		metrics.RecordRateLimitDecision(l.name, "error")
		return true
	}
	if res[0] > int64(l.max) {
		metrics.RecordRateLimitDecision(l.name, "denied")
		return false
	}
	metrics.RecordRateLimitDecision(l.name, "allowed")
	return true
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryRateLimiter crea un rate limiter en memoria (ventana deslizante, por proceso).
func NewMemoryRateLimiter(window time.Duration, max int) RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep elimina las claves sin golpes dentro de la ventana; el mapa queda
// acotado por las claves activas en la ultima ventana.
func (l *memoryRateLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}
