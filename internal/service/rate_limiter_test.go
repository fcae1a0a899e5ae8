package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	hits       int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal([]interface{}{m.hits, int64(1000)})
	return cmd
}

func TestRedisRateLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisRateLimiter
		if !l.Allow(ctx, "127.0.0.1") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := &redisRateLimiter{client: &mockRedisEvaler{hits: 1}, name: "signup", window: time.Minute, max: 2}
		if l.Allow(ctx, "   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{hits: 2}
		l := &redisRateLimiter{client: mock, name: "avatar", window: 20 * time.Second, max: 2}
		if !l.Allow(ctx, " User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "contacts:rl:avatar:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != int64(20000) {
			t.Fatalf("expected window in milliseconds, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisWindowScript {
			t.Fatalf("expected window script")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := &redisRateLimiter{client: &mockRedisEvaler{hits: 3}, name: "signup", window: time.Minute, max: 2}
		if l.Allow(ctx, "127.0.0.1") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := &redisRateLimiter{client: &mockRedisEvaler{err: errors.New("boom")}, name: "signup", window: time.Minute, max: 2}
		if !l.Allow(ctx, "127.0.0.1") {
			t.Fatalf("expected fail-open on redis error")
		}
	})
}

func TestRedisRateLimiter_Miniredis(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	l := NewRedisRateLimiter(client, "signup", time.Minute, 2)

	if !l.Allow(ctx, "10.0.0.1") || !l.Allow(ctx, "10.0.0.1") {
		t.Fatalf("expected first two requests allowed")
	}
	if l.Allow(ctx, "10.0.0.1") {
		t.Fatalf("expected third request denied")
	}
	if !l.Allow(ctx, "10.0.0.2") {
		t.Fatalf("expected other key allowed")
	}

	if ttl := mr.TTL("contacts:rl:signup:10.0.0.1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window expiry set once, got %v", ttl)
	}

	mr.FastForward(61 * time.Second)
	if !l.Allow(ctx, "10.0.0.1") {
		t.Fatalf("expected window reset")
	}
}

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRateLimiter(50*time.Millisecond, 2)

	if !l.Allow(ctx, "k") || !l.Allow(ctx, "k") {
		t.Fatalf("expected first two allowed")
	}
	if l.Allow(ctx, "k") {
		t.Fatalf("expected third denied")
	}
	time.Sleep(70 * time.Millisecond)
	if !l.Allow(ctx, "k") {
		t.Fatalf("expected allow after window")
	}
}

func TestMemoryRateLimiter_SweepsIdleKeys(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryRateLimiter(time.Minute, 2).(*memoryRateLimiter)
	l.now = func() time.Time { return clock }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if !l.Allow(ctx, ip) {
			t.Fatalf("expected %s allowed", ip)
		}
	}
	if len(l.hits) != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", len(l.hits))
	}

	clock = clock.Add(30 * time.Second)
	l.Allow(ctx, "10.0.0.1")
	if len(l.hits) != 3 {
		t.Fatalf("expected keys kept inside the window, got %d", len(l.hits))
	}

	clock = clock.Add(61 * time.Second)
	if !l.Allow(ctx, "10.0.0.4") {
		t.Fatalf("expected new key allowed")
	}
	if len(l.hits) != 1 {
		t.Fatalf("expected idle keys swept, got %d: %v", len(l.hits), l.hits)
	}
	if _, ok := l.hits["10.0.0.4"]; !ok {
		t.Fatalf("expected active key kept")
	}
}
