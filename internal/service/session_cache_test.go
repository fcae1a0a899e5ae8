package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"contacts-api/internal/domain"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testUser() domain.User {
	token := "refresh"
	avatar := "https://cdn.example.com/a.png"
	return domain.User{
		ID:           "u1",
		Email:        "user@example.com",
		Username:     "user",
		PasswordHash: "hash",
		Verified:     true,
		RefreshToken: &token,
		Avatar:       &avatar,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemorySessionCache_Basics(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache(50 * time.Millisecond)

	if _, ok, err := cache.Get(ctx, "user@example.com"); ok || err != nil {
		t.Fatalf("expected miss, got %v,%v", ok, err)
	}

	if err := cache.Set(ctx, testUser()); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := cache.Get(ctx, "user@example.com")
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v,%v", ok, err)
	}
	if got.ID != "u1" || got.Username != "user" || !got.Verified {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.PasswordHash != "" || got.RefreshToken != nil {
		t.Fatalf("snapshot must not carry secrets: %+v", got)
	}

	time.Sleep(70 * time.Millisecond)
	if _, ok, _ := cache.Get(ctx, "user@example.com"); ok {
		t.Fatalf("expected entry to expire")
	}

	_ = cache.Set(ctx, testUser())
	_ = cache.Delete(ctx, "user@example.com")
	if _, ok, _ := cache.Get(ctx, "user@example.com"); ok {
		t.Fatalf("expected entry to be deleted")
	}
}

func TestRedisSessionCache_RoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	cache := NewRedisSessionCache(client, 300*time.Second)

	user := testUser()
	if err := cache.Set(ctx, user); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("session:user:user@example.com"); ttl != 300*time.Second {
		t.Fatalf("expected ttl 300s, got %v", ttl)
	}

	raw, err := mr.Get("session:user:user@example.com")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if strings.Contains(raw, "hash") || strings.Contains(raw, "refresh") {
		t.Fatalf("cached payload leaks secrets: %s", raw)
	}

	got, ok, err := cache.Get(ctx, user.Email)
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v,%v", ok, err)
	}
	if got.ID != user.ID || got.Avatar == nil || *got.Avatar != *user.Avatar || !got.CreatedAt.Equal(user.CreatedAt) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	mr.FastForward(301 * time.Second)
	if _, ok, err := cache.Get(ctx, user.Email); ok || err != nil {
		t.Fatalf("expected expiry miss, got %v,%v", ok, err)
	}
}

func TestRedisSessionCache_Delete(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredisClient(t)
	cache := NewRedisSessionCache(client, time.Minute)

	_ = cache.Set(ctx, testUser())
	if err := cache.Delete(ctx, "user@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "user@example.com"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestRedisSessionCache_ErrorWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	cache := NewRedisSessionCache(client, time.Minute)
	mr.Close()

	if _, _, err := cache.Get(ctx, "user@example.com"); err == nil {
		t.Fatalf("expected error with redis down")
	}
}

func TestNewRedisSessionCache_NilClient(t *testing.T) {
	if NewRedisSessionCache(nil, time.Minute) != nil {
		t.Fatalf("expected nil cache for nil client")
	}
}
