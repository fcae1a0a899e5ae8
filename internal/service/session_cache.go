package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"contacts-api/internal/domain"
)

const defaultSessionTTL = 5 * time.Minute

// SessionCache guarda una foto del usuario autenticado indexada por email.
// Es best effort: nunca es la fuente de verdad.
type SessionCache interface {
	Get(ctx context.Context, email string) (domain.User, bool, error)
	Set(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, email string) error
}

// sessionSnapshot es lo que se serializa; no incluye hash de contraseña ni refresh token.
type sessionSnapshot struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Verified  bool      `json:"verified"`
	Avatar    *string   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func snapshotOf(user domain.User) sessionSnapshot {
	return sessionSnapshot{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Verified:  user.Verified,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
	}
}

func (s sessionSnapshot) user() domain.User {
	return domain.User{
		ID:        s.ID,
		Email:     s.Email,
		Username:  s.Username,
		Verified:  s.Verified,
		Avatar:    s.Avatar,
		CreatedAt: s.CreatedAt,
	}
}

type memoryEntry struct {
	snapshot  sessionSnapshot
	expiresAt time.Time
}

type memorySessionCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryEntry
}

func NewMemorySessionCache(ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &memorySessionCache{
		ttl:   ttl,
		items: make(map[string]memoryEntry),
	}
}

func (c *memorySessionCache) Get(_ context.Context, email string) (domain.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[email]
	if !ok {
		return domain.User{}, false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(c.items, email)
		return domain.User{}, false, nil
	}
	return entry.snapshot.user(), true, nil
}

func (c *memorySessionCache) Set(_ context.Context, user domain.User) error {
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[user.Email] = memoryEntry{
		snapshot:  snapshotOf(user),
		expiresAt: time.Now().UTC().Add(c.ttl),
	}
	return nil
}

func (c *memorySessionCache) Delete(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, email)
	return nil
}

type redisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &redisSessionCache{
		client: client,
		ttl:    ttl,
		prefix: "session:user:",
	}
}

func (c *redisSessionCache) Get(ctx context.Context, email string) (domain.User, bool, error) {
	if strings.TrimSpace(email) == "" {
		return domain.User{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.client.Get(ctx, c.prefix+email).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	var snap sessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.User{}, false, err
	}
	return snap.user(), true, nil
}

func (c *redisSessionCache) Set(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	raw, err := json.Marshal(snapshotOf(user))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.client.Set(ctx, c.prefix+user.Email, raw, c.ttl).Err()
}

func (c *redisSessionCache) Delete(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return c.client.Del(ctx, c.prefix+email).Err()
}
