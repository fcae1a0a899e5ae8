package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contacts-api/internal/avatar"
	"contacts-api/internal/db"
	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

type mockUserRepo struct {
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	getCalls     int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.getCalls++
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByEmailForUpdate(ctx context.Context, email string) (domain.User, error) {
	return m.GetByEmail(ctx, email)
}

func (m *mockUserRepo) UpdateRefreshToken(_ context.Context, id string, token *string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.RefreshToken = token
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) MarkVerified(_ context.Context, id string) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Verified = true
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) UpdateAvatar(_ context.Context, id string, avatarURL *string) (domain.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.Avatar = avatarURL
	m.usersByID[id] = user
	return user, nil
}

type mockUploader struct {
	url   string
	err   error
	calls int
}

func (m *mockUploader) Upload(_ context.Context, email string, _ avatar.Upload) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

func seedUser(t *testing.T, repo *mockUserRepo, email string) domain.User {
	t.Helper()
	user := domain.User{
		ID:           "u-" + email,
		Email:        email,
		Username:     "user",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestUserServiceCurrentUser_UsesCache(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "user@example.com")
	tokens := newTestJWTService()
	svc := NewUserService(zap.NewNop(), db.NoopTransactor{}, repo, tokens, NewMemorySessionCache(time.Minute), nil)

	access, err := tokens.CreateAccessToken("user@example.com")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	first, err := svc.CurrentUser(context.Background(), access)
	if err != nil {
		t.Fatalf("expected user, got %v", err)
	}
	second, err := svc.CurrentUser(context.Background(), access)
	if err != nil {
		t.Fatalf("expected cached user, got %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}
	if repo.getCalls != 1 {
		t.Fatalf("expected one repository lookup, got %d", repo.getCalls)
	}
	if second.PasswordHash != "" {
		t.Fatalf("cached user must not carry password hash")
	}
}

func TestUserServiceCurrentUser_RejectsWrongScope(t *testing.T) {
	repo := newMockUserRepo()
	seedUser(t, repo, "user@example.com")
	tokens := newTestJWTService()
	svc := NewUserService(zap.NewNop(), nil, repo, tokens, nil, nil)

	refresh, _ := tokens.CreateRefreshToken("user@example.com")
	if _, err := svc.CurrentUser(context.Background(), refresh); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceCurrentUser_UnknownUser(t *testing.T) {
	tokens := newTestJWTService()
	svc := NewUserService(zap.NewNop(), nil, newMockUserRepo(), tokens, nil, nil)

	access, _ := tokens.CreateAccessToken("ghost@example.com")
	if _, err := svc.CurrentUser(context.Background(), access); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserServiceUpdateAvatar_PersistsAndRefreshesCache(t *testing.T) {
	repo := newMockUserRepo()
	user := seedUser(t, repo, "user@example.com")
	cache := NewMemorySessionCache(time.Minute)
	uploader := &mockUploader{url: "https://cdn.example.com/avatars/user@example.com?v=1"}
	svc := NewUserService(zap.NewNop(), db.NoopTransactor{}, repo, newTestJWTService(), cache, uploader)

	updated, err := svc.UpdateAvatar(context.Background(), user, avatar.Upload{
		Body:        strings.NewReader("png"),
		Size:        3,
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if updated.Avatar == nil || *updated.Avatar != uploader.url {
		t.Fatalf("expected avatar %s, got %v", uploader.url, updated.Avatar)
	}
	cached, ok, _ := cache.Get(context.Background(), "user@example.com")
	if !ok || cached.Avatar == nil || *cached.Avatar != uploader.url {
		t.Fatalf("expected cache refreshed with new avatar")
	}
}

func TestUserServiceUpdateAvatar_InvalidFile(t *testing.T) {
	repo := newMockUserRepo()
	user := seedUser(t, repo, "user@example.com")
	uploader := &mockUploader{err: avatar.ErrUnsupportedType}
	svc := NewUserService(zap.NewNop(), nil, repo, newTestJWTService(), nil, uploader)

	_, err := svc.UpdateAvatar(context.Background(), user, avatar.Upload{ContentType: "text/plain"})
	if !errors.Is(err, ErrInvalidAvatar) {
		t.Fatalf("expected ErrInvalidAvatar, got %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), user.ID)
	if stored.Avatar != nil {
		t.Fatalf("expected avatar unchanged")
	}
}

func TestUserServiceUpdateAvatar_StorageFailure(t *testing.T) {
	repo := newMockUserRepo()
	user := seedUser(t, repo, "user@example.com")
	uploader := &mockUploader{err: errors.New("s3 unavailable")}
	svc := NewUserService(zap.NewNop(), nil, repo, newTestJWTService(), nil, uploader)

	_, err := svc.UpdateAvatar(context.Background(), user, avatar.Upload{ContentType: "image/png", Size: 1})
	if !errors.Is(err, ErrAvatarUpload) {
		t.Fatalf("expected ErrAvatarUpload, got %v", err)
	}
}

func TestUserServiceUpdateAvatar_NotConfigured(t *testing.T) {
	repo := newMockUserRepo()
	user := seedUser(t, repo, "user@example.com")
	svc := NewUserService(zap.NewNop(), nil, repo, newTestJWTService(), nil, nil)

	if _, err := svc.UpdateAvatar(context.Background(), user, avatar.Upload{}); !errors.Is(err, ErrAvatarUpload) {
		t.Fatalf("expected ErrAvatarUpload, got %v", err)
	}
}
