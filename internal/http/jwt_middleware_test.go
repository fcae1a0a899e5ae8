package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"contacts-api/internal/domain"
)

type stubResolver struct {
	user domain.User
	err  error
	got  string
}

func (s *stubResolver) CurrentUser(_ context.Context, token string) (domain.User, error) {
	s.got = token
	return s.user, s.err
}

func protectedRouter(resolver CurrentUserResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(resolver), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, user.ID)
	})
	return r
}

func TestJWTAuthMiddleware_SetsCurrentUser(t *testing.T) {
	resolver := &stubResolver{user: domain.User{ID: "u1", Email: "user@example.com"}}
	r := protectedRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "bearer  token-value ")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "u1" {
		t.Fatalf("expected 200 u1, got %d %s", rec.Code, rec.Body.String())
	}
	if resolver.got != "token-value" {
		t.Fatalf("expected trimmed token, got %q", resolver.got)
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	r := protectedRouter(&stubResolver{})

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestJWTAuthMiddleware_RejectsInvalidToken(t *testing.T) {
	r := protectedRouter(&stubResolver{err: errors.New("bad token")})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate header")
	}
}
