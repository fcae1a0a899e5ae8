package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWTService() *JWTService {
	return NewJWTService("secret", "contacts-api", 15*time.Minute, 7*24*time.Hour, 24*time.Hour)
}

func TestJWTService_GenerateParseAccess(t *testing.T) {
	svc := newTestJWTService()

	pair, err := svc.GeneratePair("user@example.com")
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected tokens")
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("expected bearer token type, got %q", pair.TokenType)
	}

	email, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("unexpected subject: %s", email)
	}

	email, err = svc.DecodeRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if email != "user@example.com" {
		t.Fatalf("unexpected subject: %s", email)
	}
}

func TestJWTService_TokensAreUniquePerIssue(t *testing.T) {
	svc := newTestJWTService()

	first, err := svc.CreateRefreshToken("user@example.com")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	second, err := svc.CreateRefreshToken("user@example.com")
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct refresh tokens within the same second")
	}
}

func TestJWTService_ScopesAreNotInterchangeable(t *testing.T) {
	svc := newTestJWTService()
	pair, err := svc.GeneratePair("user@example.com")
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	emailToken, err := svc.CreateEmailToken("user@example.com")
	if err != nil {
		t.Fatalf("create email token: %v", err)
	}

	if _, err := svc.DecodeRefreshToken(pair.AccessToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for access token used as refresh, got %v", err)
	}
	if _, err := svc.ParseAccessToken(pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for refresh token used as access, got %v", err)
	}
	if _, err := svc.EmailFromToken(pair.AccessToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for access token used as email token, got %v", err)
	}
	if _, err := svc.ParseAccessToken(emailToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for email token used as access, got %v", err)
	}

	email, err := svc.EmailFromToken(emailToken)
	if err != nil || email != "user@example.com" {
		t.Fatalf("expected email from verification token, got %q, %v", email, err)
	}
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := newTestJWTService()
	issuedAt := time.Now().UTC().Add(-time.Hour)
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.CreateAccessToken("user@example.com")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(16 * time.Minute) }
	if _, err := svc.ParseAccessToken(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", "", 0, 0, 0)

	if _, err := svc.GeneratePair("user@example.com"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsWrongSignature(t *testing.T) {
	other := NewJWTService("other-secret", "contacts-api", 0, 0, 0)
	token, err := other.CreateAccessToken("user@example.com")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	if _, err := newTestJWTService().ParseAccessToken(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign signature, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now().UTC()
	claims := Claims{
		Scope: ScopeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "other-issuer",
			Subject:   "user@example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.ParseAccessToken(signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	svc := newTestJWTService()
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.DecodeRefreshToken(token); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid for %q, got %v", token, err)
		}
	}
}
