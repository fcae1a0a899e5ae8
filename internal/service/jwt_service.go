package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ScopeAccess            = "access"
	ScopeRefresh           = "refresh"
	ScopeEmailVerification = "email_verification"
)

// JWTService emite y valida tokens JWT de acceso, refresh y verificacion de email.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	issuer     string
	now        func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Claims lleva el email del usuario en sub y el tipo de token en scope.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret, issuer string, accessTTL, refreshTTL, emailTTL time.Duration) *JWTService {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if emailTTL <= 0 {
		emailTTL = 7 * 24 * time.Hour
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "contacts-api"
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		emailTTL:   emailTTL,
		issuer:     issuer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) CreateAccessToken(email string) (string, error) {
	return s.signToken(email, ScopeAccess, s.accessTTL)
}

func (s *JWTService) CreateRefreshToken(email string) (string, error) {
	return s.signToken(email, ScopeRefresh, s.refreshTTL)
}

func (s *JWTService) CreateEmailToken(email string) (string, error) {
	return s.signToken(email, ScopeEmailVerification, s.emailTTL)
}

func (s *JWTService) GeneratePair(email string) (TokenPair, error) {
	access, err := s.CreateAccessToken(email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.CreateRefreshToken(email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// ParseAccessToken devuelve el email (sub) de un access token valido.
func (s *JWTService) ParseAccessToken(token string) (string, error) {
	return s.subjectFor(token, ScopeAccess)
}

// DecodeRefreshToken devuelve el email (sub) de un refresh token valido.
func (s *JWTService) DecodeRefreshToken(token string) (string, error) {
	return s.subjectFor(token, ScopeRefresh)
}

// EmailFromToken devuelve el email de un token de verificacion valido.
func (s *JWTService) EmailFromToken(token string) (string, error) {
	return s.subjectFor(token, ScopeEmailVerification)
}

func (s *JWTService) subjectFor(token, scope string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrJWTInvalid
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if claims.Scope != scope {
		return "", ErrJWTInvalid
	}
	if !s.isValidClaims(claims) {
		return "", ErrJWTInvalid
	}
	return claims.Subject, nil
}

func (s *JWTService) signToken(email, scope string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(email) == "" {
		return "", ErrJWTInvalid
	}
	now := s.now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.Subject) == "" {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
