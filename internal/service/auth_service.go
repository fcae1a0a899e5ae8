package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contacts-api/internal/avatar"
	"contacts-api/internal/db"
	"contacts-api/internal/domain"
	"contacts-api/internal/notify"
	"contacts-api/internal/repository"
)

const (
	minPasswordLength = 6
	// bcrypt rechaza entradas de mas de 72 bytes, no runas.
	maxPasswordBytes = 72
)

// AuthService coordina signup, login, refresh de tokens y confirmacion de email.
type AuthService struct {
	logger     *zap.Logger
	tx         db.Transactor
	users      repository.UserRepository
	tokens     *JWTService
	hasher     PasswordHasher
	dispatcher notify.Dispatcher
	cache      SessionCache
	dummyHash  string
}

func NewAuthService(
	logger *zap.Logger,
	tx db.Transactor,
	users repository.UserRepository,
	tokens *JWTService,
	hasher PasswordHasher,
	dispatcher notify.Dispatcher,
	cache SessionCache,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if cache == nil {
		cache = NewMemorySessionCache(defaultSessionTTL)
	}
	// Se compara contra este hash cuando el email no existe para no filtrar por tiempo.
	dummyHash, err := hasher.Hash("contacts-api-timing-guard")
	if err != nil {
		logger.Warn("dummy hash generation failed", zap.Error(err))
	}
	return &AuthService{
		logger:     logger,
		tx:         tx,
		users:      users,
		tokens:     tokens,
		hasher:     hasher,
		dispatcher: dispatcher,
		cache:      cache,
		dummyHash:  dummyHash,
	}
}

type SignupInput struct {
	Email    string
	Username string
	Password string
}

// Signup crea la cuenta sin verificar y despacha el correo de verificacion en segundo plano.
// Un fallo en el envio no deshace la creacion.
func (s *AuthService) Signup(ctx context.Context, input SignupInput, baseURL string) (domain.User, error) {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	if !isValidEmail(email) || username == "" ||
		len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordBytes {
		return domain.User{}, ErrInvalidSignup
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, ErrUserExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}
	defaultAvatar := avatar.GravatarURL(email)
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Verified:     false,
		Avatar:       &defaultAvatar,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return domain.User{}, ErrUserExists
	}
	if err != nil {
		return domain.User{}, err
	}

	s.dispatchVerification(user, baseURL)
	return user, nil
}

// Login valida credenciales, emite un par nuevo y guarda el refresh token.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (TokenPair, error) {
	emailAddr = normalizeEmail(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Verify(password, s.dummyHash)
			return TokenPair{}, ErrInvalidEmail
		}
		return TokenPair{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return TokenPair{}, ErrInvalidPassword
	}

	pair, err := s.tokens.GeneratePair(user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.users.UpdateRefreshToken(ctx, user.ID, &pair.RefreshToken)
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Refresh rota el refresh token. Si el token presentado no es el guardado
// se asume reutilizacion: se borra el guardado (obliga a re-login) y se rechaza.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	emailAddr, err := s.tokens.DecodeRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	var (
		pair   TokenPair
		reused bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByEmailForUpdate(ctx, emailAddr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if !sameToken(user.RefreshToken, refreshToken) {
			reused = true
			return s.users.UpdateRefreshToken(ctx, user.ID, nil)
		}
		pair, err = s.tokens.GeneratePair(user.Email)
		if err != nil {
			return err
		}
		return s.users.UpdateRefreshToken(ctx, user.ID, &pair.RefreshToken)
	})
	if err != nil {
		return TokenPair{}, err
	}
	if reused {
		s.logger.Warn("refresh token mismatch, session revoked", zap.String("email", emailAddr))
		return TokenPair{}, ErrInvalidRefreshToken
	}
	return pair, nil
}

// RequestEmailConfirmation reenvia el correo de verificacion.
// Devuelve true si el email ya estaba confirmado. Un email desconocido
// responde igual que uno pendiente para no revelar cuentas.
func (s *AuthService) RequestEmailConfirmation(ctx context.Context, emailAddr, baseURL string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if user.Verified {
		return true, nil
	}
	s.dispatchVerification(user, baseURL)
	return false, nil
}

// ConfirmEmail marca el email como verificado. Es idempotente: devuelve true
// si ya estaba confirmado, sin cambiar estado.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	emailAddr, err := s.tokens.EmailFromToken(token)
	if err != nil {
		return false, ErrInvalidVerificationToken
	}

	var already bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByEmailForUpdate(ctx, emailAddr)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrVerificationFailed
			}
			return err
		}
		if user.Verified {
			already = true
			return nil
		}
		return s.users.MarkVerified(ctx, user.ID)
	})
	if err != nil {
		return false, err
	}
	if !already {
		if err := s.cache.Delete(ctx, emailAddr); err != nil {
			s.logger.Warn("session cache delete failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return already, nil
}

func (s *AuthService) dispatchVerification(user domain.User, baseURL string) {
	if s.dispatcher == nil {
		s.logger.Warn("verification dispatcher not configured", zap.String("email", user.Email))
		return
	}
	token, err := s.tokens.CreateEmailToken(user.Email)
	if err != nil {
		s.logger.Error("create email token failed", zap.Error(err), zap.String("email", user.Email))
		return
	}
	s.dispatcher.Dispatch(notify.Message{
		Email:    user.Email,
		Username: user.Username,
		Link:     verificationLink(baseURL, token),
	})
}

func verificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/confirmed_email/" + url.PathEscape(token)
}

func sameToken(stored *string, presented string) bool {
	if stored == nil || *stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
