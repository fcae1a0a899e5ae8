package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"contacts-api/internal/avatar"
	"contacts-api/internal/db"
	"contacts-api/internal/domain"
	"contacts-api/internal/metrics"
	"contacts-api/internal/repository"
)

// AvatarUploader sube el avatar y devuelve la URL derivada.
type AvatarUploader interface {
	Upload(ctx context.Context, email string, file avatar.Upload) (string, error)
}

// UserService resuelve el usuario autenticado y gestiona su perfil.
type UserService struct {
	logger   *zap.Logger
	tx       db.Transactor
	users    repository.UserRepository
	tokens   *JWTService
	cache    SessionCache
	uploader AvatarUploader
}

func NewUserService(
	logger *zap.Logger,
	tx db.Transactor,
	users repository.UserRepository,
	tokens *JWTService,
	cache SessionCache,
	uploader AvatarUploader,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tx == nil {
		tx = db.NoopTransactor{}
	}
	if cache == nil {
		cache = NewMemorySessionCache(defaultSessionTTL)
	}
	return &UserService{
		logger:   logger,
		tx:       tx,
		users:    users,
		tokens:   tokens,
		cache:    cache,
		uploader: uploader,
	}
}

// CurrentUser valida el access token y devuelve el usuario, primero desde cache.
func (s *UserService) CurrentUser(ctx context.Context, accessToken string) (domain.User, error) {
	emailAddr, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	user, ok, err := s.cache.Get(ctx, emailAddr)
	switch {
	case err != nil:
		metrics.RecordSessionCacheLookup("error")
		s.logger.Warn("session cache get failed", zap.Error(err), zap.String("email", emailAddr))
	case ok:
		metrics.RecordSessionCacheLookup("hit")
		return user, nil
	default:
		metrics.RecordSessionCacheLookup("miss")
	}

	user, err = s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	s.cacheUser(ctx, user)
	return user, nil
}

// UpdateAvatar sube la imagen, guarda la URL y refresca la cache de sesion.
// Un fallo del almacenamiento externo falla la operacion.
func (s *UserService) UpdateAvatar(ctx context.Context, user domain.User, file avatar.Upload) (domain.User, error) {
	if s.uploader == nil {
		metrics.RecordAvatarUpload("failed")
		return domain.User{}, fmt.Errorf("%w: storage not configured", ErrAvatarUpload)
	}
	link, err := s.uploader.Upload(ctx, user.Email, file)
	if err != nil {
		if errors.Is(err, avatar.ErrEmptyFile) || errors.Is(err, avatar.ErrFileTooLarge) || errors.Is(err, avatar.ErrUnsupportedType) {
			return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidAvatar, err)
		}
		metrics.RecordAvatarUpload("failed")
		s.logger.Error("avatar upload failed", zap.Error(err), zap.String("email", user.Email))
		return domain.User{}, fmt.Errorf("%w: %v", ErrAvatarUpload, err)
	}

	var updated domain.User
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.users.UpdateAvatar(ctx, user.ID, &link)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	metrics.RecordAvatarUpload("succeeded")
	s.cacheUser(ctx, updated)
	return updated, nil
}

func (s *UserService) cacheUser(ctx context.Context, user domain.User) {
	if err := s.cache.Set(ctx, user); err != nil {
		s.logger.Warn("session cache set failed", zap.Error(err), zap.String("email", user.Email))
	}
}
