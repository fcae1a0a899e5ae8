package service

import "errors"

// Errores de negocio; el transporte HTTP los traduce a codigos de estado.
var (
	// Conflicto.
	ErrUserExists = errors.New("account already exists")

	// Autenticacion.
	ErrInvalidEmail             = errors.New("invalid email")
	ErrInvalidPassword          = errors.New("invalid password")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrInvalidCredentials       = errors.New("could not validate credentials")
	ErrInvalidVerificationToken = errors.New("invalid token for email verification")
	ErrVerificationFailed       = errors.New("verification error")

	// Validacion.
	ErrInvalidSignup     = errors.New("invalid signup data")
	ErrInvalidContact    = errors.New("invalid contact")
	ErrInvalidFilter     = errors.New("invalid search filter")
	ErrInvalidPagination = errors.New("invalid pagination")
	ErrInvalidBirthdays  = errors.New("invalid birthday query")
	ErrInvalidAvatar     = errors.New("invalid avatar file")

	// No encontrado.
	ErrContactNotFound = errors.New("contact not found")

	// Servicio externo.
	ErrAvatarUpload = errors.New("avatar upload failed")
)
