package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contacts-api/internal/service"
)

// abortWithDetail corta la cadena y responde {"detail": msg}.
func abortWithDetail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// respondError traduce los errores de servicio a codigos HTTP.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		abortWithDetail(c, http.StatusConflict, "Account already exists")
	case errors.Is(err, service.ErrInvalidEmail):
		abortWithDetail(c, http.StatusUnauthorized, "Invalid email")
	case errors.Is(err, service.ErrInvalidPassword):
		abortWithDetail(c, http.StatusUnauthorized, "Invalid password")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		abortWithDetail(c, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, service.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		abortWithDetail(c, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, service.ErrInvalidVerificationToken):
		abortWithDetail(c, http.StatusUnprocessableEntity, "Invalid token for email verification")
	case errors.Is(err, service.ErrVerificationFailed):
		abortWithDetail(c, http.StatusBadRequest, "Verification error")
	case errors.Is(err, service.ErrContactNotFound):
		abortWithDetail(c, http.StatusNotFound, "Contact not found")
	case errors.Is(err, service.ErrInvalidSignup),
		errors.Is(err, service.ErrInvalidContact),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrInvalidPagination),
		errors.Is(err, service.ErrInvalidBirthdays),
		errors.Is(err, service.ErrInvalidAvatar):
		abortWithDetail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrAvatarUpload):
		abortWithDetail(c, http.StatusBadGateway, "Avatar upload failed")
	default:
		logger.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		abortWithDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}

// respondBindError responde 422 ante payloads mal formados.
func respondBindError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request", zap.Error(err), zap.String("path", c.Request.URL.Path))
	abortWithDetail(c, http.StatusUnprocessableEntity, err.Error())
}
