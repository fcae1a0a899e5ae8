package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contacts-api/internal/avatar"
	"contacts-api/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, users *service.UserService) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
	}
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateAvatar maneja PATCH /users/avatar (multipart, campo "file").
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondBindError(c, h.logger, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBindError(c, h.logger, err)
		return
	}
	defer file.Close()

	updated, err := h.users.UpdateAvatar(c.Request.Context(), user, avatar.Upload{
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
