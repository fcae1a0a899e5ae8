package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contacts-api/internal/domain"
)

const currentUserKey = "current_user"

// CurrentUserResolver resuelve el usuario a partir de un access token.
type CurrentUserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (domain.User, error)
}

// JWTAuthMiddleware valida el access token Bearer y guarda el usuario en el contexto.
func JWTAuthMiddleware(users CurrentUserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if users == nil {
			abortWithDetail(c, http.StatusInternalServerError, "auth not configured")
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := users.CurrentUser(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			abortWithDetail(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
