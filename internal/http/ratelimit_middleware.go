package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contacts-api/internal/service"
)

// RateLimitMiddleware devuelve 429 cuando el limiter rechaza la clave.
// Sin limiter o sin clave la peticion pasa.
func RateLimitMiddleware(limiter service.RateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		k := key(c)
		if k == "" {
			c.Next()
			return
		}
		if !limiter.Allow(c.Request.Context(), k) {
			abortWithDetail(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// ClientIPKey limita por IP de origen.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// UserKey limita por usuario autenticado; requiere JWTAuthMiddleware antes.
func UserKey(c *gin.Context) string {
	user, ok := CurrentUser(c)
	if !ok {
		return ""
	}
	return user.Email
}
