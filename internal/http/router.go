package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contacts-api/internal/metrics"
	"contacts-api/internal/service"
)

// Limiters agrupa los rate limiters por ruta; un campo nil desactiva el limite.
type Limiters struct {
	Signup service.RateLimiter
	Me     service.RateLimiter
	Avatar service.RateLimiter
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	users CurrentUserResolver,
	authH *AuthHandler,
	userH *UserHandler,
	contactH *ContactHandler,
	healthH *HealthHandler,
	limiters Limiters,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, metricas, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), metricsMiddleware(), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthH.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/auth")
	auth.POST("/signup", RateLimitMiddleware(limiters.Signup, ClientIPKey), authH.Signup)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh_token", authH.RefreshToken)
	auth.GET("/request_email/:email", authH.RequestEmail)
	auth.POST("/request_email", authH.RequestEmail)
	auth.GET("/confirmed_email/:token", authH.ConfirmedEmail)

	authenticated := JWTAuthMiddleware(users)

	usersGroup := r.Group("/users", authenticated)
	usersGroup.GET("/me", RateLimitMiddleware(limiters.Me, UserKey), userH.Me)
	usersGroup.PATCH("/avatar", RateLimitMiddleware(limiters.Avatar, UserKey), userH.UpdateAvatar)

	contacts := r.Group("/contacts", authenticated)
	contacts.GET("", contactH.List)
	contacts.GET("/search", contactH.Search)
	contacts.GET("/birthdays", contactH.Birthdays)
	contacts.GET("/:id", contactH.Get)
	contacts.POST("", contactH.Create)
	contacts.PUT("/:id", contactH.Update)
	contacts.DELETE("/:id", contactH.Delete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware registra conteo y latencia por ruta (patron, no path real).
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
