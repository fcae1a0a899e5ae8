package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contacts-api/internal/avatar"
	"contacts-api/internal/config"
	"contacts-api/internal/db"
	"contacts-api/internal/email"
	apihttp "contacts-api/internal/http"
	"contacts-api/internal/notify"
	"contacts-api/internal/repository"
	"contacts-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	ctxPing, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(ctxPing, pool); err != nil {
		logger.Warn("db ping failed", zap.Error(err))
	}
	cancelPing()

	tx := db.NewPgTransactor(pool)
	userRepo := repository.NewPgUserRepository(pool)
	contactRepo := repository.NewPgContactRepository(pool)

	var (
		sessionCache service.SessionCache
		limiters     apihttp.Limiters
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory cache and limiters", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}
	if redisClient != nil {
		sessionCache = service.NewRedisSessionCache(redisClient, cfg.SessionCacheTTL())
	} else {
		sessionCache = service.NewMemorySessionCache(cfg.SessionCacheTTL())
	}
	if cfg.RateLimitEnabled {
		limiters = newLimiters(redisClient)
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL(), cfg.EmailTokenTTL())

	queue, closeDeliverer := newNotificationQueue(logger, cfg)
	defer closeDeliverer()

	var uploader service.AvatarUploader
	if cfg.AvatarStorageEnabled() {
		store, err := avatar.NewS3Store(ctx, cfg)
		if err != nil {
			logger.Warn("avatar storage init failed", zap.Error(err))
		} else {
			uploader = avatar.NewUploader(store, cfg.AvatarPrefix, cfg.AvatarSize)
		}
	} else {
		logger.Warn("avatar storage not configured")
	}

	authSvc := service.NewAuthService(logger, tx, userRepo, jwtSvc, service.NewBcryptHasher(0), queue, sessionCache)
	userSvc := service.NewUserService(logger, tx, userRepo, jwtSvc, sessionCache, uploader)
	contactSvc := service.NewContactService(logger, tx, contactRepo)

	router := apihttp.NewRouter(
		logger,
		userSvc,
		apihttp.NewAuthHandler(logger, authSvc, cfg.PublicBaseURL),
		apihttp.NewUserHandler(logger, userSvc),
		apihttp.NewContactHandler(logger, contactSvc),
		apihttp.NewHealthHandler(logger, pool),
		limiters,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	queue.Close()
}

// newLimiters usa Redis cuando esta disponible; si no, ventanas en memoria por proceso.
func newLimiters(client *redis.Client) apihttp.Limiters {
	build := func(name string, window time.Duration, max int) service.RateLimiter {
		if client != nil {
			return service.NewRedisRateLimiter(client, name, window, max)
		}
		return service.NewMemoryRateLimiter(window, max)
	}
	return apihttp.Limiters{
		Signup: build("signup", time.Minute, 2),
		Me:     build("me", 10*time.Second, 2),
		Avatar: build("avatar", 20*time.Second, 2),
	}
}

// newNotificationQueue arma la cola de correos segun NOTIFY_BACKEND.
// El cierre devuelto libera la conexion del deliverer, si la hay.
func newNotificationQueue(logger *zap.Logger, cfg *config.Config) (*notify.Queue, func()) {
	var (
		deliverer notify.Deliverer
		closer    = func() {}
	)
	switch strings.ToLower(cfg.NotifyBackend) {
	case "amqp":
		publisher, err := notify.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("rabbitmq publisher init failed, verification emails disabled", zap.Error(err))
			deliverer = notify.NewEmailDeliverer(email.NewDisabledSender("rabbitmq unavailable"))
			break
		}
		deliverer = publisher
		closer = func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("rabbitmq close", zap.Error(err))
			}
		}
	case "disabled":
		deliverer = notify.NewEmailDeliverer(email.NewDisabledSender("email delivery disabled"))
	default:
		sender := email.NewDisabledSender("email sender not configured")
		if cfg.SMTPHost != "" {
			smtpSender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
			if err != nil {
				logger.Warn("smtp sender init failed", zap.Error(err))
			} else {
				sender = smtpSender
			}
		}
		deliverer = notify.NewEmailDeliverer(sender)
	}
	return notify.NewQueue(logger, deliverer, cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout()), closer
}
