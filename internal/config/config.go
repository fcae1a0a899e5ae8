package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns    int32  `env:"DB_MIN_CONNS" envDefault:"1"`

	JWTSecret            string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"contacts-api"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"10080"`
	JWTEmailTTLMinutes   int    `env:"JWT_EMAIL_TTL_MINUTES" envDefault:"10080"`

	RedisAddr              string `env:"REDIS_ADDR"`
	RedisPassword          string `env:"REDIS_PASSWORD"`
	RedisDB                int    `env:"REDIS_DB" envDefault:"0"`
	SessionCacheTTLSeconds int    `env:"SESSION_CACHE_TTL_SECONDS" envDefault:"300"`
	RateLimitEnabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	NotifyBackend        string `env:"NOTIFY_BACKEND" envDefault:"smtp"`
	NotifyWorkers        int    `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueueSize      int    `env:"NOTIFY_QUEUE_SIZE" envDefault:"100"`
	NotifyTimeoutSeconds int    `env:"NOTIFY_TIMEOUT_SECONDS" envDefault:"10"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Contacts"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	AMQPURL        string `env:"AMQP_URL"`
	AMQPExchange   string `env:"AMQP_EXCHANGE" envDefault:"contacts.events"`
	AMQPRoutingKey string `env:"AMQP_ROUTING_KEY" envDefault:"contacts.email.verify.requested"`

	S3Endpoint          string `env:"S3_ENDPOINT"`
	S3Region            string `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID       string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey   string `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket            string `env:"S3_BUCKET" envDefault:"avatars"`
	S3UsePathStyle      bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	// AvatarPublicBaseURL debe apuntar a un CDN con redimensionado (Imgix, imgproxy, Cloudflare Images):
	// los parametros w, h y fit=fill que se anaden a la URL derivada solo recortan y escalan
	// la imagen alli. Un endpoint S3 directo los ignora y sirve el original.
	AvatarPublicBaseURL string `env:"AVATAR_PUBLIC_BASE_URL"`
	AvatarPrefix        string `env:"AVATAR_PREFIX" envDefault:"avatars"`
	AvatarSize          int    `env:"AVATAR_SIZE" envDefault:"250"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLMinutes) * time.Minute
}

func (c *Config) EmailTokenTTL() time.Duration {
	return time.Duration(c.JWTEmailTTLMinutes) * time.Minute
}

func (c *Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.SessionCacheTTLSeconds) * time.Second
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// AvatarStorageEnabled indica si hay un bucket S3 configurado para avatares.
func (c *Config) AvatarStorageEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}
