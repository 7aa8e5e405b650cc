// Package config handles application configuration loading. Values come
// from an optional inkpress.yml file and environment variables (which win),
// layered over development defaults by viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultDBPassword = "changeme"
	defaultJWTSecret  = "inkpress-dev-secret-do-not-use"
)

// Config holds all application configuration values.
type Config struct {
	// Server settings
	Host     string
	Port     string
	Env      string // "development", "production", "testing"
	BaseURL  string // public URL used in emails and OAuth callbacks
	LogLevel string

	// Reverse proxies (IPs or CIDRs) whose X-Forwarded-For is believed.
	TrustedProxies []string

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible) for rate limiting, OAuth state and jobs
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Bearer tokens and sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Outgoing mail. An empty SMTPHost logs messages instead of sending.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// S3-compatible object storage for article images
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// Social login
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string

	// RabbitMQ interaction events. Empty URL disables publishing.
	RabbitMQURL      string
	RabbitMQExchange string

	// Background worker
	WorkerConcurrency int

	// Rate limit for credential endpoints (login, register, password reset)
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("app.trusted_proxies", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "inkpress")
	v.SetDefault("postgres.password", defaultDBPassword)
	v.SetDefault("postgres.db", "inkpress")

	v.SetDefault("valkey.host", "localhost")
	v.SetDefault("valkey.port", "6379")
	v.SetDefault("valkey.password", "")

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("session.ttl", "720h")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("mail.from", "Inkpress <no-reply@inkpress.local>")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "fsn1")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket_public", "inkpress-public")
	v.SetDefault("s3.public_url", "")

	v.SetDefault("github.client_id", "")
	v.SetDefault("github.client_secret", "")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "inkpress.events")

	v.SetDefault("worker.concurrency", 10)

	v.SetDefault("ratelimit.auth_requests", 10)
	v.SetDefault("ratelimit.auth_window", "1m")
}

// Load reads configuration, applying defaults for development where
// appropriate. Returns an error if insecure defaults are used in production.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// APP_PORT overrides app.port, POSTGRES_HOST overrides postgres.host, etc.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("inkpress")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Host:     v.GetString("app.host"),
		Port:     v.GetString("app.port"),
		Env:      v.GetString("app.env"),
		BaseURL:  strings.TrimRight(v.GetString("app.base_url"), "/"),
		LogLevel: v.GetString("log.level"),

		TrustedProxies: splitList(v.GetString("app.trusted_proxies")),

		DBHost:     v.GetString("postgres.host"),
		DBPort:     v.GetString("postgres.port"),
		DBUser:     v.GetString("postgres.user"),
		DBPassword: v.GetString("postgres.password"),
		DBName:     v.GetString("postgres.db"),

		ValkeyHost:     v.GetString("valkey.host"),
		ValkeyPort:     v.GetString("valkey.port"),
		ValkeyPassword: v.GetString("valkey.password"),

		JWTSecret:  v.GetString("jwt.secret"),
		SessionTTL: v.GetDuration("session.ttl"),

		SMTPHost:     v.GetString("smtp.host"),
		SMTPPort:     v.GetInt("smtp.port"),
		SMTPUsername: v.GetString("smtp.username"),
		SMTPPassword: v.GetString("smtp.password"),
		MailFrom:     v.GetString("mail.from"),

		S3Endpoint:     v.GetString("s3.endpoint"),
		S3Region:       v.GetString("s3.region"),
		S3AccessKey:    v.GetString("s3.access_key"),
		S3SecretKey:    v.GetString("s3.secret_key"),
		S3BucketPublic: v.GetString("s3.bucket_public"),
		S3PublicURL:    v.GetString("s3.public_url"),

		GitHubClientID:     v.GetString("github.client_id"),
		GitHubClientSecret: v.GetString("github.client_secret"),
		GoogleClientID:     v.GetString("google.client_id"),
		GoogleClientSecret: v.GetString("google.client_secret"),

		RabbitMQURL:      v.GetString("rabbitmq.url"),
		RabbitMQExchange: v.GetString("rabbitmq.exchange"),

		WorkerConcurrency: v.GetInt("worker.concurrency"),

		AuthRateLimit:  v.GetInt("ratelimit.auth_requests"),
		AuthRateWindow: v.GetDuration("ratelimit.auth_window"),
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == defaultDBPassword {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// splitList parses a comma-separated setting, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// StorageEnabled reports whether S3 credentials are configured.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error"). Unknown
// values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
