// Package config reads the server settings from the environment.
//
// Values come from real environment variables first; a .env file in the
// working directory fills in whatever is not set (godotenv never overrides
// an existing variable). Every field has a development default so a bare
// `go run ./cmd/server` works.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// devJWTSecret is only accepted outside production.
const devJWTSecret = "yatube-development-secret-change-me"

type Config struct {
	Env      string `validate:"oneof=development production test"`
	Port     int    `validate:"min=1,max=65535"`
	LogLevel string `validate:"oneof=debug info warn error"`
	// SecureCookies marks the session cookie Secure; on when Env is production.
	SecureCookies bool

	DBPath string `validate:"required"`

	JWTSecret string        `validate:"min=16"`
	TokenTTL  time.Duration `validate:"gt=0"`

	PostsPerPage int `validate:"min=1,max=100"`

	Cache CacheConfig
	Media MediaConfig

	GitHub GitHubConfig
}

type CacheConfig struct {
	Backend string        `validate:"oneof=memory redis"`
	TTL     time.Duration `validate:"gt=0"`
	// MaxBytes bounds the in-memory backend.
	MaxBytes      int64
	RedisAddr     string `validate:"required_if=Backend redis"`
	RedisPassword string
	RedisDB       int `validate:"min=0"`
}

type MediaConfig struct {
	Backend string `validate:"oneof=local minio"`
	Root    string `validate:"required_if=Backend local"`
	URL     string `validate:"required"`

	MinIOEndpoint  string `validate:"required_if=Backend minio"`
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string `validate:"required_if=Backend minio"`
	MinIOUseSSL    bool
	MinIOPublicURL string
}

// GitHubConfig enables "Sign in with GitHub" when ClientID is set.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string `validate:"required_with=ClientID"`
	CallbackURL  string
}

// Enabled reports whether the GitHub login routes should be mounted.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != ""
}

// Load reads envFiles (default ".env"), then the environment, and validates
// the result. A missing env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	env := getEnv("APP_ENV", "development")
	port := getEnvInt("PORT", 8080)

	cfg := &Config{
		Env:           env,
		Port:          port,
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SecureCookies: getEnvBool("SECURE_COOKIES", env == "production"),
		DBPath:        getEnv("DB_PATH", "data/yatube.db"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 14*24*time.Hour),
		PostsPerPage:  getEnvInt("POSTS_PER_PAGE", 10),
		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "memory"),
			TTL:           getEnvDuration("PAGE_CACHE_TTL", 20*time.Second),
			MaxBytes:      int64(getEnvInt("CACHE_MAX_BYTES", 64<<20)),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Media: MediaConfig{
			Backend:        getEnv("MEDIA_BACKEND", "local"),
			Root:           getEnv("MEDIA_ROOT", "data/media"),
			URL:            getEnv("MEDIA_URL", "/media/"),
			MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinIOBucket:    getEnv("MINIO_BUCKET", "yatube"),
			MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),
			MinIOPublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
		GitHub: GitHubConfig{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			CallbackURL:  getEnv("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
	}

	if cfg.JWTSecret == "" && env != "production" {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags plus the rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Env == "production" && c.JWTSecret == devJWTSecret {
		return errors.New("config validation failed: JWT_SECRET must be set in production")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("20s", "1h") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
