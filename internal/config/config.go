// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig
	Redis   RedisConfig
	NATS    NATSConfig
	GitHub  GitHubConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DBPath         string
	UploadDir      string
	MaxUploadBytes int64
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// RedisConfig selects the pair-lock backend. An empty Addr keeps locks in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// NATSConfig selects the event publisher. An empty URL disables events.
type NATSConfig struct {
	URL string
}

func (n NATSConfig) Enabled() bool { return n.URL != "" }

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (g GitHubConfig) Enabled() bool { return g.ClientID != "" && g.ClientSecret != "" }

type LogConfig struct {
	Level slog.Level
}

func Load() (*Config, error) {
	port := getEnvInt("SERVER_PORT", 8080)

	cfg := &Config{
		Server: ServerConfig{
			Port: port,
		},
		Storage: StorageConfig{
			DBPath:         getEnv("DB_PATH", "data/social.db"),
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			TokenTTL:   getEnvDuration("TOKEN_TTL", 24*time.Hour),
			BcryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  getEnvDuration("LOCK_TTL", 10*time.Second),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		GitHub: GitHubConfig{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			CallbackURL:  getEnvNonEmpty("GITHUB_CALLBACK_URL", fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
		Log: LogConfig{
			Level: getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d is out of range", c.Server.Port))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return defaultValue
	}
	return level
}
