package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	// Core
	BotToken string `env:"BOT_TOKEN,required,notEmpty"`

	// Appeal status API
	StatusAPIURL       string        `env:"API_URL,required,notEmpty"`
	StatusAPIKey       string        `env:"API_KEY"`
	StatusTokenURL     string        `env:"API_TOKEN_URL"`
	StatusClientID     string        `env:"API_CLIENT_ID"`
	StatusClientSecret string        `env:"API_CLIENT_SECRET"`
	StatusTimeout      time.Duration `env:"API_TIMEOUT" envDefault:"10s"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"file"`
	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	DatabaseURL   string `env:"DATABASE_URL"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Matching
	MultiWordNicknames []string `env:"MULTI_WORD_NICKNAMES" envSeparator:"," envDefault:"pay,team,exchange,trade"`

	// Bot behavior
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID    int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError        int   `env:"LOG_TOPIC_ERROR"`
	LogTopicRegistration int   `env:"LOG_TOPIC_REGISTRATION"`
	LogTopicAppeal       int   `env:"LOG_TOPIC_APPEAL"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StatusAPIURL = strings.TrimRight(c.StatusAPIURL, "/")

	if c.StatusAPIKey == "" && !c.UsesClientCredentials() {
		return errors.New("config: API_KEY or API_TOKEN_URL/API_CLIENT_ID/API_CLIENT_SECRET must be set")
	}

	switch c.StorageDriver {
	case StorageFile:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// UsesClientCredentials reports whether the status API should be called with
// OAuth2 client-credential tokens instead of a static API key.
func (c *Config) UsesClientCredentials() bool {
	return c.StatusTokenURL != "" && c.StatusClientID != "" && c.StatusClientSecret != ""
}

func (c *Config) IsAdmin(telegramID int64) bool {
	if len(c.AdminIDs) == 0 {
		return true
	}
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
