// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example keys that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-admin-api-key!",
	"REPLACE_WITH_YOUR_OWN_ADMIN_API_KEY",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath      string `env:"OCMS_DB_PATH" envDefault:"./data/ocms-events.db"`
	AdminAPIKey string `env:"OCMS_ADMIN_API_KEY,required"`
	ServerHost  string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort  int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	SiteURL     string `env:"OCMS_SITE_URL"` // Public base URL for sitemap and feed links; derived from the request when empty
	Env         string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel    string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL     string `env:"OCMS_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"OCMS_CACHE_PREFIX" envDefault:"ocms:"`   // Redis key prefix
	CacheTTL     int    `env:"OCMS_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Events presentation
	EventsTimezone    string        `env:"OCMS_EVENTS_TIMEZONE" envDefault:"UTC"`
	EventsDateFormat  string        `env:"OCMS_EVENTS_DATE_FORMAT" envDefault:"Mon 2 Jan 2006"`
	EventsTimeFormat  string        `env:"OCMS_EVENTS_TIME_FORMAT" envDefault:"3:04 PM"`
	FeaturedTTL       time.Duration `env:"OCMS_EVENTS_FEATURED_TTL" envDefault:"15m"`
	FeedHorizonDays   int           `env:"OCMS_EVENTS_FEED_HORIZON_DAYS" envDefault:"365"`
	EventsSeedFile    string        `env:"OCMS_EVENTS_SEED_FILE"`
	FeaturedRefreshAt string        `env:"OCMS_EVENTS_FEATURED_REFRESH" envDefault:"0 * * * *"`

	// Change notifications
	KafkaBrokers []string `env:"OCMS_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"OCMS_KAFKA_TOPIC" envDefault:"ocms.events.changes"`

	// Public rate limiting
	RateLimitRPS   float64 `env:"OCMS_RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"OCMS_RATE_LIMIT_BURST" envDefault:"40"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// KafkaEnabled returns true if change notifications should be published.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Location returns the time zone events are presented in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.EventsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel parses the configured log level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
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

// MinAdminAPIKeyLength is the minimum required length for the admin API key.
const MinAdminAPIKeyLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.AdminAPIKey) < MinAdminAPIKeyLength {
		return nil, fmt.Errorf("OCMS_ADMIN_API_KEY must be at least %d bytes long, got %d bytes; "+
			"generate a key with: openssl rand -base64 32",
			MinAdminAPIKeyLength, len(cfg.AdminAPIKey))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.AdminAPIKey == weak {
			return nil, fmt.Errorf("OCMS_ADMIN_API_KEY is a known default value and must not be used; " +
				"generate a key with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.AdminAPIKey) {
		slog.Warn("OCMS_ADMIN_API_KEY has low character diversity; " +
			"consider generating a random key with: openssl rand -base64 32")
	}

	if _, err := time.LoadLocation(cfg.EventsTimezone); err != nil {
		return nil, fmt.Errorf("OCMS_EVENTS_TIMEZONE %q: %w", cfg.EventsTimezone, err)
	}
	if cfg.FeedHorizonDays <= 0 {
		return nil, fmt.Errorf("OCMS_EVENTS_FEED_HORIZON_DAYS must be positive, got %d", cfg.FeedHorizonDays)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("OCMS_RATE_LIMIT_RPS and OCMS_RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
