// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"net/url"
	"time"
)

// Config holds configuration for cache creation.
type Config struct {
	RedisURL        string // empty selects the memory backend
	Prefix          string
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration

	// FallbackToMemory keeps the process running with a memory cache when
	// Redis is unreachable.
	FallbackToMemory bool
}

// DefaultConfig returns the default memory cache configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:           "ocms:",
		DefaultTTL:       time.Hour,
		MaxSize:          10000,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	}
}

// NewCache creates the backend selected by cfg.
func NewCache(cfg Config, logger *slog.Logger) (Cacher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(RedisCacheOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.Prefix,
			DefaultTTL: cfg.DefaultTTL,
		})
		if err == nil {
			logger.Info("cache backend ready", "backend", "redis", "url", MaskRedisURL(cfg.RedisURL))
			return rc, nil
		}
		if !cfg.FallbackToMemory {
			return nil, err
		}
		logger.Warn("redis unavailable, using memory cache",
			"url", MaskRedisURL(cfg.RedisURL), "error", err)
	}

	logger.Info("cache backend ready", "backend", "memory", "max_size", cfg.MaxSize)
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	}), nil
}

// MaskRedisURL hides the password in a Redis URL for logging.
func MaskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
