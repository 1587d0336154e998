// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

const testKey = "test-admin-key-32-bytes-long!!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_ADMIN_API_KEY", testKey)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/ocms-events.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/ocms-events.db")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.EventsDateFormat != "Mon 2 Jan 2006" {
		t.Errorf("EventsDateFormat = %q, want %q", cfg.EventsDateFormat, "Mon 2 Jan 2006")
	}
	if cfg.EventsTimeFormat != "3:04 PM" {
		t.Errorf("EventsTimeFormat = %q, want %q", cfg.EventsTimeFormat, "3:04 PM")
	}
	if cfg.FeaturedTTL != 15*time.Minute {
		t.Errorf("FeaturedTTL = %v, want 15m", cfg.FeaturedTTL)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.KafkaEnabled() {
		t.Error("KafkaEnabled() = true, want false")
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true, want false")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "OCMS_ADMIN_API_KEY", testKey)
	setEnv(t, "OCMS_SERVER_HOST", "0.0.0.0")
	setEnv(t, "OCMS_SERVER_PORT", "3000")
	setEnv(t, "OCMS_LOG_LEVEL", "debug")
	setEnv(t, "OCMS_KAFKA_BROKERS", "k1:9092,k2:9092")
	setEnv(t, "OCMS_EVENTS_FEATURED_TTL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "0.0.0.0:3000")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v, want [k1:9092 k2:9092]", cfg.KafkaBrokers)
	}
	if cfg.FeaturedTTL != 2*time.Minute {
		t.Errorf("FeaturedTTL = %v, want 2m", cfg.FeaturedTTL)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing key", env: map[string]string{}},
		{name: "short key", env: map[string]string{"OCMS_ADMIN_API_KEY": "short"}},
		{name: "weak key", env: map[string]string{"OCMS_ADMIN_API_KEY": "change-me-to-32-byte-admin-api-key!"}},
		{name: "unknown timezone", env: map[string]string{
			"OCMS_ADMIN_API_KEY":   testKey,
			"OCMS_EVENTS_TIMEZONE": "Mars/Olympus_Mons",
		}},
		{name: "zero horizon", env: map[string]string{
			"OCMS_ADMIN_API_KEY":            testKey,
			"OCMS_EVENTS_FEED_HORIZON_DAYS": "0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				setEnv(t, k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	if hasMinimumEntropy("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("single class should not pass")
	}
	if !hasMinimumEntropy("abcABC123") {
		t.Error("three classes should pass")
	}
}
