// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package moduleutil provides module-specific test helpers.
package moduleutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/config"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/notify"
	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/testutil"
)

// RunMigrations runs all migrations up for the given module.
func RunMigrations(t *testing.T, db *sql.DB, migrations []module.Migration) {
	t.Helper()
	for _, mig := range migrations {
		if err := mig.Up(db); err != nil {
			t.Fatalf("migration %d up: %v", mig.Version, err)
		}
	}
}

// RunMigrationsDown rolls back all migrations for the given module, newest first.
func RunMigrationsDown(t *testing.T, db *sql.DB, migrations []module.Migration) {
	t.Helper()
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := migrations[i].Down(db); err != nil {
			t.Fatalf("migration %d down: %v", migrations[i].Version, err)
		}
	}
}

// TestConfig returns a configuration with the event defaults applied.
func TestConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		EventsTimezone:    "UTC",
		EventsDateFormat:  "Mon 2 Jan 2006",
		EventsTimeFormat:  "3:04 PM",
		FeaturedTTL:       15 * time.Minute,
		FeedHorizonDays:   365,
		FeaturedRefreshAt: "0 * * * *",
	}
}

// TestModuleContext creates a module.Context over db with a memory cache
// and a recording publisher. It returns the context, the hook registry and
// the publisher for assertions.
func TestModuleContext(t *testing.T, db *sql.DB) (*module.Context, *module.HookRegistry, *notify.MemoryPublisher) {
	t.Helper()
	logger := testutil.TestLogger()
	hooks := module.NewHookRegistry(logger)
	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = mem.Close() })
	pub := notify.NewMemoryPublisher()

	return &module.Context{
		DB:        db,
		Store:     store.New(db),
		Logger:    logger,
		Config:    TestConfig(),
		Cache:     mem,
		Hooks:     hooks,
		Publisher: pub,
	}, hooks, pub
}
