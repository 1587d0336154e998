// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/ocms-events/internal/model"
)

// AdminKeyName is the name of the API key seeded from configuration.
const AdminKeyName = "admin (configured)"

// SeedAdminKey stores the configured admin API key with every permission
// and deactivates previously configured keys, so rotating the environment
// variable revokes the old key.
func SeedAdminKey(ctx context.Context, db *sql.DB, rawKey string) error {
	queries := New(db)

	key, err := queries.UpsertAPIKey(ctx, UpsertAPIKeyParams{
		Name:        AdminKeyName,
		KeyHash:     model.HashAPIKey(rawKey),
		KeyPrefix:   model.KeyPrefix(rawKey),
		Permissions: model.PermissionsToJSON(model.AllPermissions()),
		Now:         time.Now(),
	})
	if err != nil {
		return fmt.Errorf("storing admin api key: %w", err)
	}

	if err := queries.DeactivateAPIKeysExcept(ctx, key.ID); err != nil {
		return fmt.Errorf("revoking previous api keys: %w", err)
	}

	slog.Info("admin api key ready", "id", key.ID, "prefix", key.KeyPrefix)
	return nil
}
