// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the host queries against a database or transaction.
type Queries struct {
	db DBTX
}

// New creates Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateAuditEntryParams holds the columns of a new audit entry.
type CreateAuditEntryParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

const createAuditEntry = `
INSERT INTO audit_log (level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, level, category, message, metadata, created_at`

// CreateAuditEntry inserts an audit entry.
func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error) {
	row := q.db.QueryRowContext(ctx, createAuditEntry,
		arg.Level, arg.Category, arg.Message, arg.Metadata, arg.CreatedAt)
	var e AuditEntry
	err := row.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt)
	return e, err
}

const listAuditEntries = `
SELECT id, level, category, message, metadata, created_at
FROM audit_log
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

// ListAuditEntriesParams pages through the audit log.
type ListAuditEntriesParams struct {
	Limit  int64
	Offset int64
}

// ListAuditEntries returns the newest audit entries first.
func (q *Queries) ListAuditEntries(ctx context.Context, arg ListAuditEntriesParams) ([]AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, listAuditEntries, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const deleteAuditEntriesBefore = `DELETE FROM audit_log WHERE created_at < ?`

// DeleteAuditEntriesBefore removes entries older than cutoff.
func (q *Queries) DeleteAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAuditEntriesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// APIKey is a stored API key row.
type APIKey struct {
	ID          int64
	Name        string
	KeyHash     string
	KeyPrefix   string
	Permissions string
	LastUsedAt  sql.NullTime
	ExpiresAt   sql.NullTime
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const apiKeyColumns = `id, name, key_hash, key_prefix, permissions, last_used_at, expires_at, is_active, created_at, updated_at`

func scanAPIKey(row interface{ Scan(...any) error }) (APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Permissions,
		&k.LastUsedAt, &k.ExpiresAt, &k.IsActive, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

// GetAPIKeyByHash looks up a key by the hash of its raw value.
func (q *Queries) GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	return scanAPIKey(q.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`, keyHash))
}

// UpsertAPIKeyParams holds the columns written by UpsertAPIKey.
type UpsertAPIKeyParams struct {
	Name        string
	KeyHash     string
	KeyPrefix   string
	Permissions string
	ExpiresAt   sql.NullTime
	Now         time.Time
}

const upsertAPIKey = `
INSERT INTO api_keys (name, key_hash, key_prefix, permissions, expires_at, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (key_hash) DO UPDATE SET
    name = excluded.name,
    permissions = excluded.permissions,
    expires_at = excluded.expires_at,
    is_active = 1,
    updated_at = excluded.updated_at
RETURNING ` + apiKeyColumns

// UpsertAPIKey creates a key or refreshes the one with the same hash.
func (q *Queries) UpsertAPIKey(ctx context.Context, arg UpsertAPIKeyParams) (APIKey, error) {
	return scanAPIKey(q.db.QueryRowContext(ctx, upsertAPIKey,
		arg.Name, arg.KeyHash, arg.KeyPrefix, arg.Permissions, arg.ExpiresAt, arg.Now, arg.Now))
}

// UpdateAPIKeyLastUsedParams records a key use.
type UpdateAPIKeyLastUsedParams struct {
	ID         int64
	LastUsedAt time.Time
}

// UpdateAPIKeyLastUsed stamps the last use of a key.
func (q *Queries) UpdateAPIKeyLastUsed(ctx context.Context, arg UpdateAPIKeyLastUsedParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, arg.LastUsedAt, arg.ID)
	return err
}

// DeactivateAPIKeysExcept disables every key except the one with keepID.
func (q *Queries) DeactivateAPIKeysExcept(ctx context.Context, keepID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id <> ? AND is_active = 1`, keepID)
	return err
}

// SchedulerOverrideKey identifies a scheduled job.
type SchedulerOverrideKey struct {
	Source string
	Name   string
}

const getSchedulerOverride = `
SELECT override_schedule FROM scheduler_overrides WHERE source = ? AND name = ?`

// GetSchedulerOverride returns the persisted cron expression for a job.
func (q *Queries) GetSchedulerOverride(ctx context.Context, arg SchedulerOverrideKey) (string, error) {
	var schedule string
	err := q.db.QueryRowContext(ctx, getSchedulerOverride, arg.Source, arg.Name).Scan(&schedule)
	return schedule, err
}

// UpsertSchedulerOverrideParams holds a job override.
type UpsertSchedulerOverrideParams struct {
	Source           string
	Name             string
	OverrideSchedule string
}

const upsertSchedulerOverride = `
INSERT INTO scheduler_overrides (source, name, override_schedule, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (source, name) DO UPDATE SET
    override_schedule = excluded.override_schedule,
    updated_at = CURRENT_TIMESTAMP`

// UpsertSchedulerOverride stores a schedule override.
func (q *Queries) UpsertSchedulerOverride(ctx context.Context, arg UpsertSchedulerOverrideParams) error {
	_, err := q.db.ExecContext(ctx, upsertSchedulerOverride, arg.Source, arg.Name, arg.OverrideSchedule)
	return err
}

const deleteSchedulerOverride = `
DELETE FROM scheduler_overrides WHERE source = ? AND name = ?`

// DeleteSchedulerOverride removes a schedule override.
func (q *Queries) DeleteSchedulerOverride(ctx context.Context, arg SchedulerOverrideKey) error {
	_, err := q.db.ExecContext(ctx, deleteSchedulerOverride, arg.Source, arg.Name)
	return err
}
