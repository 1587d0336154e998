// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-events/internal/store"
)

const (
	coreSource = "core"

	auditCleanupJob      = "audit_cleanup"
	auditCleanupSchedule = "0 3 * * *" // daily at 03:00

	// AuditRetentionDays is how long audit log entries are kept.
	AuditRetentionDays = 30
)

// Scheduler runs core housekeeping jobs.
type Scheduler struct {
	db       *sql.DB
	cron     *cron.Cron
	registry *Registry
	logger   *slog.Logger
}

// New creates a scheduler. registry may be nil.
func New(db *sql.DB, registry *Registry, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		cron:     cron.New(),
		registry: registry,
		logger:   logger,
	}
}

// Start registers the core jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	schedule := auditCleanupSchedule
	if s.registry != nil {
		schedule = s.registry.GetEffectiveSchedule(coreSource, auditCleanupJob, auditCleanupSchedule)
	}

	jobFunc := func() {
		if _, err := s.CleanupAuditLog(context.Background(), time.Now()); err != nil {
			s.logger.Error("failed to clean up audit log", "error", err)
		}
	}

	entryID, err := s.cron.AddFunc(schedule, jobFunc)
	if err != nil {
		return err
	}

	if s.registry != nil {
		s.registry.Register(
			coreSource, auditCleanupJob,
			"Delete audit log entries older than 30 days",
			auditCleanupSchedule,
			s.cron, entryID, jobFunc, func() error {
				go jobFunc()
				return nil
			},
		)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// CleanupAuditLog deletes audit entries older than the retention window
// relative to now and returns how many were removed.
func (s *Scheduler) CleanupAuditLog(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -AuditRetentionDays).UTC()
	n, err := store.New(s.db).DeleteAuditEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleaned up audit log", "deleted", n, "older_than", cutoff.Format(time.DateOnly))
	return n, nil
}
