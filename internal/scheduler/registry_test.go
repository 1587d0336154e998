// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/testutil"
)

func newTestRegistry(t *testing.T) (*Registry, *cron.Cron) {
	t.Helper()
	db := testutil.TestDB(t)
	c := cron.New()
	c.Start()
	t.Cleanup(func() { c.Stop() })
	return NewRegistry(db, testutil.TestLoggerSilent()), c
}

func TestRegister(t *testing.T) {
	registry, c := newTestRegistry(t)

	jobFunc := func() {}
	entryID, err := c.AddFunc("@every 1h", jobFunc)
	require.NoError(t, err)

	registry.Register("core", "test-job", "Test job description", "@every 1h", c, entryID, jobFunc, nil)

	jobs := registry.List()
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, "core", job.Source)
	assert.Equal(t, "test-job", job.Name)
	assert.Equal(t, "@every 1h", job.Schedule)
	assert.False(t, job.IsOverridden)
	assert.False(t, job.CanTrigger)
	assert.False(t, job.NextRun.IsZero())
}

func TestListSorted(t *testing.T) {
	registry, c := newTestRegistry(t)
	for _, k := range [][2]string{{"events", "b"}, {"core", "z"}, {"events", "a"}} {
		id, err := c.AddFunc("@every 1h", func() {})
		require.NoError(t, err)
		registry.Register(k[0], k[1], "", "@every 1h", c, id, func() {}, nil)
	}

	jobs := registry.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, "core:z", jobs[0].Source+":"+jobs[0].Name)
	assert.Equal(t, "events:a", jobs[1].Source+":"+jobs[1].Name)
	assert.Equal(t, "events:b", jobs[2].Source+":"+jobs[2].Name)
}

func TestUpdateAndResetSchedule(t *testing.T) {
	registry, c := newTestRegistry(t)

	jobFunc := func() {}
	entryID, err := c.AddFunc("@every 1h", jobFunc)
	require.NoError(t, err)
	registry.Register("core", "test-job", "Test job", "@every 1h", c, entryID, jobFunc, nil)

	require.NoError(t, registry.UpdateSchedule("core", "test-job", "@every 30m"))

	jobs := registry.List()
	assert.Equal(t, "@every 30m", jobs[0].Schedule)
	assert.True(t, jobs[0].IsOverridden)
	assert.Equal(t, "@every 30m", registry.GetEffectiveSchedule("core", "test-job", "@every 1h"))

	require.NoError(t, registry.ResetSchedule("core", "test-job"))
	jobs = registry.List()
	assert.Equal(t, "@every 1h", jobs[0].Schedule)
	assert.False(t, jobs[0].IsOverridden)
	assert.Equal(t, "@every 1h", registry.GetEffectiveSchedule("core", "test-job", "@every 1h"))
}

func TestUpdateScheduleInvalid(t *testing.T) {
	registry, c := newTestRegistry(t)
	id, err := c.AddFunc("@every 1h", func() {})
	require.NoError(t, err)
	registry.Register("core", "job", "", "@every 1h", c, id, func() {}, nil)

	assert.Error(t, registry.UpdateSchedule("core", "job", "not a cron"))
	assert.Error(t, registry.UpdateSchedule("core", "missing", "@every 1m"))
	assert.Equal(t, "@every 1h", registry.List()[0].Schedule)
}

func TestOverrideAppliedOnRegister(t *testing.T) {
	registry, c := newTestRegistry(t)
	require.NoError(t, registry.queries.UpsertSchedulerOverride(context.Background(), store.UpsertSchedulerOverrideParams{
		Source: "events", Name: "featured_refresh", OverrideSchedule: "*/5 * * * *",
	}))

	assert.Equal(t, "*/5 * * * *", registry.GetEffectiveSchedule("events", "featured_refresh", "0 * * * *"))

	id, err := c.AddFunc("*/5 * * * *", func() {})
	require.NoError(t, err)
	registry.Register("events", "featured_refresh", "", "0 * * * *", c, id, func() {}, nil)
	assert.True(t, registry.List()[0].IsOverridden)
}

func TestTriggerNow(t *testing.T) {
	registry, c := newTestRegistry(t)

	var calls atomic.Int32
	id, err := c.AddFunc("@every 1h", func() {})
	require.NoError(t, err)
	registry.Register("core", "manual", "", "@every 1h", c, id, func() {}, func() error {
		calls.Add(1)
		return nil
	})
	registry.Register("core", "auto", "", "@every 1h", c, id, func() {}, nil)

	require.NoError(t, registry.TriggerNow("core", "manual"))
	assert.Equal(t, int32(1), calls.Load())
	assert.Error(t, registry.TriggerNow("core", "auto"))
	assert.Error(t, registry.TriggerNow("core", "unknown"))
}

func TestUnregister(t *testing.T) {
	registry, c := newTestRegistry(t)
	id, err := c.AddFunc("@every 1h", func() {})
	require.NoError(t, err)
	registry.Register("core", "job", "", "@every 1h", c, id, func() {}, nil)

	registry.Unregister("core", "job")
	assert.Empty(t, registry.List())
	assert.Empty(t, c.Entries())
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 * * * *"))
	assert.NoError(t, ValidateSchedule("@hourly"))
	assert.Error(t, ValidateSchedule("* * *"))
}

func TestCleanupAuditLog(t *testing.T) {
	db := testutil.TestDB(t)
	q := store.New(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, age := range []int{1, 29, 31, 90} {
		_, err := q.CreateAuditEntry(ctx, store.CreateAuditEntryParams{
			Level: "warning", Category: "system", Message: "m", Metadata: "{}",
			CreatedAt: now.AddDate(0, 0, -age),
		})
		require.NoError(t, err)
	}

	s := New(db, NewRegistry(db, testutil.TestLoggerSilent()), testutil.TestLoggerSilent())
	n, err := s.CleanupAuditLog(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := q.ListAuditEntries(ctx, store.ListAuditEntriesParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestSchedulerStartRegistersCleanup(t *testing.T) {
	db := testutil.TestDB(t)
	registry := NewRegistry(db, testutil.TestLoggerSilent())
	s := New(db, registry, testutil.TestLoggerSilent())
	require.NoError(t, s.Start())
	defer s.Stop()

	jobs := registry.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, "core", jobs[0].Source)
	assert.Equal(t, "audit_cleanup", jobs[0].Name)
	assert.True(t, jobs[0].CanTrigger)
}
