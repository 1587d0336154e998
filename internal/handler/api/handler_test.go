// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/model"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/scheduler"
	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/testutil"
	"github.com/olegiv/ocms-events/internal/version"
)

const (
	adminKey  = "admin-key-for-handler-tests"
	readerKey = "reader-key-for-handler-tests"
)

type testServer struct {
	router    http.Handler
	db        *sql.DB
	modules   *module.Registry
	scheduler *scheduler.Registry
	triggered chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.TestDB(t)
	logger := testutil.TestLoggerSilent()
	ctx := context.Background()

	require.NoError(t, store.SeedAdminKey(ctx, db, adminKey))
	_, err := store.New(db).UpsertAPIKey(ctx, store.UpsertAPIKeyParams{
		Name:        "reader",
		KeyHash:     model.HashAPIKey(readerKey),
		KeyPrefix:   model.KeyPrefix(readerKey),
		Permissions: model.PermissionsToJSON([]string{model.PermissionEventsRead}),
		Now:         time.Now(),
	})
	require.NoError(t, err)

	hooks := module.NewHookRegistry(logger)
	hooks.Register(module.HookEventsAfterSave, module.HookHandler{Name: "invalidate", Module: "events",
		Fn: func(_ context.Context, data any) (any, error) { return data, nil }})

	modules := module.NewRegistry(logger)
	base := module.NewBaseModule("events", "1.0.0", "Event calendars")
	require.NoError(t, modules.Register(&base))
	require.NoError(t, modules.InitAll(&module.Context{DB: db, Logger: logger, Hooks: hooks}))

	sched := scheduler.NewRegistry(db, logger)
	triggered := make(chan struct{}, 1)
	c := cron.New()
	run := func() { triggered <- struct{}{} }
	entryID, err := c.AddFunc("@daily", run)
	require.NoError(t, err)
	sched.Register("events", "featured_refresh", "Refresh featured events", "@daily", c, entryID, run,
		func() error { run(); return nil })

	memCache := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = memCache.Close() })

	h := NewHandler(Deps{
		DB:        db,
		Modules:   modules,
		Hooks:     hooks,
		Scheduler: sched,
		Cache:     memCache,
		Version:   version.Info{Version: "1.2.3"},
	})

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(db))
		h.Routes(r)
	})

	return &testServer{router: r, db: db, modules: modules, scheduler: sched, triggered: triggered}
}

func (s *testServer) do(t *testing.T, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T     `json:"data"`
		Meta *Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Database)
	assert.Equal(t, "1.2.3", status.Version)

	require.NoError(t, s.db.Close())
	rec = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthInfo(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/auth", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/auth", "wrong-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/auth", readerKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeData[map[string]any](t, rec)
	assert.Equal(t, "reader", info["name"])
	assert.Equal(t, model.KeyPrefix(readerKey), info["key_prefix"])
	assert.Equal(t, []any{model.PermissionEventsRead}, info["permissions"])
}

func TestAuditLog(t *testing.T) {
	s := newTestServer(t)
	q := store.New(s.db)
	for _, msg := range []string{"first", "second", "third"} {
		_, err := q.CreateAuditEntry(context.Background(), store.CreateAuditEntryParams{
			Level:     "INFO",
			Category:  "events",
			Message:   msg,
			Metadata:  "{}",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	rec := s.do(t, http.MethodGet, "/admin/audit", readerKey, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/audit?per_page=2", adminKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeData[[]AuditEntry](t, rec)
	require.Len(t, entries, 2)

	rec = s.do(t, http.MethodGet, "/admin/audit?per_page=2&page=2", adminKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]AuditEntry](t, rec), 1)
}

func TestModulesAndSetActive(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/modules", readerKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decodeData[[]module.Info](t, rec)
	require.Len(t, infos, 1)
	assert.Equal(t, "events", infos[0].Name)
	assert.True(t, infos[0].Active)

	rec = s.do(t, http.MethodPut, "/admin/modules/events", readerKey, `{"active":false}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/modules/events", adminKey, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errDetail := decodeError(t, rec)
	assert.Equal(t, "validation_failed", errDetail.Code)
	assert.Contains(t, errDetail.Details, "active")

	rec = s.do(t, http.MethodPut, "/admin/modules/events", adminKey, `{"active":false,"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/modules/missing", adminKey, `{"active":false}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/modules/events", adminKey, `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeData[module.Info](t, rec).Active)
	assert.False(t, s.modules.IsActive("events"))
}

func TestHooks(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/hooks", readerKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	hooks := decodeData[[]module.HookInfo](t, rec)
	require.Len(t, hooks, 1)
	assert.Equal(t, module.HookEventsAfterSave, hooks[0].Name)
	assert.Equal(t, "invalidate", hooks[0].Handlers[0].Name)
}

func TestCacheStats(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/cache", readerKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeData[cache.Stats](t, rec)
	assert.Equal(t, "memory", stats.Backend)
}

func TestJobsAndTrigger(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/scheduler", readerKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decodeData[[]scheduler.JobInfo](t, rec)
	require.Len(t, jobs, 1)
	assert.Equal(t, "featured_refresh", jobs[0].Name)

	rec = s.do(t, http.MethodPost, "/admin/scheduler/events/featured_refresh/run", readerKey, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/scheduler/events/missing/run", adminKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/scheduler/events/featured_refresh/run", adminKey, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case <-s.triggered:
	default:
		t.Fatal("job was not triggered")
	}
}
