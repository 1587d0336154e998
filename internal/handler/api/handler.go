// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/model"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/scheduler"
	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/version"
)

// Handler holds shared dependencies for the core API handlers.
type Handler struct {
	db        *sql.DB
	queries   *store.Queries
	modules   *module.Registry
	hooks     *module.HookRegistry
	scheduler *scheduler.Registry
	cache     cache.Cacher
	version   version.Info
	startTime time.Time
}

// Deps are the collaborators of Handler. Any field except DB may be nil.
type Deps struct {
	DB        *sql.DB
	Modules   *module.Registry
	Hooks     *module.HookRegistry
	Scheduler *scheduler.Registry
	Cache     cache.Cacher
	Version   version.Info
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		db:        d.DB,
		queries:   store.New(d.DB),
		modules:   d.Modules,
		hooks:     d.Hooks,
		scheduler: d.Scheduler,
		cache:     d.Cache,
		version:   d.Version,
		startTime: time.Now(),
	}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
}

// Health pings the database and reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
		Version:  h.version.String(),
	}
	code := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		status.Status = "degraded"
		status.Database = err.Error()
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// AuthInfo returns information about the authenticated API key.
func (h *Handler) AuthInfo(w http.ResponseWriter, r *http.Request) {
	key := middleware.GetAPIKey(r)
	if key == nil {
		WriteUnauthorized(w, "Not authenticated")
		return
	}

	type authInfoResponse struct {
		KeyPrefix   string   `json:"key_prefix"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	WriteSuccess(w, authInfoResponse{
		KeyPrefix:   key.KeyPrefix,
		Name:        key.Name,
		Permissions: key.GetPermissions(),
	}, nil)
}

// AuditEntry is the JSON form of an audit log row.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog lists audit entries, newest first. ?page= and ?per_page= page
// through the log.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	page := QueryInt(r, "page", 1, 0)
	perPage := QueryInt(r, "per_page", 50, 200)

	rows, err := h.queries.ListAuditEntries(r.Context(), store.ListAuditEntriesParams{
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	})
	if err != nil {
		WriteInternalError(w, "Failed to list audit log")
		return
	}

	out := make([]AuditEntry, len(rows))
	for i, e := range rows {
		out[i] = AuditEntry(e)
	}
	WriteSuccess(w, out, &Meta{Page: page, PerPage: perPage})
}

// Modules lists registered modules and their status.
func (h *Handler) Modules(w http.ResponseWriter, _ *http.Request) {
	if h.modules == nil {
		WriteSuccess(w, []module.Info{}, nil)
		return
	}
	WriteSuccess(w, h.modules.ListInfo(), nil)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetModuleActive enables or disables a module. Routes, hook handlers and
// template functions of a disabled module stop answering.
func (h *Handler) SetModuleActive(w http.ResponseWriter, r *http.Request) {
	if h.modules == nil {
		WriteNotFound(w, "Module registry unavailable")
		return
	}

	name := chi.URLParam(r, "name")
	if _, ok := h.modules.Get(name); !ok {
		WriteNotFound(w, "Module not found")
		return
	}

	var req setActiveRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteBadRequest(w, err.Error(), nil)
		return
	}
	if req.Active == nil {
		WriteValidationError(w, "Validation failed", map[string]string{"active": "is required"})
		return
	}

	if err := h.modules.SetActive(name, *req.Active); err != nil {
		WriteInternalError(w, "Failed to update module")
		return
	}

	for _, info := range h.modules.ListInfo() {
		if info.Name == name {
			WriteSuccess(w, info, nil)
			return
		}
	}
}

// Hooks lists registered hooks with their handlers in call order.
func (h *Handler) Hooks(w http.ResponseWriter, _ *http.Request) {
	if h.hooks == nil {
		WriteSuccess(w, []module.HookInfo{}, nil)
		return
	}
	WriteSuccess(w, h.hooks.ListHookInfo(), nil)
}

// CacheStats reports cache statistics when the backend exposes them.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	sp, ok := h.cache.(cache.StatsProvider)
	if !ok {
		WriteNotFound(w, "Cache statistics unavailable")
		return
	}
	WriteSuccess(w, sp.Stats(), nil)
}

// Jobs lists scheduled jobs.
func (h *Handler) Jobs(w http.ResponseWriter, _ *http.Request) {
	if h.scheduler == nil {
		WriteSuccess(w, []scheduler.JobInfo{}, nil)
		return
	}
	WriteSuccess(w, h.scheduler.List(), nil)
}

// TriggerJob runs a job now.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		WriteNotFound(w, "Scheduler unavailable")
		return
	}
	if err := h.scheduler.TriggerNow(chi.URLParam(r, "source"), chi.URLParam(r, "name")); err != nil {
		WriteNotFound(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, Response{Data: map[string]string{"status": "triggered"}})
}

// Routes mounts the core admin endpoints on r. Callers apply authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/auth", h.AuthInfo)
	r.Get("/modules", h.Modules)
	r.With(middleware.RequirePermission(model.PermissionEventsWrite)).Put("/modules/{name}", h.SetModuleActive)
	r.Get("/hooks", h.Hooks)
	r.Get("/cache", h.CacheStats)
	r.With(middleware.RequirePermission(model.PermissionAuditRead)).Get("/audit", h.AuditLog)
	r.Get("/scheduler", h.Jobs)
	r.With(middleware.RequirePermission(model.PermissionEventsWrite)).Post("/scheduler/{source}/{name}/run", h.TriggerJob)
}
