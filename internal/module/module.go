// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package module provides the module system. Modules register routes,
// admin routes, template functions, hooks and migrations to integrate
// with the host application.
package module

import (
	"database/sql"
	"embed"
	"html/template"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/config"
	"github.com/olegiv/ocms-events/internal/notify"
	"github.com/olegiv/ocms-events/internal/scheduler"
	"github.com/olegiv/ocms-events/internal/store"
)

// Context provides access to application services for modules.
type Context struct {
	DB                *sql.DB
	Store             *store.Queries
	Logger            *slog.Logger
	Config            *config.Config
	Cache             cache.Cacher
	Hooks             *HookRegistry
	SchedulerRegistry *scheduler.Registry
	Publisher         notify.Publisher
}

// Module defines the interface that all modules must implement.
type Module interface {
	// Name returns the module name.
	Name() string
	// Version returns the module version.
	Version() string
	// Description returns the module description.
	Description() string
	// Dependencies returns the list of module dependencies.
	Dependencies() []string

	// Init initializes the module with the given context.
	Init(ctx *Context) error
	// Shutdown performs cleanup when the module is shutting down.
	Shutdown() error

	// RegisterRoutes registers public routes for the module.
	RegisterRoutes(r chi.Router)

	// RegisterAdminRoutes registers admin routes for the module.
	RegisterAdminRoutes(r chi.Router)

	// TemplateFuncs returns template functions provided by the module.
	TemplateFuncs() template.FuncMap

	// Migrations returns migrations for the module.
	Migrations() []Migration

	// TranslationsFS returns an embedded filesystem containing module translations.
	// Expected structure: locales/{lang}/messages.json
	TranslationsFS() embed.FS
}

// Migration represents a database migration for a module.
type Migration struct {
	Version     int64
	Description string
	Up          func(db *sql.DB) error
	Down        func(db *sql.DB) error
}

// BaseModule provides default no-op implementations of the Module interface.
type BaseModule struct {
	name        string
	version     string
	description string
	ctx         *Context
}

// NewBaseModule creates a new BaseModule with the given metadata.
func NewBaseModule(name, version, description string) BaseModule {
	return BaseModule{
		name:        name,
		version:     version,
		description: description,
	}
}

// Name returns the module name.
func (m *BaseModule) Name() string { return m.name }

// Version returns the module version.
func (m *BaseModule) Version() string { return m.version }

// Description returns the module description.
func (m *BaseModule) Description() string { return m.description }

// Dependencies returns the list of module dependencies (empty by default).
func (m *BaseModule) Dependencies() []string { return nil }

// Init stores the context.
func (m *BaseModule) Init(ctx *Context) error {
	m.ctx = ctx
	return nil
}

// Shutdown performs cleanup when the module is shutting down.
func (m *BaseModule) Shutdown() error { return nil }

// RegisterRoutes registers public routes (no-op by default).
func (m *BaseModule) RegisterRoutes(_ chi.Router) {}

// RegisterAdminRoutes registers admin routes (no-op by default).
func (m *BaseModule) RegisterAdminRoutes(_ chi.Router) {}

// TemplateFuncs returns template functions (empty by default).
func (m *BaseModule) TemplateFuncs() template.FuncMap { return nil }

// Migrations returns module migrations (empty by default).
func (m *BaseModule) Migrations() []Migration { return nil }

// TranslationsFS returns an empty filesystem.
func (m *BaseModule) TranslationsFS() embed.FS { return embed.FS{} }

// Context returns the module context.
func (m *BaseModule) Context() *Context { return m.ctx }
