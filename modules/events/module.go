// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package events implements the event calendar module: locations,
// calendars, events and their sessions, with public JSON pages, an admin
// API, an iCalendar feed and a cached list of featured events.
package events

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/model"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

//go:embed locales
var localesFS embed.FS

// timeNow is a variable so it can be mocked in tests.
var timeNow = time.Now

// Module name and scheduler job identifiers.
const (
	ModuleName = "events"

	featuredJobName        = "featured_refresh"
	defaultFeaturedRefresh = "0 * * * *"
	defaultFeaturedTTL     = 15 * time.Minute
	defaultFeedHorizonDays = 365
)

// Module implements the event calendar module.
type Module struct {
	module.BaseModule
	ctx         *module.Context
	db          *bun.DB
	repo        *Repository
	formatter   calendar.Formatter
	featured    *cache.TypedCache[[]FeaturedItem]
	feedHorizon time.Duration
	cron        *cron.Cron
}

// New creates a new events module.
func New() *Module {
	return &Module{
		BaseModule: module.NewBaseModule(
			ModuleName,
			"1.0.0",
			"Event calendars with locations and scheduled sessions",
		),
	}
}

// Init initializes the module.
func (m *Module) Init(ctx *module.Context) error {
	m.ctx = ctx
	m.db = bun.NewDB(ctx.DB, sqlitedialect.New())
	m.repo = NewRepository(m.db, m.now)

	ttl := defaultFeaturedTTL
	horizonDays := defaultFeedHorizonDays
	if cfg := ctx.Config; cfg != nil {
		m.formatter = calendar.NewFormatter(cfg.EventsDateFormat, cfg.EventsTimeFormat, cfg.Location())
		if cfg.FeaturedTTL > 0 {
			ttl = cfg.FeaturedTTL
		}
		if cfg.FeedHorizonDays > 0 {
			horizonDays = cfg.FeedHorizonDays
		}
	}
	m.feedHorizon = time.Duration(horizonDays) * 24 * time.Hour

	if ctx.Cache == nil {
		ctx.Cache = cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: ttl})
	}
	m.featured = cache.NewTypedCache[[]FeaturedItem](ctx.Cache, ttl)

	if ctx.Hooks != nil {
		ctx.Hooks.Register(module.HookEventsAfterSave, module.HookHandler{
			Name:     "events.featured_invalidate",
			Module:   ModuleName,
			Priority: 100,
			Fn:       m.handleAfterSave,
		})
	}

	if cfg := ctx.Config; cfg != nil && cfg.EventsSeedFile != "" {
		if err := m.seedIfEmpty(context.Background(), cfg.EventsSeedFile); err != nil {
			return fmt.Errorf("seeding events: %w", err)
		}
	}

	m.cron = cron.New()
	m.scheduleFeaturedRefresh()
	m.cron.Start()

	ctx.Logger.Info("Events module initialized",
		"timezone", m.formatter.Location,
		"featured_ttl", ttl,
		"feed_horizon_days", horizonDays,
	)
	return nil
}

// Shutdown stops the refresh job.
func (m *Module) Shutdown() error {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.ctx != nil {
		if m.ctx.Hooks != nil {
			m.ctx.Hooks.UnregisterAll(ModuleName)
		}
		m.ctx.Logger.Info("Events module shutting down")
	}
	return nil
}

// now returns the current time in the configured time zone.
func (m *Module) now() time.Time {
	loc := m.formatter.Location
	if loc == nil {
		loc = time.UTC
	}
	return timeNow().In(loc)
}

// Repository returns the module's repository.
func (m *Module) Repository() *Repository {
	return m.repo
}

// Formatter returns the formatter used for session titles.
func (m *Module) Formatter() calendar.Formatter {
	return m.formatter
}

// RegisterRoutes registers the public pages.
func (m *Module) RegisterRoutes(r chi.Router) {
	r.Route(calendar.PathPrefix, func(r chi.Router) {
		r.Use(middleware.Language)
		r.Get("/featured", m.handleFeatured)
		r.Get("/sitemap.xml", m.handleSitemap)
		r.Get("/{calendar}", m.handleCalendar)
		r.Get("/{calendar}/feed.ics", m.handleFeed)
		r.Get("/{calendar}/{event}", m.handleEvent)
		r.Get("/{calendar}/{event}/{session}", m.handleSession)
	})
}

// RegisterAdminRoutes registers the admin API. Reads need events:read,
// writes need events:write.
func (m *Module) RegisterAdminRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Use(middleware.Language)
		r.Use(middleware.RequireWriteForMutations(model.PermissionEventsRead, model.PermissionEventsWrite))

		r.Get("/layouts/{record}", m.handleLayout)

		r.Get("/locations", m.handleListLocations)
		r.Post("/locations", m.handleCreateLocation)
		r.Get("/locations/{id}", m.handleGetLocation)
		r.Put("/locations/{id}", m.handleUpdateLocation)
		r.Delete("/locations/{id}", m.handleDeleteLocation)

		r.Get("/calendars", m.handleListCalendars)
		r.Post("/calendars", m.handleCreateCalendar)
		r.Get("/calendars/{id}", m.handleGetCalendar)
		r.Put("/calendars/{id}", m.handleUpdateCalendar)
		r.Delete("/calendars/{id}", m.handleDeleteCalendar)
		r.Get("/calendars/{id}/events", m.handleListEvents)
		r.Post("/calendars/{id}/events", m.handleCreateEvent)

		r.Get("/events/{id}", m.handleGetEvent)
		r.Put("/events/{id}", m.handleUpdateEvent)
		r.Delete("/events/{id}", m.handleDeleteEvent)
		r.Get("/events/{id}/sessions", m.handleListSessions)
		r.Get("/events/{id}/sessions/new", m.handleNewSession)
		r.Post("/events/{id}/sessions", m.handleCreateSession)
		r.Post("/events/{id}/sessions/recurring", m.handleCreateRecurringSessions)

		r.Get("/sessions/{id}", m.handleGetSession)
		r.Put("/sessions/{id}", m.handleUpdateSession)
		r.Delete("/sessions/{id}", m.handleDeleteSession)
	})
}

// TemplateFuncs returns template functions provided by the module.
func (m *Module) TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// featuredEvents lists featured events, soonest first.
		"featuredEvents": func() []FeaturedItem {
			items, err := m.FeaturedEvents(context.Background())
			if err != nil {
				m.ctx.Logger.Error("failed to load featured events", "error", err)
				return nil
			}
			return items
		},
		"eventSessionTitle": func(s *calendar.Session) string {
			if s == nil {
				return ""
			}
			return s.Title(m.formatter)
		},
	}
}

// TranslationsFS returns module translations.
func (m *Module) TranslationsFS() embed.FS {
	return localesFS
}
