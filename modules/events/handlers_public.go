// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-events/internal/handler/api"
	"github.com/olegiv/ocms-events/internal/i18n"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/seo"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

func (m *Module) presenter(r *http.Request) presenter {
	return presenter{f: m.formatter, lang: middleware.GetLanguage(r), now: m.now()}
}

// siteURL returns the configured public base URL, or one derived from the
// request.
func (m *Module) siteURL(r *http.Request) string {
	if m.ctx.Config != nil && m.ctx.Config.SiteURL != "" {
		return m.ctx.Config.SiteURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (m *Module) notFound(w http.ResponseWriter, r *http.Request, key string) {
	api.WriteNotFound(w, i18n.T(middleware.GetLanguage(r), key))
}

func (m *Module) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	m.ctx.Logger.Error(msg, "error", err, "path", r.URL.Path)
	api.WriteInternalError(w, i18n.T(middleware.GetLanguage(r), "events.error.internal"))
}

// loadCalendar resolves the {calendar} parameter and writes the error
// response when it cannot.
func (m *Module) loadCalendar(w http.ResponseWriter, r *http.Request) *calendar.Calendar {
	cal, err := m.repo.LoadCalendar(r.Context(), chi.URLParam(r, "calendar"))
	if err != nil {
		if isNotFound(err) {
			m.notFound(w, r, "events.error.calendar_not_found")
		} else {
			m.internalError(w, r, "failed to load calendar", err)
		}
		return nil
	}
	return cal
}

// loadEvent resolves the {calendar} and {event} parameters.
func (m *Module) loadEvent(w http.ResponseWriter, r *http.Request) *calendar.Event {
	cal, err := m.repo.GetCalendarBySegment(r.Context(), chi.URLParam(r, "calendar"))
	if err != nil {
		if isNotFound(err) {
			m.notFound(w, r, "events.error.calendar_not_found")
		} else {
			m.internalError(w, r, "failed to load calendar", err)
		}
		return nil
	}

	event, err := m.repo.GetEventBySegment(r.Context(), cal, chi.URLParam(r, "event"))
	if err != nil {
		if isNotFound(err) {
			m.notFound(w, r, "events.error.event_not_found")
		} else {
			m.internalError(w, r, "failed to load event", err)
		}
		return nil
	}
	return event
}

// handleFeatured handles GET /events/featured.
func (m *Module) handleFeatured(w http.ResponseWriter, r *http.Request) {
	items, err := m.FeaturedEvents(r.Context())
	if err != nil {
		m.internalError(w, r, "failed to load featured events", err)
		return
	}
	api.WriteSuccess(w, items, &api.Meta{Total: int64(len(items))})
}

// handleCalendar handles GET /events/{calendar}.
func (m *Module) handleCalendar(w http.ResponseWriter, r *http.Request) {
	cal := m.loadCalendar(w, r)
	if cal == nil {
		return
	}
	view, err := m.presenter(r).calendar(cal)
	if err != nil {
		m.internalError(w, r, "failed to render calendar", err)
		return
	}
	api.WriteSuccess(w, view, nil)
}

// handleFeed handles GET /events/{calendar}/feed.ics.
func (m *Module) handleFeed(w http.ResponseWriter, r *http.Request) {
	cal := m.loadCalendar(w, r)
	if cal == nil {
		return
	}

	now := m.now()
	body := BuildFeed(cal, FeedSessions(cal, now, m.feedHorizon), m.siteURL(r), now)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+cal.URLSegment+`.ics"`)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleEvent handles GET /events/{calendar}/{event}.
func (m *Module) handleEvent(w http.ResponseWriter, r *http.Request) {
	event := m.loadEvent(w, r)
	if event == nil {
		return
	}
	view, err := m.presenter(r).event(event)
	if err != nil {
		m.internalError(w, r, "failed to render event", err)
		return
	}
	api.WriteSuccess(w, view, nil)
}

// handleSession handles GET /events/{calendar}/{event}/{session}. Only
// enabled sessions are reachable.
func (m *Module) handleSession(w http.ResponseWriter, r *http.Request) {
	event := m.loadEvent(w, r)
	if event == nil {
		return
	}

	s := event.SessionByURLSegment(chi.URLParam(r, "session"))
	if s == nil {
		m.notFound(w, r, "events.error.session_not_found")
		return
	}

	p := m.presenter(r)
	api.WriteSuccess(w, SessionPage{
		Session:     p.session(s),
		Event:       p.eventSummary(event),
		Breadcrumbs: p.sessionBreadcrumbs(s),
	}, nil)
}

// handleSitemap handles GET /events/sitemap.xml.
func (m *Module) handleSitemap(w http.ResponseWriter, r *http.Request) {
	calendars, err := m.repo.ListCalendars(r.Context())
	if err != nil {
		m.internalError(w, r, "failed to list calendars", err)
		return
	}
	events, err := m.repo.ListSearchableEvents(r.Context())
	if err != nil {
		m.internalError(w, r, "failed to list events", err)
		return
	}

	data, err := BuildSitemap(m.siteURL(r), calendars, events)
	if err != nil {
		m.internalError(w, r, "failed to build sitemap", err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BuildSitemap lists calendars, the given events and their enabled sessions.
func BuildSitemap(siteURL string, calendars []*calendar.Calendar, events []*calendar.Event) ([]byte, error) {
	b := seo.NewSitemapBuilder(siteURL)
	for _, c := range calendars {
		b.AddCalendar(seo.SitemapEntry{Path: c.Link(), UpdatedAt: c.UpdatedAt})
	}
	for _, e := range events {
		if e.Calendar == nil {
			continue
		}
		b.AddEvent(seo.SitemapEntry{Path: e.Link(), UpdatedAt: e.UpdatedAt})
		for _, s := range e.EnabledSessions() {
			b.AddSession(seo.SitemapEntry{Path: s.Link(), UpdatedAt: s.UpdatedAt})
		}
	}
	return b.Build()
}
