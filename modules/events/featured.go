// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/notify"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

const featuredCacheKey = "events:featured"

// FeaturedItem is a featured event with its current or upcoming session.
// Items without such a session have an empty SessionTitle and no Start.
type FeaturedItem struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary,omitempty"`
	Link          string     `json:"link"`
	CalendarTitle string     `json:"calendar_title,omitempty"`
	SessionTitle  string     `json:"session_title,omitempty"`
	SessionLink   string     `json:"session_link,omitempty"`
	Start         *time.Time `json:"start,omitempty"`
	LocationName  string     `json:"location_name,omitempty"`
}

// FeaturedEvents returns the featured events, soonest first, from the
// cache when possible.
func (m *Module) FeaturedEvents(ctx context.Context) ([]FeaturedItem, error) {
	return m.featured.GetOrSet(ctx, featuredCacheKey, m.loadFeatured)
}

func (m *Module) loadFeatured(ctx context.Context) ([]FeaturedItem, error) {
	events, err := m.repo.ListFeaturedEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()

	sorted := calendar.Featured(events, now)
	items := make([]FeaturedItem, len(sorted))
	for i, e := range sorted {
		item := FeaturedItem{
			ID:      e.ID,
			Title:   e.Title,
			Summary: e.Summary,
			Link:    e.Link(),
		}
		if e.Calendar != nil {
			item.CalendarTitle = e.Calendar.Title
		}
		if s := e.CurrentOrUpcomingSession(now); s != nil {
			start := s.Start
			item.SessionTitle = s.Title(m.formatter)
			item.SessionLink = s.Link()
			item.Start = &start
			item.LocationName = s.LocationName()
		} else if e.Location != nil {
			item.LocationName = e.Location.Name
		}
		items[i] = item
	}
	return items, nil
}

// RefreshFeatured recomputes the featured list and stores it.
func (m *Module) RefreshFeatured(ctx context.Context) error {
	items, err := m.loadFeatured(ctx)
	if err != nil {
		return fmt.Errorf("loading featured events: %w", err)
	}
	if err := m.featured.Set(ctx, featuredCacheKey, items); err != nil {
		return fmt.Errorf("caching featured events: %w", err)
	}
	return nil
}

// scheduleFeaturedRefresh re-warms the featured cache so sessions that
// have finished drop off the list without a write.
func (m *Module) scheduleFeaturedRefresh() {
	defaultSchedule := defaultFeaturedRefresh
	if m.ctx.Config != nil && m.ctx.Config.FeaturedRefreshAt != "" {
		defaultSchedule = m.ctx.Config.FeaturedRefreshAt
	}

	schedule := defaultSchedule
	if m.ctx.SchedulerRegistry != nil {
		schedule = m.ctx.SchedulerRegistry.GetEffectiveSchedule(ModuleName, featuredJobName, defaultSchedule)
	}

	run := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return m.RefreshFeatured(ctx)
	}
	cronFunc := func() {
		if err := run(); err != nil {
			m.ctx.Logger.Error("featured refresh failed", "error", err)
		}
	}

	entryID, err := m.cron.AddFunc(schedule, cronFunc)
	if err != nil {
		m.ctx.Logger.Warn("failed to schedule featured refresh", "error", err, "schedule", schedule)
		return
	}

	if m.ctx.SchedulerRegistry != nil {
		m.ctx.SchedulerRegistry.Register(
			ModuleName, featuredJobName,
			"Refresh the cached list of featured events",
			defaultSchedule,
			m.cron, entryID, cronFunc, run,
		)
	}
}

// afterSave announces a write to the hook chain.
func (m *Module) afterSave(ctx context.Context, record string, id int64, action string) error {
	if m.ctx.Hooks == nil {
		return m.handleSaveEvent(ctx, &module.SaveEvent{Record: record, ID: id, Action: action})
	}
	return m.ctx.Hooks.CallNoResult(ctx, module.HookEventsAfterSave, &module.SaveEvent{
		Record: record,
		ID:     id,
		Action: action,
	})
}

// handleAfterSave is the module's own events.after_save handler.
func (m *Module) handleAfterSave(ctx context.Context, data any) (any, error) {
	ev, ok := data.(*module.SaveEvent)
	if !ok {
		return data, nil
	}
	return data, m.handleSaveEvent(ctx, ev)
}

// handleSaveEvent drops the featured list and publishes the change. A
// failed publish is logged, the write itself already happened.
func (m *Module) handleSaveEvent(ctx context.Context, ev *module.SaveEvent) error {
	if err := m.featured.Delete(ctx, featuredCacheKey); err != nil {
		return fmt.Errorf("invalidating featured events: %w", err)
	}

	if m.ctx.Publisher != nil {
		change := notify.NewChange(ev.Record, ev.ID, ev.Action, timeNow())
		if err := m.ctx.Publisher.Publish(ctx, change); err != nil {
			m.ctx.Logger.Warn("failed to publish change", "record", ev.Record, "id", ev.ID, "error", err)
		}
	}

	m.ctx.Logger.Info("event record saved",
		"category", "events",
		"record", ev.Record,
		"id", ev.ID,
		"action", ev.Action,
	)
	return nil
}
