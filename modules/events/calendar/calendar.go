// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// PathPrefix is the public URL prefix for calendars.
const PathPrefix = "/events"

// Calendar groups events and lists their sessions.
type Calendar struct {
	bun.BaseModel `bun:"table:event_calendars,alias:c"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	Title      string    `bun:"title,notnull" json:"title"`
	URLSegment string    `bun:"url_segment,notnull,unique" json:"url_segment"`
	Content    string    `bun:"content,notnull" json:"content"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Events []*Event `bun:"rel:has-many,join:id=calendar_id" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Calendar)(nil)

// BeforeAppendModel stamps the update time.
func (c *Calendar) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Link returns the public URL of the calendar.
func (c *Calendar) Link() string {
	return PathPrefix + "/" + c.URLSegment
}

// AttachEvents sets the child events and points each back at the calendar.
func (c *Calendar) AttachEvents(events []*Event) {
	for _, e := range events {
		e.Calendar = c
	}
	c.Events = events
}

// AllEvents returns the direct child events ordered by sort order, then title.
func (c *Calendar) AllEvents() []*Event {
	events := slices.Clone(c.Events)
	slices.SortStableFunc(events, func(a, b *Event) int {
		if n := cmp.Compare(a.SortOrder, b.SortOrder); n != 0 {
			return n
		}
		return strings.Compare(a.Title, b.Title)
	})
	return events
}

// sessions gathers the sessions of every child event.
func (c *Calendar) sessions() []*Session {
	var all []*Session
	for _, e := range c.Events {
		all = append(all, e.Sessions...)
	}
	return all
}

// CurrentEventSessions returns enabled sessions of any child event running
// at now. A calendar without events yields an empty list.
func (c *Calendar) CurrentEventSessions(now time.Time) []*Session {
	return Current(c.sessions(), now, 0)
}

// UpcomingEventSessions returns enabled sessions of any child event opening
// at or after now.
func (c *Calendar) UpcomingEventSessions(now time.Time) []*Session {
	return Upcoming(c.sessions(), now, 0)
}

// ListItems is what a calendar page lists: the sessions running now.
func (c *Calendar) ListItems(now time.Time) []*Session {
	return c.CurrentEventSessions(now)
}
