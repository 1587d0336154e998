// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Event is a named happening inside a calendar. Its schedule lives in its
// sessions.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	CalendarID   int64     `bun:"calendar_id,notnull" json:"calendar_id"`
	Title        string    `bun:"title,notnull" json:"title"`
	URLSegment   string    `bun:"url_segment,notnull" json:"url_segment"`
	Summary      string    `bun:"summary,notnull" json:"summary"`
	Content      string    `bun:"content,notnull" json:"content"`
	Featured     bool      `bun:"featured,notnull" json:"featured"`
	LocationID   int64     `bun:"location_id,nullzero" json:"location_id,omitempty"`
	ShowInSearch bool      `bun:"show_in_search,notnull" json:"show_in_search"`
	SortOrder    int       `bun:"sort_order,notnull" json:"sort_order"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Calendar *Calendar  `bun:"rel:belongs-to,join:calendar_id=id" json:"-"`
	Location *Location  `bun:"rel:belongs-to,join:location_id=id" json:"location,omitempty"`
	Sessions []*Session `bun:"rel:has-many,join:id=event_id" json:"-"`
}

var _ bun.BeforeAppendModelHook = (*Event)(nil)

// BeforeAppendModel stamps the update time.
func (e *Event) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		e.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Link returns the public URL of the event below its calendar.
func (e *Event) Link() string {
	if e.Calendar == nil {
		return ""
	}
	return e.Calendar.Link() + "/" + e.URLSegment
}

// AttachSessions sets the sessions of the event and points each of them
// back at it so location and link resolution work.
func (e *Event) AttachSessions(sessions []*Session) {
	for _, s := range sessions {
		s.Event = e
	}
	e.Sessions = sessions
}

// EnabledSessions returns the sessions that are not disabled, ordered by start.
func (e *Event) EnabledSessions() []*Session {
	return Enabled(e.Sessions)
}

// SessionByURLSegment finds an enabled session by its URL segment.
func (e *Event) SessionByURLSegment(segment string) *Session {
	if segment == "" {
		return nil
	}
	for _, s := range e.EnabledSessions() {
		if s.URLSegment == segment {
			return s
		}
	}
	return nil
}

// CurrentSessions returns enabled sessions running at now, capped at limit
// when limit is positive.
func (e *Event) CurrentSessions(now time.Time, limit int) []*Session {
	return Current(e.Sessions, now, limit)
}

// UpcomingSessions returns enabled sessions opening at or after now, capped
// at limit when limit is positive.
func (e *Event) UpcomingSessions(now time.Time, limit int) []*Session {
	return Upcoming(e.Sessions, now, limit)
}

// HasUpcomingSession reports whether any enabled session is still to come.
func (e *Event) HasUpcomingSession(now time.Time) bool {
	return len(e.UpcomingSessions(now, 1)) > 0
}

// CurrentSession returns the first session running at now.
func (e *Event) CurrentSession(now time.Time) *Session {
	return first(e.CurrentSessions(now, 1))
}

// NextSession returns the first session still to come.
func (e *Event) NextSession(now time.Time) *Session {
	return first(e.UpcomingSessions(now, 1))
}

// StartOfNextSession returns the start of the next session.
func (e *Event) StartOfNextSession(now time.Time) (time.Time, bool) {
	if s := e.NextSession(now); s != nil {
		return s.Start, true
	}
	return time.Time{}, false
}

// CurrentOrUpcomingSession prefers a running session over the next one.
func (e *Event) CurrentOrUpcomingSession(now time.Time) *Session {
	if s := e.CurrentSession(now); s != nil {
		return s
	}
	return e.NextSession(now)
}

// CurrentOrUpcomingSessionTitle is the title of CurrentOrUpcomingSession.
func (e *Event) CurrentOrUpcomingSessionTitle(now time.Time, f Formatter) (string, bool) {
	if s := e.CurrentOrUpcomingSession(now); s != nil {
		return s.Title(f), true
	}
	return "", false
}

// CurrentOrUpcomingStart is the start of CurrentOrUpcomingSession.
func (e *Event) CurrentOrUpcomingStart(now time.Time) (time.Time, bool) {
	if s := e.CurrentOrUpcomingSession(now); s != nil {
		return s.Start, true
	}
	return time.Time{}, false
}

func first(sessions []*Session) *Session {
	if len(sessions) == 0 {
		return nil
	}
	return sessions[0]
}
