// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// Session is one scheduled occurrence of an event.
type Session struct {
	bun.BaseModel `bun:"table:event_sessions,alias:s"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID     int64     `bun:"event_id,notnull" json:"event_id"`
	LocationID  int64     `bun:"location_id,nullzero" json:"location_id,omitempty"`
	URLSegment  string    `bun:"url_segment,notnull" json:"url_segment"`
	Start       time.Time `bun:"start,notnull" json:"start"`
	Finish      time.Time `bun:"finish,notnull" json:"finish"`
	IgnoreTimes bool      `bun:"ignore_times,notnull" json:"ignore_times"`
	Disabled    bool      `bun:"disabled,notnull" json:"disabled"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`

	Event    *Event    `bun:"rel:belongs-to,join:event_id=id" json:"-"`
	Location *Location `bun:"rel:belongs-to,join:location_id=id" json:"location,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Session)(nil)

// BeforeAppendModel stores times in UTC.
func (s *Session) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		s.Start = s.Start.UTC()
		s.Finish = s.Finish.UTC()
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// NewSession returns a session for the event with the creation defaults:
// it starts at the top of the hour after now and lasts one hour.
func NewSession(eventID int64, now time.Time) *Session {
	next := now.Add(time.Hour)
	start := time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 0, 0, 0, next.Location())
	return &Session{
		EventID: eventID,
		Start:   start,
		Finish:  start.Add(time.Hour),
	}
}

// Span returns the presentation span of the session.
func (s *Session) Span() Span {
	return Span{Start: s.Start, Finish: s.Finish, IgnoreTimes: s.IgnoreTimes}
}

// Window returns the instants between which the session counts as running.
// Sessions that ignore times cover their first and last days completely,
// measured in now's time zone.
func (s *Session) Window(now time.Time) (from, to time.Time) {
	if !s.IgnoreTimes {
		return s.Start, s.Finish
	}
	loc := now.Location()
	return StartOfDay(s.Start.In(loc)), EndOfDay(s.Finish.In(loc))
}

// IsCurrent reports whether now falls inside the session window.
func (s *Session) IsCurrent(now time.Time) bool {
	from, to := s.Window(now)
	return !from.After(now) && !to.Before(now)
}

// IsUpcoming reports whether the session window opens at or after now.
func (s *Session) IsUpcoming(now time.Time) bool {
	from, _ := s.Window(now)
	return !from.Before(now)
}

// ShowTimes reports whether times of day are part of the presentation.
func (s *Session) ShowTimes() bool {
	return !s.IgnoreTimes
}

// DateAndTime renders the session's date range with f.
func (s *Session) DateAndTime(f Formatter) string {
	return f.DateAndTime(s.Span())
}

// Title is the label of the session, its date range.
func (s *Session) Title(f Formatter) string {
	return s.DateAndTime(f)
}

// DateTitleKey returns the translation key of the heading shown above the
// session date: "Date" when times are ignored, otherwise "Date & Time".
func (s *Session) DateTitleKey() string {
	if s.IgnoreTimes {
		return "events.label.date"
	}
	return "events.label.date_and_time"
}

// ResolvedLocation returns the session's own location when one is set and
// loaded, else the location of the parent event.
func (s *Session) ResolvedLocation() *Location {
	if s.LocationID != 0 && s.Location != nil && s.Location.ID != 0 {
		return s.Location
	}
	if s.Event != nil && s.Event.LocationID != 0 && s.Event.Location != nil {
		return s.Event.Location
	}
	return nil
}

// LocationName returns the name of the resolved location, if any.
func (s *Session) LocationName() string {
	if loc := s.ResolvedLocation(); loc != nil {
		return loc.Name
	}
	return ""
}

// LocationNameAndAddress returns the HTML name and address of the resolved
// location, if any.
func (s *Session) LocationNameAndAddress() string {
	if loc := s.ResolvedLocation(); loc != nil {
		return loc.NameAndAddress()
	}
	return ""
}

// Link returns the public URL of the session below its event.
func (s *Session) Link() string {
	if s.Event == nil {
		return ""
	}
	base := s.Event.Link()
	if base == "" {
		return ""
	}
	return base + "/" + s.URLSegment
}

// compareSessions orders sessions by start, then by id.
func compareSessions(a, b *Session) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortSessions sorts sessions by start, then by id.
func SortSessions(sessions []*Session) {
	slices.SortStableFunc(sessions, compareSessions)
}

// Enabled returns the sessions that are not disabled, sorted by start.
func Enabled(sessions []*Session) []*Session {
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s != nil && !s.Disabled {
			out = append(out, s)
		}
	}
	SortSessions(out)
	return out
}

// Current filters enabled sessions running at now, keeping at most limit of
// them. A limit of zero or less keeps all.
func Current(sessions []*Session, now time.Time, limit int) []*Session {
	return filterLimit(Enabled(sessions), limit, func(s *Session) bool { return s.IsCurrent(now) })
}

// Upcoming filters enabled sessions that open at or after now, keeping at
// most limit of them. A limit of zero or less keeps all.
func Upcoming(sessions []*Session, now time.Time, limit int) []*Session {
	return filterLimit(Enabled(sessions), limit, func(s *Session) bool { return s.IsUpcoming(now) })
}

func filterLimit(sessions []*Session, limit int, keep func(*Session) bool) []*Session {
	out := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if !keep(s) {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
