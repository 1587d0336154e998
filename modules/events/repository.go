// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/olegiv/ocms-events/internal/util"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

// Repository persists event records through bun. A repository returned to
// a RunInTx callback works on that transaction.
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

// NewRepository creates a repository over db.
func NewRepository(db *bun.DB, now func() time.Time) *Repository {
	if now == nil {
		now = time.Now
	}
	return &Repository{db: db, now: now}
}

// RunInTx calls fn with a repository bound to one transaction, committing
// when fn returns nil. Inside a transaction fn joins the outer one.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	if _, ok := r.db.(bun.Tx); ok {
		return fn(ctx, r)
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repository{db: tx, now: r.now})
	})
}

func (r *Repository) stamp(createdAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = r.now().UTC()
	}
}

// segmentFor slugifies want, or fallback when want is empty, and makes the
// result unique with taken.
func segmentFor(ctx context.Context, want, fallback, record string, taken func(context.Context, string) (bool, error)) (string, error) {
	base := util.Slugify(want)
	if base == "" {
		base = util.Slugify(fallback)
	}
	if base == "" {
		base = record
	}

	var lookupErr error
	seg := calendar.UniqueSegment(base, func(s string) bool {
		if lookupErr != nil {
			return false
		}
		exists, err := taken(ctx, s)
		if err != nil {
			lookupErr = err
			return false
		}
		return exists
	})
	if lookupErr != nil {
		return "", fmt.Errorf("checking %s url segment: %w", record, lookupErr)
	}
	return seg, nil
}

// likePattern builds a LIKE pattern matching s anywhere.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

// --- Locations ---

// ListLocations returns locations ordered by name. A non-empty query keeps
// locations whose name contains it.
func (r *Repository) ListLocations(ctx context.Context, query string) ([]*calendar.Location, error) {
	locations := make([]*calendar.Location, 0)
	q := r.db.NewSelect().Model(&locations).OrderExpr("l.name ASC, l.id ASC")
	if query = strings.TrimSpace(query); query != "" {
		q = q.Where(`l.name LIKE ? ESCAPE '\'`, likePattern(query))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	return locations, nil
}

// GetLocation returns a location by id.
func (r *Repository) GetLocation(ctx context.Context, id int64) (*calendar.Location, error) {
	loc := new(calendar.Location)
	if err := r.db.NewSelect().Model(loc).Where("l.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return loc, nil
}

// CreateLocation inserts a location.
func (r *Repository) CreateLocation(ctx context.Context, loc *calendar.Location) error {
	r.stamp(&loc.CreatedAt)
	if _, err := r.db.NewInsert().Model(loc).Exec(ctx); err != nil {
		return fmt.Errorf("creating location: %w", err)
	}
	return nil
}

// UpdateLocation saves every column of a location.
func (r *Repository) UpdateLocation(ctx context.Context, loc *calendar.Location) error {
	return r.update(ctx, loc, loc.ID, "location")
}

// DeleteLocation removes a location. Events and sessions pointing at it
// lose the reference.
func (r *Repository) DeleteLocation(ctx context.Context, id int64) error {
	return r.delete(ctx, (*calendar.Location)(nil), id, "location")
}

// --- Calendars ---

// ListCalendars returns calendars ordered by title.
func (r *Repository) ListCalendars(ctx context.Context) ([]*calendar.Calendar, error) {
	calendars := make([]*calendar.Calendar, 0)
	if err := r.db.NewSelect().Model(&calendars).OrderExpr("c.title ASC, c.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	return calendars, nil
}

// CountCalendars returns the number of calendars.
func (r *Repository) CountCalendars(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*calendar.Calendar)(nil)).Count(ctx)
}

// GetCalendar returns a calendar by id without its events.
func (r *Repository) GetCalendar(ctx context.Context, id int64) (*calendar.Calendar, error) {
	cal := new(calendar.Calendar)
	if err := r.db.NewSelect().Model(cal).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return cal, nil
}

// GetCalendarBySegment returns a calendar by URL segment without its events.
func (r *Repository) GetCalendarBySegment(ctx context.Context, segment string) (*calendar.Calendar, error) {
	cal := new(calendar.Calendar)
	if err := r.db.NewSelect().Model(cal).Where("c.url_segment = ?", segment).Scan(ctx); err != nil {
		return nil, err
	}
	return cal, nil
}

// reservedCalendarSegments are public paths next to the calendars.
var reservedCalendarSegments = map[string]bool{"featured": true}

func (r *Repository) calendarSegmentTaken(id int64) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, seg string) (bool, error) {
		if reservedCalendarSegments[seg] {
			return true, nil
		}
		return r.db.NewSelect().Model((*calendar.Calendar)(nil)).
			Where("c.url_segment = ?", seg).
			Where("c.id != ?", id).
			Exists(ctx)
	}
}

// CreateCalendar inserts a calendar, deriving a unique URL segment.
func (r *Repository) CreateCalendar(ctx context.Context, cal *calendar.Calendar) error {
	seg, err := segmentFor(ctx, cal.URLSegment, cal.Title, calendar.RecordCalendar, r.calendarSegmentTaken(0))
	if err != nil {
		return err
	}
	cal.URLSegment = seg
	r.stamp(&cal.CreatedAt)
	if _, err := r.db.NewInsert().Model(cal).Exec(ctx); err != nil {
		return fmt.Errorf("creating calendar: %w", err)
	}
	return nil
}

// UpdateCalendar saves a calendar, keeping its URL segment unique.
func (r *Repository) UpdateCalendar(ctx context.Context, cal *calendar.Calendar) error {
	seg, err := segmentFor(ctx, cal.URLSegment, cal.Title, calendar.RecordCalendar, r.calendarSegmentTaken(cal.ID))
	if err != nil {
		return err
	}
	cal.URLSegment = seg
	return r.update(ctx, cal, cal.ID, "calendar")
}

// DeleteCalendar removes a calendar with its events and their sessions.
func (r *Repository) DeleteCalendar(ctx context.Context, id int64) error {
	return r.delete(ctx, (*calendar.Calendar)(nil), id, "calendar")
}

// LoadCalendar returns the calendar with the given URL segment together
// with its events, their locations and sessions.
func (r *Repository) LoadCalendar(ctx context.Context, segment string) (*calendar.Calendar, error) {
	cal, err := r.GetCalendarBySegment(ctx, segment)
	if err != nil {
		return nil, err
	}
	events, err := r.ListEvents(ctx, cal.ID)
	if err != nil {
		return nil, err
	}
	if err := r.attachSessions(ctx, events); err != nil {
		return nil, err
	}
	cal.AttachEvents(events)
	return cal, nil
}

// --- Events ---

func (r *Repository) eventQuery(events any) *bun.SelectQuery {
	return r.db.NewSelect().Model(events).
		Relation("Location").
		OrderExpr("e.sort_order ASC, e.title ASC, e.id ASC")
}

// ListEvents returns the events of a calendar with their default location.
func (r *Repository) ListEvents(ctx context.Context, calendarID int64) ([]*calendar.Event, error) {
	events := make([]*calendar.Event, 0)
	if err := r.eventQuery(&events).Where("e.calendar_id = ?", calendarID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// GetEvent returns an event by id with its calendar, location and sessions.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*calendar.Event, error) {
	event := new(calendar.Event)
	err := r.db.NewSelect().Model(event).
		Relation("Location").
		Relation("Calendar").
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.attachSessions(ctx, []*calendar.Event{event}); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEventBySegment returns an event of the calendar by URL segment, with
// its location and sessions.
func (r *Repository) GetEventBySegment(ctx context.Context, cal *calendar.Calendar, segment string) (*calendar.Event, error) {
	event := new(calendar.Event)
	err := r.db.NewSelect().Model(event).
		Relation("Location").
		Where("e.calendar_id = ?", cal.ID).
		Where("e.url_segment = ?", segment).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	event.Calendar = cal
	if err := r.attachSessions(ctx, []*calendar.Event{event}); err != nil {
		return nil, err
	}
	return event, nil
}

// ListFeaturedEvents returns featured events with their calendar, location
// and sessions.
func (r *Repository) ListFeaturedEvents(ctx context.Context) ([]*calendar.Event, error) {
	events := make([]*calendar.Event, 0)
	err := r.eventQuery(&events).
		Relation("Calendar").
		Where("e.featured = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing featured events: %w", err)
	}
	if err := r.attachSessions(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListSearchableEvents returns events shown in search with their calendar
// and sessions, for the sitemap.
func (r *Repository) ListSearchableEvents(ctx context.Context) ([]*calendar.Event, error) {
	events := make([]*calendar.Event, 0)
	err := r.eventQuery(&events).
		Relation("Calendar").
		Where("e.show_in_search = ?", true).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing searchable events: %w", err)
	}
	if err := r.attachSessions(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) eventSegmentTaken(calendarID, id int64) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, seg string) (bool, error) {
		return r.db.NewSelect().Model((*calendar.Event)(nil)).
			Where("e.calendar_id = ?", calendarID).
			Where("e.url_segment = ?", seg).
			Where("e.id != ?", id).
			Exists(ctx)
	}
}

// CreateEvent inserts an event, deriving a URL segment unique within its
// calendar.
func (r *Repository) CreateEvent(ctx context.Context, event *calendar.Event) error {
	seg, err := segmentFor(ctx, event.URLSegment, event.Title, calendar.RecordEvent, r.eventSegmentTaken(event.CalendarID, 0))
	if err != nil {
		return err
	}
	event.URLSegment = seg
	r.stamp(&event.CreatedAt)
	if _, err := r.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// UpdateEvent saves an event, keeping its URL segment unique.
func (r *Repository) UpdateEvent(ctx context.Context, event *calendar.Event) error {
	seg, err := segmentFor(ctx, event.URLSegment, event.Title, calendar.RecordEvent, r.eventSegmentTaken(event.CalendarID, event.ID))
	if err != nil {
		return err
	}
	event.URLSegment = seg
	return r.update(ctx, event, event.ID, "event")
}

// DeleteEvent removes an event and its sessions.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) error {
	return r.delete(ctx, (*calendar.Event)(nil), id, "event")
}

// --- Sessions ---

// attachSessions loads the sessions of events, with their own location,
// and attaches them. No query runs for an empty list.
func (r *Repository) attachSessions(ctx context.Context, events []*calendar.Event) error {
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}

	sessions := make([]*calendar.Session, 0)
	err := r.db.NewSelect().Model(&sessions).
		Relation("Location").
		Where("s.event_id IN (?)", bun.In(ids)).
		OrderExpr("s.start ASC, s.id ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}

	byEvent := make(map[int64][]*calendar.Session, len(events))
	for _, s := range sessions {
		byEvent[s.EventID] = append(byEvent[s.EventID], s)
	}
	for _, e := range events {
		e.AttachSessions(byEvent[e.ID])
	}
	return nil
}

// GetSession returns a session by id with its own location and its event
// with the event's location.
func (r *Repository) GetSession(ctx context.Context, id int64) (*calendar.Session, error) {
	s := new(calendar.Session)
	err := r.db.NewSelect().Model(s).
		Relation("Location").
		Relation("Event.Location").
		Where("s.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func sessionSegmentTaken(db bun.IDB, eventID, id int64) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, seg string) (bool, error) {
		return db.NewSelect().Model((*calendar.Session)(nil)).
			Where("s.event_id = ?", eventID).
			Where("s.url_segment = ?", seg).
			Where("s.id != ?", id).
			Exists(ctx)
	}
}

// CreateSession inserts a session. Without an explicit URL segment one is
// derived from the session title rendered with f.
func (r *Repository) CreateSession(ctx context.Context, s *calendar.Session, f calendar.Formatter) error {
	seg, err := segmentFor(ctx, s.URLSegment, s.Title(f), calendar.RecordSession, sessionSegmentTaken(r.db, s.EventID, 0))
	if err != nil {
		return err
	}
	s.URLSegment = seg
	r.stamp(&s.CreatedAt)
	if _, err := r.db.NewInsert().Model(s).Exec(ctx); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// CreateSessions inserts sessions in one transaction.
func (r *Repository) CreateSessions(ctx context.Context, sessions []*calendar.Session, f calendar.Formatter) error {
	return r.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		for _, s := range sessions {
			if err := tx.CreateSession(ctx, s, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSession saves a session, keeping its URL segment unique.
func (r *Repository) UpdateSession(ctx context.Context, s *calendar.Session, f calendar.Formatter) error {
	seg, err := segmentFor(ctx, s.URLSegment, s.Title(f), calendar.RecordSession, sessionSegmentTaken(r.db, s.EventID, s.ID))
	if err != nil {
		return err
	}
	s.URLSegment = seg
	return r.update(ctx, s, s.ID, "session")
}

// DeleteSession removes a session.
func (r *Repository) DeleteSession(ctx context.Context, id int64) error {
	return r.delete(ctx, (*calendar.Session)(nil), id, "session")
}

// --- shared ---

// update writes every column of model and reports sql.ErrNoRows when the
// row does not exist.
func (r *Repository) update(ctx context.Context, model any, id int64, record string) error {
	res, err := r.db.NewUpdate().Model(model).WherePK().ExcludeColumn("created_at").Exec(ctx)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", record, id, err)
	}
	return requireRow(res)
}

func (r *Repository) delete(ctx context.Context, model any, id int64, record string) error {
	res, err := r.db.NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", record, id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// isNotFound reports whether err means the record does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
