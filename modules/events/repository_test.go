// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/ocms-events/internal/testutil"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

func TestRepository_CountryStoredLowercase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, code := range []string{"AU", "au", "Au"} {
		loc := env.location(t, "Venue "+code, code)

		got, err := env.m.repo.GetLocation(ctx, loc.ID)
		if err != nil {
			t.Fatalf("GetLocation: %v", err)
		}
		if got.Country != "au" {
			t.Errorf("country %q stored as %q, want %q", code, got.Country, "au")
		}
	}

	loc := env.location(t, "Updated", "nz")
	loc.Country = "NZ"
	if err := env.m.repo.UpdateLocation(ctx, loc); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	got, err := env.m.repo.GetLocation(ctx, loc.ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if got.Country != "nz" {
		t.Errorf("updated country = %q, want %q", got.Country, "nz")
	}
}

func TestRepository_ListLocations(t *testing.T) {
	env := newTestEnv(t)
	env.location(t, "Town Hall", "au")
	env.location(t, "Riverside Park", "au")
	env.location(t, "100% Arena", "")

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"100% Arena", "Riverside Park", "Town Hall"}},
		{"hall", []string{"Town Hall"}},
		{"%", []string{"100% Arena"}},
		{"_", nil},
		{"nowhere", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			locations, err := env.m.repo.ListLocations(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("ListLocations: %v", err)
			}
			if len(locations) != len(tt.want) {
				t.Fatalf("got %d locations, want %d", len(locations), len(tt.want))
			}
			for i, loc := range locations {
				if loc.Name != tt.want[i] {
					t.Errorf("locations[%d] = %q, want %q", i, loc.Name, tt.want[i])
				}
			}
		})
	}
}

func TestRepository_CalendarSegments(t *testing.T) {
	env := newTestEnv(t)

	first := env.calendar(t, "Community")
	second := env.calendar(t, "Community")
	featured := env.calendar(t, "Featured")

	if first.URLSegment != "community" {
		t.Errorf("first segment = %q, want community", first.URLSegment)
	}
	if second.URLSegment != "community-2" {
		t.Errorf("second segment = %q, want community-2", second.URLSegment)
	}
	if featured.URLSegment != "featured-2" {
		t.Errorf("reserved segment not avoided: got %q", featured.URLSegment)
	}

	// Saving a calendar keeps its own segment.
	if err := env.m.repo.UpdateCalendar(context.Background(), first); err != nil {
		t.Fatalf("UpdateCalendar: %v", err)
	}
	if first.URLSegment != "community" {
		t.Errorf("segment after update = %q, want community", first.URLSegment)
	}
}

func TestRepository_EventSegmentsPerCalendar(t *testing.T) {
	env := newTestEnv(t)
	music := env.calendar(t, "Music")
	film := env.calendar(t, "Film")

	a := env.event(t, music, "Opening Night", false)
	b := env.event(t, film, "Opening Night", false)
	c := env.event(t, music, "Opening Night", false)

	if a.URLSegment != "opening-night" || b.URLSegment != "opening-night" {
		t.Errorf("segments = %q, %q, want opening-night in both calendars", a.URLSegment, b.URLSegment)
	}
	if c.URLSegment != "opening-night-2" {
		t.Errorf("duplicate in one calendar = %q, want opening-night-2", c.URLSegment)
	}
}

func TestRepository_SessionSegmentFromTitle(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, env.calendar(t, "Talks"), "Keynote", false)

	start := testutil.Date(2026, time.March, 20, 10, 0)
	s1 := env.session(t, ev, start, time.Hour)
	s2 := env.session(t, ev, start, time.Hour)

	if s1.URLSegment != "fri-20-mar-2026-1000-am-1100-am" {
		t.Errorf("segment = %q", s1.URLSegment)
	}
	if s2.URLSegment != s1.URLSegment+"-2" {
		t.Errorf("second segment = %q, want %q", s2.URLSegment, s1.URLSegment+"-2")
	}
}

func TestRepository_LoadCalendarEmpty(t *testing.T) {
	env := newTestEnv(t)
	cal := env.calendar(t, "Empty")

	// Sessions of other calendars must not leak in.
	other := env.event(t, env.calendar(t, "Busy"), "Market", false)
	env.session(t, other, testNow.Add(-time.Hour), 3*time.Hour)

	loaded, err := env.m.repo.LoadCalendar(context.Background(), cal.URLSegment)
	if err != nil {
		t.Fatalf("LoadCalendar: %v", err)
	}
	if len(loaded.AllEvents()) != 0 {
		t.Errorf("AllEvents() = %d events, want 0", len(loaded.AllEvents()))
	}
	if got := loaded.CurrentEventSessions(testNow); len(got) != 0 {
		t.Errorf("CurrentEventSessions() = %d sessions, want 0", len(got))
	}
}

func TestRepository_LoadCalendarAttachesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cal := env.calendar(t, "Festival")
	hall := env.location(t, "Town Hall", "au")

	ev := &calendar.Event{CalendarID: cal.ID, Title: "Concert", LocationID: hall.ID}
	if err := env.m.repo.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	late := env.session(t, ev, testNow.Add(48*time.Hour), time.Hour)
	early := env.session(t, ev, testNow.Add(24*time.Hour), time.Hour)

	loaded, err := env.m.repo.LoadCalendar(ctx, "festival")
	if err != nil {
		t.Fatalf("LoadCalendar: %v", err)
	}
	events := loaded.AllEvents()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	sessions := events[0].Sessions
	if len(sessions) != 2 || sessions[0].ID != early.ID || sessions[1].ID != late.ID {
		t.Fatalf("sessions not ordered by start: %+v", sessions)
	}
	if got := sessions[0].LocationName(); got != "Town Hall" {
		t.Errorf("LocationName() = %q, want the event location", got)
	}
	want := "/events/festival/concert/" + early.URLSegment
	if got := sessions[0].Link(); got != want {
		t.Errorf("Link() = %q, want %q", got, want)
	}
	if !sessions[0].Start.Equal(early.Start) {
		t.Errorf("Start = %v, want %v", sessions[0].Start, early.Start)
	}
}

func TestRepository_DeleteCalendarCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cal := env.calendar(t, "Doomed")
	ev := env.event(t, cal, "Gig", false)
	s := env.session(t, ev, testNow, time.Hour)

	if err := env.m.repo.DeleteCalendar(ctx, cal.ID); err != nil {
		t.Fatalf("DeleteCalendar: %v", err)
	}
	if _, err := env.m.repo.GetEvent(ctx, ev.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetEvent after cascade: %v, want sql.ErrNoRows", err)
	}
	if _, err := env.m.repo.GetSession(ctx, s.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetSession after cascade: %v, want sql.ErrNoRows", err)
	}
}

func TestRepository_DeleteLocationClearsReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loc := env.location(t, "Old Hall", "")

	ev := &calendar.Event{CalendarID: env.calendar(t, "Misc").ID, Title: "Meeting", LocationID: loc.ID}
	if err := env.m.repo.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	s := &calendar.Session{EventID: ev.ID, LocationID: loc.ID, Start: testNow, Finish: testNow.Add(time.Hour)}
	if err := env.m.repo.CreateSession(ctx, s, env.m.formatter); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := env.m.repo.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}

	got, err := env.m.repo.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.LocationID != 0 {
		t.Errorf("event LocationID = %d, want 0", got.LocationID)
	}
	if len(got.Sessions) != 1 || got.Sessions[0].LocationID != 0 {
		t.Fatalf("session location not cleared: %+v", got.Sessions)
	}
	if got.Sessions[0].ResolvedLocation() != nil {
		t.Error("ResolvedLocation() should be nil once the location is gone")
	}
}

func TestRepository_NotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	checks := map[string]error{
		"update location": env.m.repo.UpdateLocation(ctx, &calendar.Location{ID: 999, Name: "Ghost"}),
		"delete calendar": env.m.repo.DeleteCalendar(ctx, 999),
		"delete event":    env.m.repo.DeleteEvent(ctx, 999),
		"delete session":  env.m.repo.DeleteSession(ctx, 999),
	}
	for name, err := range checks {
		if !isNotFound(err) {
			t.Errorf("%s: %v, want not found", name, err)
		}
	}

	if _, err := env.m.repo.GetCalendarBySegment(ctx, "missing"); !isNotFound(err) {
		t.Errorf("GetCalendarBySegment: %v, want not found", err)
	}
}

func TestRepository_GetSessionResolvesEventLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hall := env.location(t, "Town Hall", "au")
	park := env.location(t, "Riverside Park", "au")

	ev := &calendar.Event{CalendarID: env.calendar(t, "Council").ID, Title: "Meeting", LocationID: hall.ID}
	if err := env.m.repo.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	inherited := env.session(t, ev, testNow, time.Hour)
	moved := &calendar.Session{EventID: ev.ID, LocationID: park.ID, Start: testNow.Add(24 * time.Hour), Finish: testNow.Add(25 * time.Hour)}
	if err := env.m.repo.CreateSession(ctx, moved, env.m.formatter); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tests := []struct {
		id   int64
		want string
	}{
		{inherited.ID, "Town Hall"},
		{moved.ID, "Riverside Park"},
	}
	for _, tt := range tests {
		got, err := env.m.repo.GetSession(ctx, tt.id)
		if err != nil {
			t.Fatalf("GetSession(%d): %v", tt.id, err)
		}
		if got.Event == nil || got.Event.ID != ev.ID {
			t.Fatalf("GetSession(%d) event = %+v", tt.id, got.Event)
		}
		if name := got.LocationName(); name != tt.want {
			t.Errorf("GetSession(%d).LocationName() = %q, want %q", tt.id, name, tt.want)
		}
	}
}

func TestRepository_RunInTx(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := env.m.repo.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		if err := tx.CreateLocation(ctx, &calendar.Location{Name: "Lost"}); err != nil {
			return err
		}
		if err := tx.CreateCalendar(ctx, &calendar.Calendar{Title: "Lost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx = %v, want %v", err, boom)
	}
	if n, err := env.m.repo.CountCalendars(ctx); err != nil || n != 0 {
		t.Errorf("CountCalendars = %d, %v; want 0 after rollback", n, err)
	}
	if locs, err := env.m.repo.ListLocations(ctx, ""); err != nil || len(locs) != 0 {
		t.Errorf("ListLocations = %d, %v; want none after rollback", len(locs), err)
	}

	err = env.m.repo.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		cal := &calendar.Calendar{Title: "Kept"}
		if err := tx.CreateCalendar(ctx, cal); err != nil {
			return err
		}
		ev := &calendar.Event{CalendarID: cal.ID, Title: "Opening"}
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return err
		}
		return tx.CreateSessions(ctx, []*calendar.Session{
			{EventID: ev.ID, Start: testNow, Finish: testNow.Add(time.Hour)},
		}, env.m.formatter)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	cal, err := env.m.repo.LoadCalendar(ctx, "kept")
	if err != nil {
		t.Fatalf("LoadCalendar: %v", err)
	}
	if len(cal.Events) != 1 || len(cal.Events[0].Sessions) != 1 {
		t.Errorf("committed calendar = %d events, want 1 with one session", len(cal.Events))
	}
}

func TestRepository_CreateSessionsRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, env.calendar(t, "Series"), "Workshop", false)

	sessions := []*calendar.Session{
		{EventID: ev.ID, Start: testNow, Finish: testNow.Add(time.Hour)},
		{EventID: 4242, Start: testNow, Finish: testNow.Add(time.Hour)},
	}
	if err := env.m.repo.CreateSessions(ctx, sessions, env.m.formatter); err == nil {
		t.Fatal("expected the foreign key violation to fail the batch")
	}

	got, err := env.m.repo.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if len(got.Sessions) != 0 {
		t.Errorf("got %d sessions after rollback, want 0", len(got.Sessions))
	}
}

func TestRepository_FeaturedAndSearchable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cal := env.calendar(t, "Picks")

	env.event(t, cal, "Star", true)
	hidden := &calendar.Event{CalendarID: cal.ID, Title: "Hidden"}
	if err := env.m.repo.CreateEvent(ctx, hidden); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	featured, err := env.m.repo.ListFeaturedEvents(ctx)
	if err != nil {
		t.Fatalf("ListFeaturedEvents: %v", err)
	}
	if len(featured) != 1 || featured[0].Title != "Star" || featured[0].Calendar == nil {
		t.Errorf("ListFeaturedEvents = %+v", featured)
	}

	searchable, err := env.m.repo.ListSearchableEvents(ctx)
	if err != nil {
		t.Fatalf("ListSearchableEvents: %v", err)
	}
	if len(searchable) != 1 || searchable[0].Title != "Star" {
		t.Errorf("ListSearchableEvents = %+v", searchable)
	}
}
