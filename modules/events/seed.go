// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/olegiv/ocms-events/modules/events/calendar"
)

// seedFile is the YAML layout of a fixtures file. Session starts are given
// relative to the current day so the fixtures stay current.
type seedFile struct {
	Locations []seedLocation `yaml:"locations"`
	Calendars []seedCalendar `yaml:"calendars"`
}

type seedLocation struct {
	Key            string   `yaml:"key"`
	Name           string   `yaml:"name"`
	Street         string   `yaml:"street"`
	StreetLine2    string   `yaml:"street_line2"`
	Suburb         string   `yaml:"suburb"`
	StateTerritory string   `yaml:"state_territory"`
	PostalCode     string   `yaml:"postal_code"`
	Country        string   `yaml:"country"`
	Latitude       *float64 `yaml:"latitude"`
	Longitude      *float64 `yaml:"longitude"`
	Email          string   `yaml:"email"`
	Phone          string   `yaml:"phone"`
}

type seedCalendar struct {
	Title      string      `yaml:"title"`
	URLSegment string      `yaml:"url_segment"`
	Content    string      `yaml:"content"`
	Events     []seedEvent `yaml:"events"`
}

type seedEvent struct {
	Title        string        `yaml:"title"`
	URLSegment   string        `yaml:"url_segment"`
	Summary      string        `yaml:"summary"`
	Content      string        `yaml:"content"`
	Featured     bool          `yaml:"featured"`
	Location     string        `yaml:"location"`
	ShowInSearch *bool         `yaml:"show_in_search"`
	SortOrder    int           `yaml:"sort_order"`
	Sessions     []seedSession `yaml:"sessions"`
}

type seedSession struct {
	Day         int           `yaml:"day"`
	At          string        `yaml:"at"`
	Duration    time.Duration `yaml:"duration"`
	Location    string        `yaml:"location"`
	IgnoreTimes bool          `yaml:"ignore_times"`
	Disabled    bool          `yaml:"disabled"`
}

// loadSeedFile parses a fixtures file.
func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return &f, nil
}

// seedIfEmpty imports the fixtures at path when no calendar exists yet.
// The import is all or nothing, so a failed seed is retried on the next
// start.
func (m *Module) seedIfEmpty(ctx context.Context, path string) error {
	n, err := m.repo.CountCalendars(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		m.ctx.Logger.Debug("events already present, skipping seed", "calendars", n)
		return nil
	}

	f, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	var counts map[string]int
	err = m.repo.RunInTx(ctx, func(ctx context.Context, tx *Repository) error {
		var err error
		counts, err = m.importSeed(ctx, tx, f)
		return err
	})
	if err != nil {
		return err
	}
	m.ctx.Logger.Info("seeded events",
		"file", path,
		"locations", counts[calendar.RecordLocation],
		"calendars", counts[calendar.RecordCalendar],
		"events", counts[calendar.RecordEvent],
		"sessions", counts[calendar.RecordSession],
	)
	return nil
}

func (m *Module) importSeed(ctx context.Context, repo *Repository, f *seedFile) (map[string]int, error) {
	counts := make(map[string]int)
	locations := make(map[string]int64, len(f.Locations))

	for _, sl := range f.Locations {
		loc := &calendar.Location{
			Name:           sl.Name,
			Street:         sl.Street,
			StreetLine2:    sl.StreetLine2,
			Suburb:         sl.Suburb,
			StateTerritory: sl.StateTerritory,
			PostalCode:     sl.PostalCode,
			Country:        sl.Country,
			Latitude:       sl.Latitude,
			Longitude:      sl.Longitude,
			Email:          sl.Email,
			Phone:          sl.Phone,
		}
		loc.Normalize()
		if err := loc.Validate(); err != nil {
			return nil, err
		}
		if err := repo.CreateLocation(ctx, loc); err != nil {
			return nil, fmt.Errorf("creating location %q: %w", sl.Name, err)
		}
		if sl.Key != "" {
			locations[sl.Key] = loc.ID
		}
		counts[calendar.RecordLocation]++
	}

	lookup := func(key string) (int64, error) {
		if key == "" {
			return 0, nil
		}
		id, ok := locations[key]
		if !ok {
			return 0, fmt.Errorf("unknown location key %q", key)
		}
		return id, nil
	}

	today := calendar.StartOfDay(m.now())
	for _, sc := range f.Calendars {
		cal := &calendar.Calendar{Title: sc.Title, URLSegment: sc.URLSegment, Content: sc.Content}
		if err := cal.Validate(); err != nil {
			return nil, err
		}
		if err := repo.CreateCalendar(ctx, cal); err != nil {
			return nil, fmt.Errorf("creating calendar %q: %w", sc.Title, err)
		}
		counts[calendar.RecordCalendar]++

		for _, se := range sc.Events {
			locationID, err := lookup(se.Location)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", se.Title, err)
			}
			event := &calendar.Event{
				CalendarID:   cal.ID,
				Title:        se.Title,
				URLSegment:   se.URLSegment,
				Summary:      se.Summary,
				Content:      se.Content,
				Featured:     se.Featured,
				LocationID:   locationID,
				ShowInSearch: se.ShowInSearch == nil || *se.ShowInSearch,
				SortOrder:    se.SortOrder,
			}
			if err := event.Validate(); err != nil {
				return nil, err
			}
			if err := repo.CreateEvent(ctx, event); err != nil {
				return nil, fmt.Errorf("creating event %q: %w", se.Title, err)
			}
			counts[calendar.RecordEvent]++

			sessions := make([]*calendar.Session, 0, len(se.Sessions))
			for _, ss := range se.Sessions {
				s, err := ss.session(event.ID, today, lookup)
				if err != nil {
					return nil, fmt.Errorf("event %q: %w", se.Title, err)
				}
				sessions = append(sessions, s)
			}
			if len(sessions) == 0 {
				continue
			}
			if err := repo.CreateSessions(ctx, sessions, m.formatter); err != nil {
				return nil, fmt.Errorf("creating sessions of %q: %w", se.Title, err)
			}
			counts[calendar.RecordSession] += len(sessions)
		}
	}
	return counts, nil
}

// session builds the session day days after today. A missing duration
// means one hour.
func (ss seedSession) session(eventID int64, today time.Time, lookup func(string) (int64, error)) (*calendar.Session, error) {
	start := today.AddDate(0, 0, ss.Day)
	if ss.At != "" {
		clock, err := time.Parse("15:04", ss.At)
		if err != nil {
			return nil, fmt.Errorf("invalid session time %q: %w", ss.At, err)
		}
		start = start.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
	}
	duration := ss.Duration
	if duration <= 0 {
		duration = time.Hour
	}
	locationID, err := lookup(ss.Location)
	if err != nil {
		return nil, err
	}

	s := &calendar.Session{
		EventID:     eventID,
		LocationID:  locationID,
		Start:       start,
		Finish:      start.Add(duration),
		IgnoreTimes: ss.IgnoreTimes,
		Disabled:    ss.Disabled,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
