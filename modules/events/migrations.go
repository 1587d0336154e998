// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"database/sql"

	"github.com/olegiv/ocms-events/internal/module"
)

// Migrations returns database migrations.
func (m *Module) Migrations() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "Create event_locations table",
			Up: func(db *sql.DB) error {
				_, err := db.Exec(`
					CREATE TABLE IF NOT EXISTS event_locations (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						street TEXT NOT NULL DEFAULT '',
						street_line2 TEXT NOT NULL DEFAULT '',
						suburb TEXT NOT NULL DEFAULT '',
						state_territory TEXT NOT NULL DEFAULT '',
						postal_code TEXT NOT NULL DEFAULT '',
						country TEXT NOT NULL DEFAULT '' CHECK (length(country) <= 2),
						latitude DECIMAL(9,6),
						longitude DECIMAL(9,6),
						email TEXT NOT NULL DEFAULT '',
						phone TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
					CREATE INDEX IF NOT EXISTS idx_event_locations_name ON event_locations(name);
				`)
				return err
			},
			Down: func(db *sql.DB) error {
				_, err := db.Exec(`DROP TABLE IF EXISTS event_locations`)
				return err
			},
		},
		{
			Version:     2,
			Description: "Create event_calendars and events tables",
			Up: func(db *sql.DB) error {
				_, err := db.Exec(`
					CREATE TABLE IF NOT EXISTS event_calendars (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						title TEXT NOT NULL,
						url_segment TEXT NOT NULL UNIQUE,
						content TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					);
					CREATE TABLE IF NOT EXISTS events (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						calendar_id INTEGER NOT NULL REFERENCES event_calendars(id) ON DELETE CASCADE,
						title TEXT NOT NULL,
						url_segment TEXT NOT NULL,
						summary TEXT NOT NULL DEFAULT '',
						content TEXT NOT NULL DEFAULT '',
						featured BOOLEAN NOT NULL DEFAULT 0,
						location_id INTEGER REFERENCES event_locations(id) ON DELETE SET NULL,
						show_in_search BOOLEAN NOT NULL DEFAULT 1,
						sort_order INTEGER NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						UNIQUE(calendar_id, url_segment)
					);
					CREATE INDEX IF NOT EXISTS idx_events_featured ON events(featured);
					CREATE INDEX IF NOT EXISTS idx_events_location ON events(location_id);
				`)
				return err
			},
			Down: func(db *sql.DB) error {
				_, err := db.Exec(`
					DROP TABLE IF EXISTS events;
					DROP TABLE IF EXISTS event_calendars;
				`)
				return err
			},
		},
		{
			Version:     3,
			Description: "Create event_sessions table",
			Up: func(db *sql.DB) error {
				_, err := db.Exec(`
					CREATE TABLE IF NOT EXISTS event_sessions (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
						location_id INTEGER REFERENCES event_locations(id) ON DELETE SET NULL,
						url_segment TEXT NOT NULL,
						start DATETIME NOT NULL,
						finish DATETIME NOT NULL,
						ignore_times BOOLEAN NOT NULL DEFAULT 0,
						disabled BOOLEAN NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						UNIQUE(event_id, url_segment)
					);
					CREATE INDEX IF NOT EXISTS idx_event_sessions_start ON event_sessions(event_id, start);
					CREATE INDEX IF NOT EXISTS idx_event_sessions_location ON event_sessions(location_id);
				`)
				return err
			},
			Down: func(db *sql.DB) error {
				_, err := db.Exec(`DROP TABLE IF EXISTS event_sessions`)
				return err
			},
		},
	}
}
