// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/olegiv/ocms-events/modules/events/calendar"
)

// feedProductID identifies the generator in every feed.
const feedProductID = "-//oCMS//Events//EN"

// sessionNamespace scopes the name-based UIDs of sessions.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://ocms.events/sessions"))

// SessionUID returns the stable iCalendar UID of a session.
func SessionUID(id int64) string {
	return uuid.NewSHA1(sessionNamespace, []byte("session:"+strconv.FormatInt(id, 10))).String()
}

// FeedSessions returns the current and upcoming sessions of the calendar
// that start before now+horizon, each once, ordered by start.
func FeedSessions(c *calendar.Calendar, now time.Time, horizon time.Duration) []*calendar.Session {
	limit := now.Add(horizon)
	seen := make(map[int64]bool)
	var out []*calendar.Session
	for _, group := range [][]*calendar.Session{c.CurrentEventSessions(now), c.UpcomingEventSessions(now)} {
		for _, s := range group {
			if seen[s.ID] || s.Start.After(limit) {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	calendar.SortSessions(out)
	return out
}

// BuildFeed renders sessions as an iCalendar document. siteURL prefixes
// session links. Sessions that ignore times become all-day events whose
// end date is the day after they finish, with days taken in stamp's zone.
func BuildFeed(c *calendar.Calendar, sessions []*calendar.Session, siteURL string, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(feedProductID)
	cal.SetXWRCalName(c.Title)
	cal.SetXPublishedTTL("PT1H")

	siteURL = strings.TrimRight(siteURL, "/")
	zone := stamp.Location()
	for _, s := range sessions {
		ev := cal.AddEvent(SessionUID(s.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetModifiedAt(s.UpdatedAt.UTC())

		if s.IgnoreTimes {
			ev.SetAllDayStartAt(s.Start.In(zone))
			ev.SetAllDayEndAt(calendar.StartOfDay(s.Finish.In(zone)).AddDate(0, 0, 1))
		} else {
			ev.SetStartAt(s.Start)
			ev.SetEndAt(s.Finish)
		}

		if s.Event != nil {
			ev.SetSummary(s.Event.Title)
			if s.Event.Summary != "" {
				ev.SetDescription(s.Event.Summary)
			}
		}
		if loc := s.ResolvedLocation(); loc != nil {
			ev.SetLocation(joinNonEmptyLine(loc.Name, loc.String()))
			if loc.Latitude != nil && loc.Longitude != nil {
				ev.SetGeo(*loc.Latitude, *loc.Longitude)
			}
		}
		if link := s.Link(); link != "" {
			ev.SetURL(siteURL + link)
		}
	}
	return cal.Serialize(ics.WithNewLineWindows)
}

func joinNonEmptyLine(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
