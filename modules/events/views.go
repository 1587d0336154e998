// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"html/template"
	"time"

	"github.com/olegiv/ocms-events/internal/i18n"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

// LocationView is the public form of a location.
type LocationView struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	FullStreet     string        `json:"full_street,omitempty"`
	FullAddress    string        `json:"full_address"`
	CountryName    string        `json:"country_name,omitempty"`
	NameAndAddress template.HTML `json:"name_and_address"`
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
}

// SessionView is the public form of a session.
type SessionView struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	DateTitle   string        `json:"date_title"`
	Start       time.Time     `json:"start"`
	Finish      time.Time     `json:"finish"`
	ShowTimes   bool          `json:"show_times"`
	Link        string        `json:"link"`
	EventTitle  string        `json:"event_title,omitempty"`
	EventLink   string        `json:"event_link,omitempty"`
	Location    *LocationView `json:"location,omitempty"`
	IsCurrent   bool          `json:"is_current"`
	IgnoreTimes bool          `json:"ignore_times"`
}

// EventSummary is an event as listed on its calendar page.
type EventSummary struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	Summary            string     `json:"summary,omitempty"`
	Link               string     `json:"link"`
	Featured           bool       `json:"featured"`
	NextSessionTitle   string     `json:"next_session_title,omitempty"`
	NextSessionStart   *time.Time `json:"next_session_start,omitempty"`
	HasUpcomingSession bool       `json:"has_upcoming_session"`
}

// EventView is the public event page.
type EventView struct {
	ID                       int64         `json:"id"`
	Title                    string        `json:"title"`
	Summary                  string        `json:"summary,omitempty"`
	Content                  template.HTML `json:"content"`
	Featured                 bool          `json:"featured"`
	Link                     string        `json:"link"`
	Location                 *LocationView `json:"location,omitempty"`
	Sessions                 []SessionView `json:"sessions"`
	CurrentOrUpcomingSession *SessionView  `json:"current_or_upcoming_session,omitempty"`
	Breadcrumbs              []Breadcrumb  `json:"breadcrumbs"`
}

// CalendarView is the public calendar page.
type CalendarView struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Content          template.HTML  `json:"content"`
	Link             string         `json:"link"`
	Events           []EventSummary `json:"events"`
	CurrentSessions  []SessionView  `json:"current_sessions"`
	UpcomingSessions []SessionView  `json:"upcoming_sessions"`
	ListItems        []SessionView  `json:"list_items"`
	FeedLink         string         `json:"feed_link"`
	Breadcrumbs      []Breadcrumb   `json:"breadcrumbs"`
}

// SessionPage is the public session page.
type SessionPage struct {
	Session     SessionView  `json:"session"`
	Event       EventSummary `json:"event"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs"`
}

// Breadcrumb is one step of the navigation trail.
type Breadcrumb struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// presenter turns records into views for one request.
type presenter struct {
	f    calendar.Formatter
	lang string
	now  time.Time
}

func (p presenter) location(l *calendar.Location) *LocationView {
	if l == nil || l.ID == 0 {
		return nil
	}
	return &LocationView{
		ID:             l.ID,
		Name:           l.Name,
		FullStreet:     l.FullStreet(),
		FullAddress:    l.FullAddress(calendar.DefaultAddressSeparator),
		CountryName:    l.CountryNameIn(i18n.Tag(p.lang)),
		NameAndAddress: template.HTML(l.NameAndAddress()),
		Latitude:       l.Latitude,
		Longitude:      l.Longitude,
		Email:          l.Email,
		Phone:          l.Phone,
	}
}

func (p presenter) session(s *calendar.Session) SessionView {
	v := SessionView{
		ID:          s.ID,
		Title:       s.Title(p.f),
		DateTitle:   i18n.T(p.lang, s.DateTitleKey()),
		Start:       s.Start,
		Finish:      s.Finish,
		ShowTimes:   s.ShowTimes(),
		Link:        s.Link(),
		Location:    p.location(s.ResolvedLocation()),
		IsCurrent:   s.IsCurrent(p.now),
		IgnoreTimes: s.IgnoreTimes,
	}
	if s.Event != nil {
		v.EventTitle = s.Event.Title
		v.EventLink = s.Event.Link()
	}
	return v
}

func (p presenter) sessions(sessions []*calendar.Session) []SessionView {
	out := make([]SessionView, len(sessions))
	for i, s := range sessions {
		out[i] = p.session(s)
	}
	return out
}

func (p presenter) eventSummary(e *calendar.Event) EventSummary {
	v := EventSummary{
		ID:                 e.ID,
		Title:              e.Title,
		Summary:            e.Summary,
		Link:               e.Link(),
		Featured:           e.Featured,
		HasUpcomingSession: e.HasUpcomingSession(p.now),
	}
	if title, ok := e.CurrentOrUpcomingSessionTitle(p.now, p.f); ok {
		v.NextSessionTitle = title
	}
	if start, ok := e.CurrentOrUpcomingStart(p.now); ok {
		v.NextSessionStart = &start
	}
	return v
}

func (p presenter) event(e *calendar.Event) (EventView, error) {
	content, err := RenderContent(e.Content)
	if err != nil {
		return EventView{}, err
	}
	v := EventView{
		ID:          e.ID,
		Title:       e.Title,
		Summary:     e.Summary,
		Content:     content,
		Featured:    e.Featured,
		Link:        e.Link(),
		Location:    p.location(e.Location),
		Sessions:    p.sessions(e.EnabledSessions()),
		Breadcrumbs: eventBreadcrumbs(e),
	}
	if s := e.CurrentOrUpcomingSession(p.now); s != nil {
		sv := p.session(s)
		v.CurrentOrUpcomingSession = &sv
	}
	return v, nil
}

func (p presenter) calendar(c *calendar.Calendar) (CalendarView, error) {
	content, err := RenderContent(c.Content)
	if err != nil {
		return CalendarView{}, err
	}
	events := c.AllEvents()
	summaries := make([]EventSummary, len(events))
	for i, e := range events {
		summaries[i] = p.eventSummary(e)
	}
	return CalendarView{
		ID:               c.ID,
		Title:            c.Title,
		Content:          content,
		Link:             c.Link(),
		Events:           summaries,
		CurrentSessions:  p.sessions(c.CurrentEventSessions(p.now)),
		UpcomingSessions: p.sessions(c.UpcomingEventSessions(p.now)),
		ListItems:        p.sessions(c.ListItems(p.now)),
		FeedLink:         c.Link() + "/feed.ics",
		Breadcrumbs:      calendarBreadcrumbs(c),
	}, nil
}

func calendarBreadcrumbs(c *calendar.Calendar) []Breadcrumb {
	return []Breadcrumb{{Title: c.Title, Link: c.Link()}}
}

func eventBreadcrumbs(e *calendar.Event) []Breadcrumb {
	var crumbs []Breadcrumb
	if e.Calendar != nil {
		crumbs = calendarBreadcrumbs(e.Calendar)
	}
	return append(crumbs, Breadcrumb{Title: e.Title, Link: e.Link()})
}

// sessionBreadcrumbs extends the event trail with the session.
func (p presenter) sessionBreadcrumbs(s *calendar.Session) []Breadcrumb {
	var crumbs []Breadcrumb
	if s.Event != nil {
		crumbs = eventBreadcrumbs(s.Event)
	}
	return append(crumbs, Breadcrumb{Title: s.Title(p.f), Link: s.Link()})
}
