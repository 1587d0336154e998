// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package events

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-events/internal/handler/api"
	"github.com/olegiv/ocms-events/internal/i18n"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/notify"
	"github.com/olegiv/ocms-events/modules/events/calendar"
)

// writeError maps repository and validation errors to responses.
func (m *Module) writeError(w http.ResponseWriter, r *http.Request, record string, err error) {
	lang := middleware.GetLanguage(r)

	var ve *calendar.ValidationError
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve.Fields))
		for name, msg := range ve.Fields {
			fields[name] = translateValidation(lang, msg)
		}
		api.WriteValidationError(w, i18n.T(lang, "events.error.validation"), fields)
	case isNotFound(err):
		m.notFound(w, r, "events.error."+record+"_not_found")
	default:
		m.internalError(w, r, "events admin request failed", err)
	}
}

func translateValidation(lang, msg string) string {
	switch msg {
	case calendar.MsgRequired:
		return i18n.T(lang, "events.validation.required")
	case calendar.MsgInvalid:
		return i18n.T(lang, "events.validation.invalid")
	case calendar.MsgFinishBefore:
		return i18n.T(lang, "events.validation.finish_before_start")
	}
	return msg
}

// parseID reads {id} and answers 400 when it is not a positive integer.
func (m *Module) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := api.ParseIDParam(r)
	if err != nil {
		api.WriteBadRequest(w, err.Error(), nil)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := api.DecodeJSON(r, dst); err != nil {
		api.WriteBadRequest(w, err.Error(), nil)
		return false
	}
	return true
}

// saved runs the after-save hooks and writes the response.
func (m *Module) saved(w http.ResponseWriter, r *http.Request, record string, id int64, action string, data any) {
	if err := m.afterSave(r.Context(), record, id, action); err != nil {
		m.internalError(w, r, "after save hook failed", err)
		return
	}
	switch action {
	case notify.ActionCreated:
		api.WriteCreated(w, data)
	case notify.ActionDeleted:
		api.WriteNoContent(w)
	default:
		api.WriteSuccess(w, data, nil)
	}
}

// checkLocation reports a validation error when id names no location.
func (m *Module) checkLocation(ctx context.Context, record string, id int64) error {
	if id == 0 {
		return nil
	}
	if _, err := m.repo.GetLocation(ctx, id); err != nil {
		if isNotFound(err) {
			return &calendar.ValidationError{Record: record, Fields: map[string]string{"location_id": calendar.MsgInvalid}}
		}
		return err
	}
	return nil
}

// handleLayout handles GET /admin/events/layouts/{record}. Other modules
// extend the layout through the events.layout hook.
func (m *Module) handleLayout(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLanguage(r)
	layout, ok := calendar.LayoutFor(chi.URLParam(r, "record"), calendar.Translator(i18n.Translator(lang)))
	if !ok {
		m.notFound(w, r, "events.error.record_not_found")
		return
	}

	if hooks := m.ctx.Hooks; hooks != nil && hooks.HasHandlers(module.HookEventsLayout) {
		result, err := hooks.Call(r.Context(), module.HookEventsLayout, layout)
		if err != nil {
			m.internalError(w, r, "layout hook failed", err)
			return
		}
		if extended, ok := result.(*calendar.Layout); ok && extended != nil {
			layout = extended
		}
	}
	api.WriteSuccess(w, layout, nil)
}

// --- Locations ---

type locationInput struct {
	Name           string   `json:"name"`
	Street         string   `json:"street"`
	StreetLine2    string   `json:"street_line2"`
	Suburb         string   `json:"suburb"`
	StateTerritory string   `json:"state_territory"`
	PostalCode     string   `json:"postal_code"`
	Country        string   `json:"country"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
}

func locationInputFrom(l *calendar.Location) locationInput {
	return locationInput{
		Name:           l.Name,
		Street:         l.Street,
		StreetLine2:    l.StreetLine2,
		Suburb:         l.Suburb,
		StateTerritory: l.StateTerritory,
		PostalCode:     l.PostalCode,
		Country:        l.Country,
		Latitude:       l.Latitude,
		Longitude:      l.Longitude,
		Email:          l.Email,
		Phone:          l.Phone,
	}
}

func (in locationInput) apply(l *calendar.Location) {
	l.Name = in.Name
	l.Street = in.Street
	l.StreetLine2 = in.StreetLine2
	l.Suburb = in.Suburb
	l.StateTerritory = in.StateTerritory
	l.PostalCode = in.PostalCode
	l.Country = in.Country
	l.Latitude = in.Latitude
	l.Longitude = in.Longitude
	l.Email = in.Email
	l.Phone = in.Phone
}

func (m *Module) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := m.repo.ListLocations(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	api.WriteSuccess(w, locations, &api.Meta{Total: int64(len(locations))})
}

func (m *Module) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	loc, err := m.repo.GetLocation(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	api.WriteSuccess(w, loc, nil)
}

func (m *Module) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var in locationInput
	if !decodeBody(w, r, &in) {
		return
	}
	loc := new(calendar.Location)
	in.apply(loc)
	loc.Normalize()

	if err := loc.Validate(); err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	if err := m.repo.CreateLocation(r.Context(), loc); err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	m.saved(w, r, calendar.RecordLocation, loc.ID, notify.ActionCreated, loc)
}

func (m *Module) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	loc, err := m.repo.GetLocation(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}

	in := locationInputFrom(loc)
	if !decodeBody(w, r, &in) {
		return
	}
	in.apply(loc)
	loc.Normalize()

	if err := loc.Validate(); err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	if err := m.repo.UpdateLocation(r.Context(), loc); err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	m.saved(w, r, calendar.RecordLocation, loc.ID, notify.ActionUpdated, loc)
}

func (m *Module) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if err := m.repo.DeleteLocation(r.Context(), id); err != nil {
		m.writeError(w, r, calendar.RecordLocation, err)
		return
	}
	m.saved(w, r, calendar.RecordLocation, id, notify.ActionDeleted, nil)
}

// --- Calendars ---

type calendarInput struct {
	Title      string `json:"title"`
	URLSegment string `json:"url_segment"`
	Content    string `json:"content"`
}

func (in calendarInput) apply(c *calendar.Calendar) {
	c.Title = in.Title
	c.URLSegment = in.URLSegment
	c.Content = in.Content
}

func (m *Module) handleListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := m.repo.ListCalendars(r.Context())
	if err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	api.WriteSuccess(w, calendars, &api.Meta{Total: int64(len(calendars))})
}

func (m *Module) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	cal, err := m.repo.GetCalendar(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	api.WriteSuccess(w, cal, nil)
}

func (m *Module) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var in calendarInput
	if !decodeBody(w, r, &in) {
		return
	}
	cal := new(calendar.Calendar)
	in.apply(cal)

	if err := cal.Validate(); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	if err := m.repo.CreateCalendar(r.Context(), cal); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	m.saved(w, r, calendar.RecordCalendar, cal.ID, notify.ActionCreated, cal)
}

func (m *Module) handleUpdateCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	cal, err := m.repo.GetCalendar(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}

	in := calendarInput{Title: cal.Title, URLSegment: cal.URLSegment, Content: cal.Content}
	if !decodeBody(w, r, &in) {
		return
	}
	in.apply(cal)

	if err := cal.Validate(); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	if err := m.repo.UpdateCalendar(r.Context(), cal); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	m.saved(w, r, calendar.RecordCalendar, cal.ID, notify.ActionUpdated, cal)
}

func (m *Module) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if err := m.repo.DeleteCalendar(r.Context(), id); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	m.saved(w, r, calendar.RecordCalendar, id, notify.ActionDeleted, nil)
}

// --- Events ---

type eventInput struct {
	CalendarID   int64  `json:"calendar_id"`
	Title        string `json:"title"`
	URLSegment   string `json:"url_segment"`
	Summary      string `json:"summary"`
	Content      string `json:"content"`
	Featured     bool   `json:"featured"`
	LocationID   int64  `json:"location_id"`
	ShowInSearch bool   `json:"show_in_search"`
	SortOrder    int    `json:"sort_order"`
}

func eventInputFrom(e *calendar.Event) eventInput {
	return eventInput{
		CalendarID:   e.CalendarID,
		Title:        e.Title,
		URLSegment:   e.URLSegment,
		Summary:      e.Summary,
		Content:      e.Content,
		Featured:     e.Featured,
		LocationID:   e.LocationID,
		ShowInSearch: e.ShowInSearch,
		SortOrder:    e.SortOrder,
	}
}

func (in eventInput) apply(e *calendar.Event) {
	e.CalendarID = in.CalendarID
	e.Title = in.Title
	e.URLSegment = in.URLSegment
	e.Summary = in.Summary
	e.Content = in.Content
	e.Featured = in.Featured
	e.LocationID = in.LocationID
	e.ShowInSearch = in.ShowInSearch
	e.SortOrder = in.SortOrder
}

// adminEvent is an event with all of its sessions, disabled ones included.
type adminEvent struct {
	*calendar.Event
	Sessions []*calendar.Session `json:"sessions"`
}

func newAdminEvent(e *calendar.Event) adminEvent {
	sessions := e.Sessions
	if sessions == nil {
		sessions = []*calendar.Session{}
	}
	return adminEvent{Event: e, Sessions: sessions}
}

// validateEvent checks the record and its references.
func (m *Module) validateEvent(ctx context.Context, e *calendar.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := m.repo.GetCalendar(ctx, e.CalendarID); err != nil {
		if isNotFound(err) {
			return &calendar.ValidationError{Record: calendar.RecordEvent, Fields: map[string]string{"calendar_id": calendar.MsgInvalid}}
		}
		return err
	}
	return m.checkLocation(ctx, calendar.RecordEvent, e.LocationID)
}

func (m *Module) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if _, err := m.repo.GetCalendar(r.Context(), id); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}
	events, err := m.repo.ListEvents(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	api.WriteSuccess(w, events, &api.Meta{Total: int64(len(events))})
}

func (m *Module) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	event, err := m.repo.GetEvent(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	api.WriteSuccess(w, newAdminEvent(event), nil)
}

func (m *Module) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	calendarID, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if _, err := m.repo.GetCalendar(r.Context(), calendarID); err != nil {
		m.writeError(w, r, calendar.RecordCalendar, err)
		return
	}

	in := eventInput{ShowInSearch: true}
	if !decodeBody(w, r, &in) {
		return
	}
	in.CalendarID = calendarID
	event := new(calendar.Event)
	in.apply(event)

	if err := m.validateEvent(r.Context(), event); err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	if err := m.repo.CreateEvent(r.Context(), event); err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	m.saved(w, r, calendar.RecordEvent, event.ID, notify.ActionCreated, newAdminEvent(event))
}

func (m *Module) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	event, err := m.repo.GetEvent(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}

	in := eventInputFrom(event)
	if !decodeBody(w, r, &in) {
		return
	}
	in.apply(event)

	if err := m.validateEvent(r.Context(), event); err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	if err := m.repo.UpdateEvent(r.Context(), event); err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}

	updated, err := m.repo.GetEvent(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	m.saved(w, r, calendar.RecordEvent, id, notify.ActionUpdated, newAdminEvent(updated))
}

func (m *Module) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if err := m.repo.DeleteEvent(r.Context(), id); err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return
	}
	m.saved(w, r, calendar.RecordEvent, id, notify.ActionDeleted, nil)
}

// --- Sessions ---

type sessionInput struct {
	LocationID  *int64     `json:"location_id"`
	URLSegment  *string    `json:"url_segment"`
	Start       *time.Time `json:"start"`
	Finish      *time.Time `json:"finish"`
	IgnoreTimes *bool      `json:"ignore_times"`
	Disabled    *bool      `json:"disabled"`
}

// apply copies the provided fields. A start without a finish moves the
// finish along so the duration is kept.
func (in sessionInput) apply(s *calendar.Session) {
	if in.Start != nil {
		duration := s.Finish.Sub(s.Start)
		s.Start = *in.Start
		if in.Finish == nil && duration >= 0 && !s.Finish.IsZero() {
			s.Finish = s.Start.Add(duration)
		}
	}
	if in.Finish != nil {
		s.Finish = *in.Finish
	}
	if in.LocationID != nil {
		s.LocationID = *in.LocationID
	}
	if in.URLSegment != nil {
		s.URLSegment = *in.URLSegment
	}
	if in.IgnoreTimes != nil {
		s.IgnoreTimes = *in.IgnoreTimes
	}
	if in.Disabled != nil {
		s.Disabled = *in.Disabled
	}
}

type recurringInput struct {
	sessionInput
	Rule   string      `json:"rule"`
	Except []time.Time `json:"except"`
}

func (m *Module) validateSession(ctx context.Context, s *calendar.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return m.checkLocation(ctx, calendar.RecordSession, s.LocationID)
}

// sessionEvent loads the event named by {id} for the session routes.
func (m *Module) sessionEvent(w http.ResponseWriter, r *http.Request) *calendar.Event {
	id, ok := m.parseID(w, r)
	if !ok {
		return nil
	}
	event, err := m.repo.GetEvent(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordEvent, err)
		return nil
	}
	return event
}

func (m *Module) handleListSessions(w http.ResponseWriter, r *http.Request) {
	event := m.sessionEvent(w, r)
	if event == nil {
		return
	}
	sessions := event.Sessions
	if sessions == nil {
		sessions = []*calendar.Session{}
	}
	api.WriteSuccess(w, sessions, &api.Meta{Total: int64(len(sessions))})
}

// handleNewSession returns the defaults a new session of the event gets.
func (m *Module) handleNewSession(w http.ResponseWriter, r *http.Request) {
	event := m.sessionEvent(w, r)
	if event == nil {
		return
	}
	api.WriteSuccess(w, calendar.NewSession(event.ID, m.now()), nil)
}

func (m *Module) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	event := m.sessionEvent(w, r)
	if event == nil {
		return
	}

	var in sessionInput
	if !decodeBody(w, r, &in) {
		return
	}
	s := calendar.NewSession(event.ID, m.now())
	in.apply(s)

	if err := m.validateSession(r.Context(), s); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	if err := m.repo.CreateSession(r.Context(), s, m.formatter); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	m.saved(w, r, calendar.RecordSession, s.ID, notify.ActionCreated, s)
}

// handleCreateRecurringSessions creates one session per occurrence of an
// RRULE, using the request body as the template of the first one.
func (m *Module) handleCreateRecurringSessions(w http.ResponseWriter, r *http.Request) {
	event := m.sessionEvent(w, r)
	if event == nil {
		return
	}

	var in recurringInput
	if !decodeBody(w, r, &in) {
		return
	}
	tmpl := calendar.NewSession(event.ID, m.now())
	in.apply(tmpl)

	if err := m.validateSession(r.Context(), tmpl); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	if in.Rule == "" {
		m.writeError(w, r, calendar.RecordSession, &calendar.ValidationError{
			Record: calendar.RecordSession,
			Fields: map[string]string{"rule": calendar.MsgRequired},
		})
		return
	}

	sessions, err := calendar.Recurrence{Rule: in.Rule, Except: in.Except}.Expand(tmpl)
	if err != nil {
		m.writeError(w, r, calendar.RecordSession, &calendar.ValidationError{
			Record: calendar.RecordSession,
			Fields: map[string]string{"rule": calendar.MsgInvalid},
		})
		return
	}
	if err := m.repo.CreateSessions(r.Context(), sessions, m.formatter); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}

	for _, s := range sessions {
		if err := m.afterSave(r.Context(), calendar.RecordSession, s.ID, notify.ActionCreated); err != nil {
			m.internalError(w, r, "after save hook failed", err)
			return
		}
	}
	api.WriteJSON(w, http.StatusCreated, api.Response{
		Data: sessions,
		Meta: &api.Meta{Total: int64(len(sessions))},
	})
}

func (m *Module) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	s, err := m.repo.GetSession(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	api.WriteSuccess(w, s, nil)
}

func (m *Module) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	s, err := m.repo.GetSession(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}

	var in sessionInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.apply(s)

	if err := m.validateSession(r.Context(), s); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	if err := m.repo.UpdateSession(r.Context(), s, m.formatter); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}

	updated, err := m.repo.GetSession(r.Context(), id)
	if err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	m.saved(w, r, calendar.RecordSession, id, notify.ActionUpdated, updated)
}

func (m *Module) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := m.parseID(w, r)
	if !ok {
		return
	}
	if err := m.repo.DeleteSession(r.Context(), id); err != nil {
		m.writeError(w, r, calendar.RecordSession, err)
		return
	}
	m.saved(w, r, calendar.RecordSession, id, notify.ActionDeleted, nil)
}
