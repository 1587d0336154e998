// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// Validation messages attached to fields.
const (
	MsgRequired     = "missing required field"
	MsgInvalid      = "invalid value"
	MsgFinishBefore = "finish must not be before start"
)

// ValidationError lists the fields of a record that failed validation.
type ValidationError struct {
	Record string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, "; "))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type validator struct {
	record string
	fields map[string]string
}

func newValidator(record string) *validator {
	return &validator{record: record, fields: make(map[string]string)}
}

func (v *validator) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.fields[field] = MsgRequired
	}
}

func (v *validator) fail(field, msg string) {
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Record: v.record, Fields: v.fields}
}

// Validate checks the location before it is saved.
func (l *Location) Validate() error {
	v := newValidator("location")
	v.require("name", l.Name)
	if len(strings.TrimSpace(l.Country)) > 2 {
		v.fail("country", MsgInvalid)
	}
	if email := strings.TrimSpace(l.Email); email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			v.fail("email", MsgInvalid)
		}
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		v.fail("latitude", MsgInvalid)
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		v.fail("longitude", MsgInvalid)
	}
	return v.err()
}

// Validate checks the session before it is saved.
func (s *Session) Validate() error {
	v := newValidator("session")
	if s.EventID == 0 {
		v.fail("event_id", MsgRequired)
	}
	if s.Start.IsZero() {
		v.fail("start", MsgRequired)
	}
	if s.Finish.IsZero() {
		v.fail("finish", MsgRequired)
	}
	if !s.Start.IsZero() && !s.Finish.IsZero() && s.Finish.Before(s.Start) {
		v.fail("finish", MsgFinishBefore)
	}
	return v.err()
}

// Validate checks the event before it is saved.
func (e *Event) Validate() error {
	v := newValidator("event")
	v.require("title", e.Title)
	if e.CalendarID == 0 {
		v.fail("calendar_id", MsgRequired)
	}
	return v.err()
}

// Validate checks the calendar before it is saved.
func (c *Calendar) Validate() error {
	v := newValidator("calendar")
	v.require("title", c.Title)
	return v.err()
}
