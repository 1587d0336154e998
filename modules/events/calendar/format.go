// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import "time"

// Default layouts used to present session dates and times.
const (
	DefaultDateLayout = "Mon 2 Jan 2006"
	DefaultTimeLayout = "3:04 PM"
)

// rangeSeparator joins the two ends of a date or time range.
const rangeSeparator = " - "

// Span is the part of a session that decides how its date is presented.
type Span struct {
	Start       time.Time
	Finish      time.Time
	IgnoreTimes bool
}

// Formatter renders spans using Go time layouts in a fixed time zone.
// The zero value uses the default layouts and UTC.
type Formatter struct {
	DateLayout string
	TimeLayout string
	Location   *time.Location
}

// NewFormatter creates a formatter, falling back to the default layouts
// when either layout is empty.
func NewFormatter(dateLayout, timeLayout string, loc *time.Location) Formatter {
	return Formatter{DateLayout: dateLayout, TimeLayout: timeLayout, Location: loc}
}

func (f Formatter) dateLayout() string {
	if f.DateLayout == "" {
		return DefaultDateLayout
	}
	return f.DateLayout
}

func (f Formatter) timeLayout() string {
	if f.TimeLayout == "" {
		return DefaultTimeLayout
	}
	return f.TimeLayout
}

func (f Formatter) zone() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Date formats the calendar date of t.
func (f Formatter) Date(t time.Time) string {
	return t.In(f.zone()).Format(f.dateLayout())
}

// Time formats the time of day of t.
func (f Formatter) Time(t time.Time) string {
	return t.In(f.zone()).Format(f.timeLayout())
}

// DateTime formats t as a date followed by a time.
func (f Formatter) DateTime(t time.Time) string {
	return f.Date(t) + " " + f.Time(t)
}

// DateAndTime renders a span as a human readable range.
//
// Spans that ignore times only show dates: a single date when start and
// finish fall on the same day, otherwise "date - date". Timed spans on one
// day show "date time", or "date time - time" when the times differ.
// Timed spans across days show both full date-times.
func (f Formatter) DateAndTime(s Span) string {
	start := s.Start.In(f.zone())
	finish := s.Finish.In(f.zone())
	sameDay := SameDay(start, finish)

	if s.IgnoreTimes {
		if sameDay {
			return f.Date(start)
		}
		return f.Date(start) + rangeSeparator + f.Date(finish)
	}

	if !sameDay {
		return f.DateTime(start) + rangeSeparator + f.DateTime(finish)
	}
	if sameClock(start, finish) {
		return f.DateTime(start)
	}
	return f.DateTime(start) + rangeSeparator + f.Time(finish)
}

// SameDay reports whether a and b fall on the same calendar day in a's zone.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameClock(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

// StartOfDay returns midnight of t's day in t's zone.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day in t's zone.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
