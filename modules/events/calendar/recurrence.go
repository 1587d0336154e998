// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxRecurrences caps how many sessions a single rule may create.
const MaxRecurrences = 100

// DefaultRecurrenceHorizon bounds open-ended rules.
const DefaultRecurrenceHorizon = 2 * 365 * 24 * time.Hour

// ErrNoOccurrences is returned when a rule produces no session.
var ErrNoOccurrences = errors.New("recurrence rule produces no occurrences")

// Recurrence describes how to repeat a template session.
type Recurrence struct {
	// Rule is an RFC 5545 RRULE value such as "FREQ=WEEKLY;COUNT=4".
	Rule string
	// Except lists occurrence starts to skip.
	Except []time.Time
	// Horizon limits open-ended rules; zero means DefaultRecurrenceHorizon.
	Horizon time.Duration
}

// Expand creates one session per occurrence of the rule, starting with the
// template's own start. Every session keeps the template's duration and
// flags; URL segments and ids are left empty.
func (r Recurrence) Expand(tmpl *Session) ([]*Session, error) {
	if tmpl.Start.IsZero() {
		return nil, errors.New("template session has no start")
	}
	rule, err := rrule.StrToRRule(r.Rule)
	if err != nil {
		return nil, fmt.Errorf("parsing rule %q: %w", r.Rule, err)
	}
	rule.DTStart(tmpl.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range r.Except {
		set.ExDate(ex.In(tmpl.Start.Location()))
	}

	horizon := r.Horizon
	if horizon <= 0 {
		horizon = DefaultRecurrenceHorizon
	}
	until := tmpl.Start.Add(horizon)
	starts := make([]time.Time, 0, MaxRecurrences)
	next := set.Iterator()
	for len(starts) < MaxRecurrences {
		start, ok := next()
		if !ok || start.After(until) {
			break
		}
		starts = append(starts, start)
	}
	if len(starts) == 0 {
		return nil, ErrNoOccurrences
	}

	duration := tmpl.Finish.Sub(tmpl.Start)
	sessions := make([]*Session, len(starts))
	for i, start := range starts {
		sessions[i] = &Session{
			EventID:     tmpl.EventID,
			LocationID:  tmpl.LocationID,
			Start:       start,
			Finish:      start.Add(duration),
			IgnoreTimes: tmpl.IgnoreTimes,
			Disabled:    tmpl.Disabled,
		}
	}
	return sessions, nil
}
