// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"slices"
	"time"
)

// Featured selects the featured events and orders them by the start of
// their current or upcoming session. Events with nothing current or
// upcoming keep their relative order after the rest.
func Featured(events []*Event, now time.Time) []*Event {
	type keyed struct {
		event *Event
		start time.Time
		ok    bool
	}

	items := make([]keyed, 0, len(events))
	for _, e := range events {
		if e == nil || !e.Featured {
			continue
		}
		start, ok := e.CurrentOrUpcomingStart(now)
		items = append(items, keyed{event: e, start: start, ok: ok})
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.ok && b.ok:
			return a.start.Compare(b.start)
		case a.ok:
			return -1
		case b.ok:
			return 1
		}
		return 0
	})

	out := make([]*Event, len(items))
	for i, it := range items {
		out[i] = it.event
	}
	return out
}
