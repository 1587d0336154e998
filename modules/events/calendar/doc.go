// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package calendar holds the event calendar records (locations, sessions,
// events and calendars) together with the rules that derive what is
// currently running, what comes next and how a session is presented.
//
// Records carry bun tags so the events module can persist them directly,
// but nothing in this package touches a database: every derivation works
// on already loaded values and an explicit "now".
package calendar
