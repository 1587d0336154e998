// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

// FieldKind tells an editor which input to render for a field.
type FieldKind string

// Field kinds used by the event records.
const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindPhone    FieldKind = "phone"
	KindDecimal  FieldKind = "decimal"
	KindCountry  FieldKind = "country"
	KindDateTime FieldKind = "datetime"
	KindCheckbox FieldKind = "checkbox"
	KindHasOne   FieldKind = "has_one"
	KindMarkdown FieldKind = "markdown"
	KindGrid     FieldKind = "grid"
)

// Record names accepted by LayoutFor.
const (
	RecordLocation = "location"
	RecordSession  = "session"
	RecordEvent    = "event"
	RecordCalendar = "calendar"
)

// Field describes one editable attribute.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
	// Source names the record a has_one or grid field points to.
	Source string `json:"source,omitempty"`
}

// Section groups related fields under a heading.
type Section struct {
	Name   string  `json:"name"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields"`
}

// Tab groups sections.
type Tab struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Layout is the edit screen of a record.
type Layout struct {
	Record string `json:"record"`
	Tabs   []Tab  `json:"tabs"`
}

// Tab returns the named tab, or nil.
func (l *Layout) Tab(name string) *Tab {
	for i := range l.Tabs {
		if l.Tabs[i].Name == name {
			return &l.Tabs[i]
		}
	}
	return nil
}

// Section returns the named section of the tab, or nil.
func (t *Tab) Section(name string) *Section {
	for i := range t.Sections {
		if t.Sections[i].Name == name {
			return &t.Sections[i]
		}
	}
	return nil
}

// FieldNames lists every field name of the layout in display order.
func (l *Layout) FieldNames() []string {
	var names []string
	for _, tab := range l.Tabs {
		for _, sec := range tab.Sections {
			for _, f := range sec.Fields {
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// Translator resolves a label key.
type Translator func(key string) string

func (t Translator) field(name string, kind FieldKind) Field {
	return Field{Name: name, Label: t("events.field." + name), Kind: kind}
}

func required(f Field) Field {
	f.Required = true
	return f
}

func described(f Field, desc string) Field {
	f.Description = desc
	return f
}

func sourced(f Field, source string) Field {
	f.Source = source
	return f
}

// LocationLayout builds the edit screen of a location.
func LocationLayout(t Translator) *Layout {
	return &Layout{
		Record: RecordLocation,
		Tabs: []Tab{{
			Name:  "main",
			Title: t("events.tab.main"),
			Sections: []Section{
				{Name: "main", Fields: []Field{required(t.field("name", KindText))}},
				{Name: "location", Title: t("events.section.location"), Fields: []Field{
					t.field("street", KindText),
					t.field("street_line2", KindText),
					t.field("suburb", KindText),
					t.field("state_territory", KindText),
					t.field("postal_code", KindText),
					t.field("country", KindCountry),
				}},
				{Name: "coordinates", Title: t("events.section.coordinates"), Fields: []Field{
					t.field("latitude", KindDecimal),
					t.field("longitude", KindDecimal),
				}},
				{Name: "contact", Title: t("events.section.contact"), Fields: []Field{
					t.field("email", KindEmail),
					t.field("phone", KindPhone),
				}},
			},
		}},
	}
}

// SessionLayout builds the edit screen of a session.
func SessionLayout(t Translator) *Layout {
	return &Layout{
		Record: RecordSession,
		Tabs: []Tab{{
			Name:  "main",
			Title: t("events.tab.main"),
			Sections: []Section{{Name: "main", Fields: []Field{
				required(t.field("start", KindDateTime)),
				required(t.field("finish", KindDateTime)),
				sourced(described(t.field("location_id", KindHasOne), t("events.field.location_id.session_description")), RecordLocation),
				t.field("ignore_times", KindCheckbox),
				t.field("disabled", KindCheckbox),
			}}},
		}},
	}
}

// EventLayout builds the edit screen of an event.
func EventLayout(t Translator) *Layout {
	return &Layout{
		Record: RecordEvent,
		Tabs: []Tab{
			{Name: "main", Title: t("events.tab.main"), Sections: []Section{{Name: "main", Fields: []Field{
				required(t.field("title", KindText)),
				t.field("summary", KindText),
				sourced(t.field("location_id", KindHasOne), RecordLocation),
				t.field("content", KindMarkdown),
			}}}},
			{Name: "sessions", Title: t("events.tab.sessions"), Sections: []Section{{Name: "sessions", Fields: []Field{
				sourced(t.field("sessions", KindGrid), RecordSession),
			}}}},
			{Name: "options", Title: t("events.tab.options"), Sections: []Section{{Name: "event_options", Title: t("events.section.event"), Fields: []Field{
				t.field("featured", KindCheckbox),
				t.field("show_in_search", KindCheckbox),
			}}}},
		},
	}
}

// CalendarLayout builds the edit screen of a calendar.
func CalendarLayout(t Translator) *Layout {
	return &Layout{
		Record: RecordCalendar,
		Tabs: []Tab{{Name: "main", Title: t("events.tab.main"), Sections: []Section{{Name: "main", Fields: []Field{
			required(t.field("title", KindText)),
			t.field("content", KindMarkdown),
		}}}}},
	}
}

// LayoutFor builds the layout of the named record; ok is false for unknown
// records.
func LayoutFor(record string, t Translator) (*Layout, bool) {
	switch record {
	case RecordLocation:
		return LocationLayout(t), true
	case RecordSession:
		return SessionLayout(t), true
	case RecordEvent:
		return EventLayout(t), true
	case RecordCalendar:
		return CalendarLayout(t), true
	}
	return nil, false
}
