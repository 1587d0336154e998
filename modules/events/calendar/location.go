// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package calendar

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultAddressSeparator separates address lines in FullAddress.
const DefaultAddressSeparator = "\n"

// Location is a reusable venue with a postal address and contact details.
type Location struct {
	bun.BaseModel `bun:"table:event_locations,alias:l"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Street         string    `bun:"street,notnull" json:"street"`
	StreetLine2    string    `bun:"street_line2,notnull" json:"street_line2"`
	Suburb         string    `bun:"suburb,notnull" json:"suburb"`
	StateTerritory string    `bun:"state_territory,notnull" json:"state_territory"`
	PostalCode     string    `bun:"postal_code,notnull" json:"postal_code"`
	Country        string    `bun:"country,notnull" json:"country"`
	Latitude       *float64  `bun:"latitude" json:"latitude,omitempty"`
	Longitude      *float64  `bun:"longitude" json:"longitude,omitempty"`
	Email          string    `bun:"email,notnull" json:"email"`
	Phone          string    `bun:"phone,notnull" json:"phone"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Location)(nil)

// BeforeAppendModel normalizes the record before every insert and update.
func (l *Location) BeforeAppendModel(_ context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		l.Normalize()
		l.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Normalize trims free-text fields and stores the country code in lowercase.
func (l *Location) Normalize() {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.TrimSpace(l.Email)
	l.Country = strings.ToLower(strings.TrimSpace(l.Country))
}

// Title is the label shown wherever a location is picked or listed.
func (l *Location) Title() string {
	return l.Name
}

// FullStreet joins the street lines with a comma.
func (l *Location) FullStreet() string {
	return joinNonEmpty(", ", l.Street, l.StreetLine2)
}

// AddressLines returns the non-empty lines of the postal address:
// street, second street line, "suburb postcode state" and country name.
func (l *Location) AddressLines() []string {
	lines := make([]string, 0, 4)
	for _, s := range []string{
		l.Street,
		l.StreetLine2,
		joinNonEmpty(" ", l.Suburb, l.PostalCode, l.StateTerritory),
		l.CountryName(),
	} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// FullAddress joins the address lines with sep. An empty sep means
// DefaultAddressSeparator.
func (l *Location) FullAddress(sep string) string {
	if sep == "" {
		sep = DefaultAddressSeparator
	}
	return strings.Join(l.AddressLines(), sep)
}

// CountryName returns the English name of the country code.
func (l *Location) CountryName() string {
	return l.CountryNameIn(language.English)
}

// CountryNameIn returns the country name in the given language. Codes that
// do not resolve to a region come back upper-cased.
func (l *Location) CountryNameIn(lang language.Tag) string {
	code := strings.TrimSpace(l.Country)
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	var name string
	if namer := display.Regions(lang); namer != nil {
		name = namer.Name(region)
	}
	if name == "" {
		name = display.English.Regions().Name(region)
	}
	if name == "" {
		return strings.ToUpper(code)
	}
	return name
}

// NameAndAddress renders the name and address as an HTML fragment with one
// line per <br>.
func (l *Location) NameAndAddress() string {
	lines := make([]string, 0, 5)
	lines = append(lines, html.EscapeString(l.Name))
	for _, line := range l.AddressLines() {
		lines = append(lines, html.EscapeString(line))
	}
	return strings.Join(lines, "<br>")
}

// String renders the address on a single line.
func (l *Location) String() string {
	return l.FullAddress(", ")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
