// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-events/internal/testutil"
)

type mockModule struct {
	name         string
	version      string
	dependencies []string
	migrations   []Migration
	initOrder    *[]string
	initErr      error
	shutdownErr  error
	shutdowns    *[]string
	funcMap      template.FuncMap
}

func newMockModule(name string) *mockModule {
	return &mockModule{name: name, version: "1.0.0"}
}

func (m *mockModule) Name() string           { return m.name }
func (m *mockModule) Version() string        { return m.version }
func (m *mockModule) Description() string    { return "mock " + m.name }
func (m *mockModule) Dependencies() []string { return m.dependencies }
func (m *mockModule) Migrations() []Migration {
	return m.migrations
}
func (m *mockModule) Init(_ *Context) error {
	if m.initOrder != nil {
		*m.initOrder = append(*m.initOrder, m.name)
	}
	return m.initErr
}
func (m *mockModule) Shutdown() error {
	if m.shutdowns != nil {
		*m.shutdowns = append(*m.shutdowns, m.name)
	}
	return m.shutdownErr
}
func (m *mockModule) RegisterRoutes(r chi.Router) {
	r.Get("/"+m.name, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("public")) })
}
func (m *mockModule) RegisterAdminRoutes(r chi.Router) {
	r.Get("/"+m.name, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("admin")) })
}
func (m *mockModule) TemplateFuncs() template.FuncMap { return m.funcMap }
func (m *mockModule) TranslationsFS() embed.FS        { return embed.FS{} }

func newTestRegistry(t *testing.T, modules ...Module) (*Registry, *sql.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	r := NewRegistry(newTestLogger())
	for _, m := range modules {
		require.NoError(t, r.Register(m))
	}
	return r, db
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(newTestLogger())
	assert.Equal(t, 0, r.Count())
	assert.NotNil(t, r.List())

	require.NoError(t, r.Register(newMockModule("a")))
	require.NoError(t, r.Register(newMockModule("b")))
	err := r.Register(newMockModule("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Equal(t, 2, r.Count())
	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", got.Name())
	_, ok = r.Get("missing")
	assert.False(t, ok)

	names := []string{}
	for _, m := range r.List() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestRegistryInitAllOrderAndMigrations(t *testing.T) {
	var order []string
	applied := 0

	a := newMockModule("a")
	a.initOrder = &order
	a.migrations = []Migration{{
		Version:     1,
		Description: "create a_items",
		Up: func(db *sql.DB) error {
			applied++
			_, err := db.Exec("CREATE TABLE a_items (id INTEGER PRIMARY KEY)")
			return err
		},
		Down: func(db *sql.DB) error {
			_, err := db.Exec("DROP TABLE a_items")
			return err
		},
	}}
	b := newMockModule("b")
	b.initOrder = &order
	b.dependencies = []string{"a"}

	r, db := newTestRegistry(t, a, b)
	require.NoError(t, r.InitAll(&Context{DB: db, Logger: newTestLogger()}))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, applied)

	// A second registry over the same database skips applied migrations.
	r2 := NewRegistry(newTestLogger())
	require.NoError(t, r2.Register(a))
	require.NoError(t, r2.InitAll(&Context{DB: db, Logger: newTestLogger()}))
	assert.Equal(t, 1, applied)

	infos := r.ListInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, Info{
		Name:              "a",
		Version:           "1.0.0",
		Description:       "mock a",
		Initialized:       true,
		Active:            true,
		MigrationCount:    1,
		MigrationsApplied: 1,
	}, infos[0])
}

func TestRegistryDependencyErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		b := newMockModule("b")
		b.dependencies = []string{"nope"}
		r, db := newTestRegistry(t, b)
		err := r.InitAll(&Context{DB: db})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})

	t.Run("registered later", func(t *testing.T) {
		b := newMockModule("b")
		b.dependencies = []string{"a"}
		r, db := newTestRegistry(t, b, newMockModule("a"))
		err := r.InitAll(&Context{DB: db})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registered after it")
	})
}

func TestRegistryInitError(t *testing.T) {
	m := newMockModule("broken")
	m.initErr = errors.New("no config")
	r, db := newTestRegistry(t, m)

	err := r.InitAll(&Context{DB: db})
	require.ErrorIs(t, err, m.initErr)
	assert.Contains(t, err.Error(), `initializing module "broken"`)
}

func TestRegistrySetActive(t *testing.T) {
	r, db := newTestRegistry(t, newMockModule("events"))

	assert.Error(t, r.SetActive("events", false), "uninitialized registry")
	require.NoError(t, r.InitAll(&Context{DB: db}))
	assert.True(t, r.IsActive("events"))
	assert.True(t, r.IsActive("unknown"))

	require.NoError(t, r.SetActive("events", false))
	assert.False(t, r.IsActive("events"))
	assert.Error(t, r.SetActive("missing", true))

	// Status survives a restart.
	r2 := NewRegistry(newTestLogger())
	require.NoError(t, r2.Register(newMockModule("events")))
	require.NoError(t, r2.InitAll(&Context{DB: db}))
	assert.False(t, r2.IsActive("events"))
}

func TestRegistryRoutesOfInactiveModule(t *testing.T) {
	r, db := newTestRegistry(t, newMockModule("events"))
	require.NoError(t, r.InitAll(&Context{DB: db}))

	router := chi.NewRouter()
	r.RouteAll(router)
	router.Route("/admin", r.AdminRouteAll)

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, "public", serve("/events").Body.String())
	assert.Equal(t, "admin", serve("/admin/events").Body.String())

	require.NoError(t, r.SetActive("events", false))

	assert.Equal(t, http.StatusNotFound, serve("/events").Code)

	rec := serve("/admin/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "module_inactive", body.Error.Code)
}

func TestRegistryAllTemplateFuncs(t *testing.T) {
	a := newMockModule("a")
	a.funcMap = template.FuncMap{"fromA": func() string { return "a" }}
	b := newMockModule("b")
	b.funcMap = template.FuncMap{"fromB": func() string { return "b" }}

	r, db := newTestRegistry(t, a, b)
	require.NoError(t, r.InitAll(&Context{DB: db}))

	funcs := r.AllTemplateFuncs()
	assert.Contains(t, funcs, "fromA")
	assert.Contains(t, funcs, "fromB")

	require.NoError(t, r.SetActive("b", false))
	funcs = r.AllTemplateFuncs()
	assert.Contains(t, funcs, "fromA")
	assert.NotContains(t, funcs, "fromB")
}

func TestRegistryShutdownAll(t *testing.T) {
	var shutdowns []string
	a := newMockModule("a")
	a.shutdowns = &shutdowns
	a.shutdownErr = errors.New("a failed")
	b := newMockModule("b")
	b.shutdowns = &shutdowns
	c := newMockModule("c")
	c.shutdowns = &shutdowns
	c.shutdownErr = errors.New("c failed")

	r := NewRegistry(newTestLogger())
	for _, m := range []Module{a, b, c} {
		require.NoError(t, r.Register(m))
	}

	err := r.ShutdownAll()
	assert.Equal(t, []string{"c", "b", "a"}, shutdowns)
	require.Error(t, err)
	assert.ErrorIs(t, err, a.shutdownErr)
	assert.ErrorIs(t, err, c.shutdownErr)
}
