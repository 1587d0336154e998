// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-events/internal/model"
	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/testutil"
)

var simpleOKHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// insertTestAPIKey inserts a key and returns its raw value.
func insertTestAPIKey(t *testing.T, db *sql.DB, permissions []string, isActive bool, expiresAt *time.Time) string {
	t.Helper()

	rawKey, prefix, err := model.GenerateAPIKey()
	require.NoError(t, err)

	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	key, err := store.New(db).UpsertAPIKey(context.Background(), store.UpsertAPIKeyParams{
		Name:        "test",
		KeyHash:     model.HashAPIKey(rawKey),
		KeyPrefix:   prefix,
		Permissions: model.PermissionsToJSON(permissions),
		ExpiresAt:   expires,
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)

	if !isActive {
		_, err = db.Exec(`UPDATE api_keys SET is_active = 0 WHERE id = ?`, key.ID)
		require.NoError(t, err)
	}
	return rawKey
}

func serveWithAuth(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/events/locations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
	return e
}

func TestWriteAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAPIError(w, http.StatusBadRequest, "validation_failed", "Validation failed", map[string]string{"title": "missing required field"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	e := decodeAPIError(t, w)
	assert.Equal(t, "validation_failed", e.Error.Code)
	assert.Equal(t, "missing required field", e.Error.Details["title"])
}

func TestAPIKeyAuth_Rejections(t *testing.T) {
	db := testutil.TestDB(t)
	past := time.Now().Add(-time.Hour)
	inactive := insertTestAPIKey(t, db, []string{model.PermissionEventsRead}, false, nil)
	expired := insertTestAPIKey(t, db, []string{model.PermissionEventsRead}, true, &past)

	h := APIKeyAuth(db)(simpleOKHandler)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Missing Authorization header"},
		{"basic scheme", "Basic abc", "Invalid Authorization header format. Use: Bearer <api_key>"},
		{"no key", "Bearer", "Invalid Authorization header format. Use: Bearer <api_key>"},
		{"empty key", "Bearer  ", "API key is empty"},
		{"unknown key", "Bearer does-not-exist", "Invalid API key"},
		{"inactive key", "Bearer " + inactive, "API key is inactive"},
		{"expired key", "Bearer " + expired, "API key has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithAuth(h, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.message, decodeAPIError(t, w).Error.Message)
		})
	}
}

func TestAPIKeyAuth_ValidKey(t *testing.T) {
	db := testutil.TestDB(t)
	future := time.Now().Add(24 * time.Hour)
	raw := insertTestAPIKey(t, db, []string{model.PermissionEventsWrite}, true, &future)

	var captured *model.APIKey
	h := APIKeyAuth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAPIKey(r)
		w.WriteHeader(http.StatusOK)
	}))

	w := serveWithAuth(h, "bearer "+raw)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.True(t, captured.HasPermission(model.PermissionEventsWrite))
	assert.Equal(t, model.KeyPrefix(raw), captured.KeyPrefix)
}

func withKey(r *http.Request, perms ...string) *http.Request {
	key := model.APIKey{ID: 1, IsActive: true, Permissions: model.PermissionsToJSON(perms)}
	return r.WithContext(context.WithValue(r.Context(), ContextKeyAPIKey, key))
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(model.PermissionEventsWrite)(simpleOKHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), model.PermissionEventsRead))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil), model.PermissionEventsWrite))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireWriteForMutations(t *testing.T) {
	h := RequireWriteForMutations(model.PermissionEventsRead, model.PermissionEventsWrite)(simpleOKHandler)

	tests := []struct {
		method string
		perms  []string
		want   int
	}{
		{http.MethodGet, []string{model.PermissionEventsRead}, http.StatusOK},
		{http.MethodPost, []string{model.PermissionEventsRead}, http.StatusForbidden},
		{http.MethodDelete, []string{model.PermissionEventsWrite}, http.StatusOK},
		{http.MethodGet, []string{model.PermissionEventsWrite}, http.StatusForbidden},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withKey(httptest.NewRequest(tt.method, "/", nil), tt.perms...))
		assert.Equal(t, tt.want, w.Code, "%s %v", tt.method, tt.perms)
	}
}

func TestAPIRateLimit(t *testing.T) {
	h := APIRateLimit(1, 2)(simpleOKHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, withKey(httptest.NewRequest(http.MethodGet, "/", nil)))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Requests without a key are not limited here.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestGlobalRateLimiter(t *testing.T) {
	rl := NewGlobalRateLimiter(1, 1)
	h := rl.Middleware()(simpleOKHandler)

	request := func(remote, realIP string) int {
		req := httptest.NewRequest(http.MethodGet, "/events/featured", nil)
		req.RemoteAddr = remote
		if realIP != "" {
			req.Header.Set("X-Real-IP", realIP)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1:5678", ""))
	assert.Equal(t, http.StatusOK, request("10.0.0.2:1234", ""))
	assert.Equal(t, http.StatusOK, request("10.0.0.1:1234", "192.168.1.9"))

	assert.False(t, rl.Prune())
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:9000"
	assert.Equal(t, "10.1.1.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))
}
