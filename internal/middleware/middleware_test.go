// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olegiv/ocms-events/internal/i18n"
	"github.com/olegiv/ocms-events/internal/testutil"
)

func TestMain(m *testing.M) {
	if err := i18n.Init(testutil.TestLoggerSilent()); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestLanguage(t *testing.T) {
	var got string
	h := Language(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetLanguage(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/events/featured", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "ru", got)
	assert.Equal(t, "ru", w.Header().Get("Content-Language"))

	req = httptest.NewRequest(http.MethodGet, "/events/featured?lang=en", nil)
	req.Header.Set("Accept-Language", "ru")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "en", got)
}

func TestGetLanguageDefault(t *testing.T) {
	assert.Equal(t, i18n.DefaultLanguage, GetLanguage(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultSecurityHeadersConfig(false))(simpleOKHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")

	dev := SecurityHeaders(DefaultSecurityHeadersConfig(true))(simpleOKHandler)
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
