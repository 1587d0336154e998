// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n provides internationalization support for API messages and
// module labels.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales
var localesFS embed.FS

// Message represents a single translatable message.
type Message struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Translation string `json:"translation"`
}

// MessageFile represents the structure of a messages JSON file.
type MessageFile struct {
	Language string    `json:"language"`
	Messages []Message `json:"messages"`
}

// Catalog holds all translations for all supported languages.
type Catalog struct {
	mu           sync.RWMutex
	translations map[string]map[string]string // lang -> key -> translation
	matcher      language.Matcher
	supported    []language.Tag
	defaultLang  string
	logger       *slog.Logger
}

// catalog is the global catalog instance.
var catalog *Catalog

// SupportedLanguages lists the languages we translate into.
var SupportedLanguages = []string{"en", "ru"}

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

// Init initializes the i18n system with the given logger and loads the
// core translations.
func Init(logger *slog.Logger) error {
	c := &Catalog{
		translations: make(map[string]map[string]string),
		defaultLang:  DefaultLanguage,
		logger:       logger,
	}

	tags := make([]language.Tag, 0, len(SupportedLanguages))
	for _, lang := range SupportedLanguages {
		tags = append(tags, language.MustParse(lang))
	}
	c.supported = tags
	c.matcher = language.NewMatcher(tags)

	for _, lang := range SupportedLanguages {
		if err := c.loadFile(localesFS, path.Join("locales", lang, "messages.json"), lang); err != nil {
			return fmt.Errorf("failed to load language %s: %w", lang, err)
		}
	}

	catalog = c
	if logger != nil {
		logger.Info("i18n initialized", "languages", SupportedLanguages)
	}
	return nil
}

// LoadTranslationsFromFS merges module translations into the catalog.
// fsys must contain {root}/locales/{lang}/messages.json; languages without
// a file are skipped. Keys already present are overwritten.
func LoadTranslationsFromFS(fsys fs.FS, root string) error {
	if catalog == nil {
		return fmt.Errorf("i18n not initialized")
	}
	for _, lang := range SupportedLanguages {
		p := path.Join(root, "locales", lang, "messages.json")
		if _, err := fs.Stat(fsys, p); err != nil {
			continue
		}
		if err := catalog.loadFile(fsys, p, lang); err != nil {
			return err
		}
	}
	return nil
}

// loadFile reads one messages file and merges it into lang.
func (c *Catalog) loadFile(fsys fs.FS, p, lang string) error {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}

	var msgFile MessageFile
	if err := json.Unmarshal(data, &msgFile); err != nil {
		return fmt.Errorf("failed to parse %s: %w", p, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.translations[lang] == nil {
		c.translations[lang] = make(map[string]string)
	}
	for _, msg := range msgFile.Messages {
		c.translations[lang][msg.ID] = msg.Translation
	}

	if c.logger != nil {
		c.logger.Debug("loaded translations", "file", p, "language", lang, "count", len(msgFile.Messages))
	}
	return nil
}

// T translates a message key to the specified language.
// Unknown languages and missing keys fall back to the default language;
// a key missing there too is returned as is.
func T(lang, key string, args ...any) string {
	if catalog == nil {
		return key
	}

	catalog.mu.RLock()
	translation, ok := catalog.translations[lang][key]
	if !ok {
		translation, ok = catalog.translations[catalog.defaultLang][key]
	}
	catalog.mu.RUnlock()

	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(translation, args...)
	}
	return translation
}

// Translator returns T bound to lang.
func Translator(lang string) func(key string) string {
	return func(key string) string { return T(lang, key) }
}

// GetSupportedLanguages returns the list of supported languages.
func GetSupportedLanguages() []string {
	return SupportedLanguages
}

// MatchLanguage finds the best matching supported language for an
// Accept-Language header or a single language code.
func MatchLanguage(acceptLang string) string {
	if catalog == nil {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(tags) == 0 {
		tag, err := language.Parse(acceptLang)
		if err != nil {
			return catalog.defaultLang
		}
		tags = []language.Tag{tag}
	}

	_, idx, conf := catalog.matcher.Match(tags...)
	if conf == language.No {
		return catalog.defaultLang
	}
	if idx >= 0 && idx < len(catalog.supported) {
		return catalog.supported[idx].String()
	}
	return catalog.defaultLang
}

// FromRequest picks the language of a request: an explicit ?lang= value
// wins over the Accept-Language header.
func FromRequest(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" && IsSupported(lang) {
		return strings.ToLower(lang)
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		return MatchLanguage(header)
	}
	return DefaultLanguage
}

// Tag returns the language tag of a supported language code.
func Tag(lang string) language.Tag {
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}

// IsSupported checks if a language code is supported.
func IsSupported(lang string) bool {
	lang = strings.ToLower(lang)
	for _, supported := range SupportedLanguages {
		if supported == lang {
			return true
		}
	}
	return false
}

// TranslationCount returns the number of translations loaded for a language.
func TranslationCount(lang string) int {
	if catalog == nil {
		return 0
	}

	catalog.mu.RLock()
	defer catalog.mu.RUnlock()

	return len(catalog.translations[lang])
}
