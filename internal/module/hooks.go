// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
)

// Hook names emitted by the events module.
const (
	// HookEventsLayout receives the *calendar.Layout of an edit screen and
	// returns it, possibly with extra fields or sections.
	HookEventsLayout = "events.layout"

	// HookEventsAfterSave receives a *SaveEvent after a record is created,
	// updated or deleted.
	HookEventsAfterSave = "events.after_save"
)

// SaveEvent is the payload of HookEventsAfterSave.
type SaveEvent struct {
	Record string // location, session, event or calendar
	ID     int64
	Action string // created, updated or deleted
}

// HookFunc is a function that can be registered as a hook handler.
// It receives a context and data, and returns modified data and an error.
// If the hook returns an error, subsequent hooks are not called.
type HookFunc func(ctx context.Context, data any) (any, error)

// HookHandler wraps a HookFunc with metadata.
type HookHandler struct {
	Name     string   // Name of the handler for debugging
	Module   string   // Module that registered the handler
	Priority int      // Lower priority runs first (default: 0)
	Fn       HookFunc // The actual handler function
}

// IsModuleActiveFunc is a function that checks if a module is active.
type IsModuleActiveFunc func(moduleName string) bool

// HookRegistry manages hook registration and execution.
type HookRegistry struct {
	hooks          map[string][]HookHandler
	logger         *slog.Logger
	isModuleActive IsModuleActiveFunc
	mu             sync.RWMutex
}

// NewHookRegistry creates a new hook registry.
func NewHookRegistry(logger *slog.Logger) *HookRegistry {
	return &HookRegistry{
		hooks:          make(map[string][]HookHandler),
		logger:         logger,
		isModuleActive: func(string) bool { return true }, // Default: all active
	}
}

// SetIsModuleActive sets the callback function to check if a module is active.
func (h *HookRegistry) SetIsModuleActive(fn IsModuleActiveFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isModuleActive = fn
}

// Register adds a hook handler for the given hook name.
func (h *HookRegistry) Register(hookName string, handler HookHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	handlers := append(h.hooks[hookName], handler)
	// Equal priorities keep registration order.
	slices.SortStableFunc(handlers, func(a, b HookHandler) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	h.hooks[hookName] = handlers

	h.logger.Debug("hook registered",
		"hook", hookName,
		"handler", handler.Name,
		"module", handler.Module,
		"priority", handler.Priority,
	)
}

// Call executes all handlers for the given hook name.
// Handlers are executed in priority order (lower first).
// Handlers from inactive modules are skipped.
// The data is passed through each handler, allowing modification.
// If any handler returns an error, execution stops and the error is returned.
func (h *HookRegistry) Call(ctx context.Context, hookName string, data any) (any, error) {
	h.mu.RLock()
	handlers, exists := h.hooks[hookName]
	isModuleActive := h.isModuleActive
	h.mu.RUnlock()

	if !exists || len(handlers) == 0 {
		return data, nil
	}

	h.logger.Debug("calling hooks", "hook", hookName, "handlers", len(handlers))

	currentData := data
	for _, handler := range handlers {
		// Skip handlers from inactive modules
		if !isModuleActive(handler.Module) {
			h.logger.Debug("skipping hook handler from inactive module",
				"hook", hookName,
				"handler", handler.Name,
				"module", handler.Module,
			)
			continue
		}

		result, err := handler.Fn(ctx, currentData)
		if err != nil {
			h.logger.Error("hook handler error",
				"hook", hookName,
				"handler", handler.Name,
				"module", handler.Module,
				"error", err,
			)
			return nil, fmt.Errorf("hook %s handler %s: %w", hookName, handler.Name, err)
		}
		currentData = result
	}

	return currentData, nil
}

// CallNoResult executes hooks without expecting a modified result.
// This is useful for "after" hooks that just need to be notified.
func (h *HookRegistry) CallNoResult(ctx context.Context, hookName string, data any) error {
	_, err := h.Call(ctx, hookName, data)
	return err
}

// HasHandlers returns true if there are handlers registered for the hook.
func (h *HookRegistry) HasHandlers(hookName string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handlers, exists := h.hooks[hookName]
	return exists && len(handlers) > 0
}

// HookInfo describes a hook and its handlers in call order.
type HookInfo struct {
	Name     string            `json:"name"`
	Handlers []HookHandlerInfo `json:"handlers"`
}

// HookHandlerInfo describes one registered handler.
type HookHandlerInfo struct {
	Name     string `json:"name"`
	Module   string `json:"module"`
	Priority int    `json:"priority"`
}

// ListHookInfo returns all registered hooks sorted by name.
func (h *HookRegistry) ListHookInfo() []HookInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]HookInfo, 0, len(h.hooks))
	for name, handlers := range h.hooks {
		info := HookInfo{Name: name, Handlers: make([]HookHandlerInfo, len(handlers))}
		for i, handler := range handlers {
			info.Handlers[i] = HookHandlerInfo{Name: handler.Name, Module: handler.Module, Priority: handler.Priority}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// filterHandlersByModule returns handlers that don't belong to the given module.
func filterHandlersByModule(handlers []HookHandler, moduleName string) []HookHandler {
	result := make([]HookHandler, 0, len(handlers))
	for _, handler := range handlers {
		if handler.Module != moduleName {
			result = append(result, handler)
		}
	}
	return result
}

// UnregisterAll removes all handlers registered by a module.
func (h *HookRegistry) UnregisterAll(moduleName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for hookName, handlers := range h.hooks {
		remaining := filterHandlersByModule(handlers, moduleName)
		if len(remaining) == 0 {
			delete(h.hooks, hookName)
			continue
		}
		h.hooks[hookName] = remaining
	}

	h.logger.Debug("all hooks unregistered for module", "module", moduleName)
}
