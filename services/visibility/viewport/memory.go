// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viewport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// Memory is an in-memory Viewport.
//
// Listeners run after the state lock is released, so a listener may read the
// viewport. A panicking listener is logged and does not prevent delivery to
// the remaining listeners.
//
// Thread Safety: Memory is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	spatial    bool
	models     scene.IDSet
	categories scene.IDSet
	overrides  map[scene.ModelCategory]scene.CategoryOverride
	always     scene.IDSet
	never      scene.IDSet
	exclusive  bool

	listenersMu sync.RWMutex
	listeners   map[string]Listener
	logger      *slog.Logger
}

// MemoryOption configures a Memory viewport.
type MemoryOption func(*Memory)

// WithSpatial sets whether the view is spatial. Defaults to true.
func WithSpatial(spatial bool) MemoryOption {
	return func(m *Memory) {
		m.spatial = spatial
	}
}

// WithModels seeds the displayed models.
func WithModels(ids ...string) MemoryOption {
	return func(m *Memory) {
		m.models.Add(ids...)
	}
}

// WithCategories seeds the category selector.
func WithCategories(ids ...string) MemoryOption {
	return func(m *Memory) {
		m.categories.Add(ids...)
	}
}

// WithLogger sets the logger used to report listener panics.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an empty spatial viewport.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		spatial:    true,
		models:     scene.NewIDSet(),
		categories: scene.NewIDSet(),
		overrides:  make(map[scene.ModelCategory]scene.CategoryOverride),
		always:     scene.NewIDSet(),
		never:      scene.NewIDSet(),
		listeners:  make(map[string]Listener),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) IsSpatial() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.spatial
}

func (m *Memory) ViewsModel(modelID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.models.Has(modelID)
}

func (m *Memory) ChangeModelDisplay(modelIDs []string, on bool) {
	m.mu.Lock()
	changed := toggle(m.models, modelIDs, on)
	m.mu.Unlock()
	if changed {
		m.emit(EventModelDisplay)
	}
}

func (m *Memory) ViewsCategory(categoryID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categories.Has(categoryID)
}

func (m *Memory) ChangeCategoryDisplay(categoryIDs []string, on bool) {
	m.mu.Lock()
	changed := toggle(m.categories, categoryIDs, on)
	m.mu.Unlock()
	if changed {
		m.emit(EventCategoryDisplay)
	}
}

func (m *Memory) PerModelCategoryOverride(modelID, categoryID string) scene.CategoryOverride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides[scene.ModelCategory{ModelID: modelID, CategoryID: categoryID}]
}

func (m *Memory) SetPerModelCategoryOverride(modelIDs, categoryIDs []string, override scene.CategoryOverride) {
	m.mu.Lock()
	changed := false
	for _, model := range modelIDs {
		for _, cat := range categoryIDs {
			key := scene.ModelCategory{ModelID: model, CategoryID: cat}
			current := m.overrides[key]
			if current == override {
				continue
			}
			if override == scene.CategoryOverrideNone {
				delete(m.overrides, key)
			} else {
				m.overrides[key] = override
			}
			changed = true
		}
	}
	m.mu.Unlock()
	if changed {
		m.emit(EventPerModelCategoryOverride)
	}
}

func (m *Memory) ClearPerModelCategoryOverrides(modelIDs []string) {
	targets := scene.NewIDSet(modelIDs...)
	m.mu.Lock()
	changed := false
	for key := range m.overrides {
		if targets.Has(key.ModelID) {
			delete(m.overrides, key)
			changed = true
		}
	}
	m.mu.Unlock()
	if changed {
		m.emit(EventPerModelCategoryOverride)
	}
}

func (m *Memory) AlwaysDrawn() scene.IDSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.always.Clone()
}

func (m *Memory) NeverDrawn() scene.IDSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.never.Clone()
}

func (m *Memory) IsAlwaysDrawnExclusive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exclusive
}

func (m *Memory) SetAlwaysDrawn(ids scene.IDSet, exclusive bool) {
	m.mu.Lock()
	changed := m.exclusive != exclusive || !m.always.Equal(ids)
	if changed {
		m.always = ids.Clone()
		m.exclusive = exclusive
	}
	m.mu.Unlock()
	if changed {
		m.emit(EventAlwaysDrawn)
	}
}

// ClearAlwaysDrawn empties the always-drawn set and turns exclusive mode off.
func (m *Memory) ClearAlwaysDrawn() {
	m.mu.Lock()
	changed := m.always.Len() > 0 || m.exclusive
	m.always = scene.NewIDSet()
	m.exclusive = false
	m.mu.Unlock()
	if changed {
		m.emit(EventAlwaysDrawn)
	}
}

func (m *Memory) SetNeverDrawn(ids scene.IDSet) {
	m.mu.Lock()
	changed := !m.never.Equal(ids)
	if changed {
		m.never = ids.Clone()
	}
	m.mu.Unlock()
	if changed {
		m.emit(EventNeverDrawn)
	}
}

func (m *Memory) ClearNeverDrawn() {
	m.mu.Lock()
	changed := m.never.Len() > 0
	m.never = scene.NewIDSet()
	m.mu.Unlock()
	if changed {
		m.emit(EventNeverDrawn)
	}
}

// Subscribe implements Viewport.
func (m *Memory) Subscribe(l Listener) func() {
	id := uuid.NewString()
	m.listenersMu.Lock()
	m.listeners[id] = l
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

// ListenerCount returns the number of active listeners.
func (m *Memory) ListenerCount() int {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	return len(m.listeners)
}

func (m *Memory) emit(kind EventKind) {
	m.listenersMu.RLock()
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	m.listenersMu.RUnlock()

	ev := Event{Kind: kind}
	for _, l := range ls {
		m.safeInvoke(l, ev)
	}
}

func (m *Memory) safeInvoke(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("viewport listener panicked",
				slog.String("event", ev.Kind.String()),
				slog.Any("panic", r),
			)
		}
	}()
	l(ev)
}

func toggle(set scene.IDSet, ids []string, on bool) bool {
	changed := false
	for _, id := range ids {
		if set.Has(id) == on {
			continue
		}
		if on {
			set.Add(id)
		} else {
			set.Remove(id)
		}
		changed = true
	}
	return changed
}

var _ Viewport = (*Memory)(nil)
