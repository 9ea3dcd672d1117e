// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator turns viewport events and data-change signals into
// cache invalidations and one coalesced "visibility changed" event per
// burst.
package coordinator

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

// DefaultDebounce is the quiet period before a change event is emitted.
const DefaultDebounce = 20 * time.Millisecond

// Invalidator is a cache that can be dropped on a data change.
type Invalidator interface {
	Invalidate()
}

// Change describes one coalesced batch of changes.
type Change struct {
	// Sequence increases by one per emitted change.
	Sequence uint64 `json:"sequence"`

	// Kinds lists the viewport event kinds seen in the batch, without
	// duplicates.
	Kinds []string `json:"kinds,omitempty"`

	// DataChanged is set when the scene data changed during the batch.
	DataChanged bool `json:"data_changed,omitempty"`

	// Events is the number of raw signals coalesced into this change.
	Events int `json:"events"`

	At time.Time `json:"at"`
}

// Listener receives coalesced changes.
type Listener func(Change)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce sets the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithInvalidators registers caches dropped by DataChanged.
func WithInvalidators(inv ...Invalidator) Option {
	return func(c *Coordinator) {
		c.invalidators = append(c.invalidators, inv...)
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator watches one viewport.
//
// Thread Safety: Coordinator is safe for concurrent use.
type Coordinator struct {
	window       time.Duration
	invalidators []Invalidator
	logger       *slog.Logger

	debounced   func(f func())
	unsubscribe func()

	mu       sync.Mutex
	closed   bool
	kinds    map[viewport.EventKind]struct{}
	data     bool
	events   int
	sequence uint64

	listenersMu sync.RWMutex
	listeners   map[string]Listener
}

// New subscribes to vp.
func New(vp viewport.Viewport, opts ...Option) *Coordinator {
	c := &Coordinator{
		window:    DefaultDebounce,
		logger:    slog.Default(),
		kinds:     make(map[viewport.EventKind]struct{}),
		listeners: make(map[string]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "coordinator"))
	c.debounced = debounce.New(c.window)
	c.unsubscribe = vp.Subscribe(c.onViewportEvent)
	return c
}

// OnVisibilityChanged registers l and returns a function that removes it.
func (c *Coordinator) OnVisibilityChanged(l Listener) func() {
	id := uuid.NewString()
	c.listenersMu.Lock()
	c.listeners[id] = l
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

// DataChanged drops the registered caches and schedules a change event.
func (c *Coordinator) DataChanged() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.data = true
	c.events++
	c.mu.Unlock()

	for _, inv := range c.invalidators {
		inv.Invalidate()
	}
	c.logger.Debug("scene data changed")
	c.debounced(c.flush)
}

// Close unsubscribes from the viewport. Pending changes are not emitted.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.unsubscribe()
}

func (c *Coordinator) onViewportEvent(ev viewport.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.kinds[ev.Kind] = struct{}{}
	c.events++
	c.mu.Unlock()
	c.debounced(c.flush)
}

func (c *Coordinator) flush() {
	c.mu.Lock()
	if c.closed || c.events == 0 {
		c.mu.Unlock()
		return
	}
	c.sequence++
	change := Change{
		Sequence:    c.sequence,
		DataChanged: c.data,
		Events:      c.events,
		At:          time.Now(),
	}
	for k := range c.kinds {
		change.Kinds = append(change.Kinds, k.String())
	}
	sort.Strings(change.Kinds)
	c.kinds = make(map[viewport.EventKind]struct{})
	c.data = false
	c.events = 0
	c.mu.Unlock()

	c.listenersMu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.listenersMu.RUnlock()

	for _, l := range ls {
		c.safeInvoke(l, change)
	}
}

func (c *Coordinator) safeInvoke(l Listener, change Change) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("visibility listener panicked",
				slog.Uint64("sequence", change.Sequence),
				slog.Any("panic", r),
			)
		}
	}()
	l(change)
}
