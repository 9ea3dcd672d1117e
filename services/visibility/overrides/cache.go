// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package overrides indexes a viewport's always-drawn and never-drawn
// element sets by model and by (model, category).
//
// The viewport only holds flat id sets. Each Cache joins its set against
// the query source to learn every element's model and category, and keeps
// the result until the next change event. Change events are debounced; a
// rebuild that is overtaken by a newer event is discarded before commit.
package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

const (
	// DefaultDebounce is the quiet period after a change event.
	DefaultDebounce = 20 * time.Millisecond

	// DefaultBatchSize bounds the IN list of one element info query.
	DefaultBatchSize = 500
)

// SetType selects the always-drawn or the never-drawn set.
type SetType int

const (
	SetAlways SetType = iota
	SetNever
)

func (t SetType) String() string {
	if t == SetNever {
		return "never"
	}
	return "always"
}

// Index is one immutable snapshot of an override set.
type Index struct {
	byModel    map[string]scene.IDSet
	byCategory map[scene.ModelCategory]scene.IDSet
	size       int
}

func newIndex() *Index {
	return &Index{
		byModel:    make(map[string]scene.IDSet),
		byCategory: make(map[scene.ModelCategory]scene.IDSet),
	}
}

func (ix *Index) add(elementID, modelID, categoryID string) {
	m, ok := ix.byModel[modelID]
	if !ok {
		m = scene.NewIDSet()
		ix.byModel[modelID] = m
	}
	key := scene.ModelCategory{ModelID: modelID, CategoryID: categoryID}
	c, ok := ix.byCategory[key]
	if !ok {
		c = scene.NewIDSet()
		ix.byCategory[key] = c
	}
	if !m.Has(elementID) {
		ix.size++
	}
	m.Add(elementID)
	c.Add(elementID)
}

// Elements returns the overridden elements of a model, or of one of its
// categories when categoryID is set. The returned set is shared and must
// not be modified.
func (ix *Index) Elements(modelID, categoryID string) scene.IDSet {
	if categoryID == "" {
		return ix.byModel[modelID]
	}
	return ix.byCategory[scene.ModelCategory{ModelID: modelID, CategoryID: categoryID}]
}

// Len returns the number of indexed elements.
func (ix *Index) Len() int {
	return ix.size
}

// Stats reports rebuild activity of a Cache.
type Stats struct {
	Builds     int64 `json:"builds"`
	Superseded int64 `json:"superseded"`
	Failures   int64 `json:"failures"`
	Events     int64 `json:"events"`
	Elements   int   `json:"elements"`
	Pending    bool  `json:"pending"`
}

// Options configures a Cache.
type Options struct {
	Debounce  time.Duration
	BatchSize int
	Logger    *slog.Logger
}

// Option configures a Cache.
type Option func(*Options)

// WithDebounce sets the quiet period after change events.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Debounce = d
		}
	}
}

// WithBatchSize sets the IN list size for element info queries.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchSize = n
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// pending is the single slot every reader waits on while a rebuild is owed.
type pending struct {
	done chan struct{}
	idx  *Index
	err  error
}

func newPending() *pending {
	return &pending{done: make(chan struct{})}
}

// Cache maintains the index of one override set of one viewport.
//
// Thread Safety:
//
//	Cache is safe for concurrent use. Readers that arrive while a rebuild
//	is owed all wait for the same result.
type Cache struct {
	set    SetType
	src    query.Source
	vp     viewport.Viewport
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *Index
	gen     uint64
	pending *pending
	kick    bool
	closed  bool

	debounced   func(f func())
	flight      singleflight.Group
	unsubscribe func()

	builds     atomic.Int64
	superseded atomic.Int64
	failures   atomic.Int64
	events     atomic.Int64
}

// NewCache subscribes to vp and returns the cache for one override set.
//
// Description:
//
//	When the set is non-empty at construction the first Get builds the
//	index. An empty set yields an empty index until a change event.
func NewCache(src query.Source, vp viewport.Viewport, set SetType, opts ...Option) *Cache {
	o := Options{
		Debounce:  DefaultDebounce,
		BatchSize: DefaultBatchSize,
		Logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		set:       set,
		src:       src,
		vp:        vp,
		opts:      o,
		logger:    o.Logger.With(slog.String("component", "overrides"), slog.String("set", set.String())),
		ctx:       ctx,
		cancel:    cancel,
		debounced: debounce.New(o.Debounce),
	}

	if c.raw().Len() > 0 {
		c.gen = 1
		c.pending = newPending()
		c.kick = true
	} else {
		c.current = newIndex()
	}

	want := viewport.EventAlwaysDrawn
	if set == SetNever {
		want = viewport.EventNeverDrawn
	}
	c.unsubscribe = vp.Subscribe(func(ev viewport.Event) {
		if ev.Kind == want {
			c.Invalidate()
		}
	})
	return c
}

// Get returns the current index, waiting for an owed rebuild.
func (c *Cache) Get(ctx context.Context) (*Index, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.pending == nil && c.current != nil {
		cur := c.current
		c.mu.Unlock()
		return cur, nil
	}
	if c.pending == nil {
		// The last rebuild failed; build again on demand.
		c.gen++
		c.pending = newPending()
		c.kick = true
	}
	p := c.pending
	kick := c.kick
	c.kick = false
	c.mu.Unlock()

	if kick {
		go c.rebuild()
	}

	select {
	case <-p.done:
		return p.idx, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetElements returns the overridden elements of a model or a (model,
// category) pair. The returned set must not be modified.
func (c *Cache) GetElements(ctx context.Context, modelID, categoryID string) (scene.IDSet, error) {
	ix, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Elements(modelID, categoryID), nil
}

// Invalidate schedules a debounced rebuild. Readers wait for it from now on.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.pending == nil {
		c.pending = newPending()
	}
	c.kick = false
	gen := c.gen
	c.mu.Unlock()

	c.events.Add(1)
	recordScheduled(c.ctx, c.set)
	c.logger.Debug("override rebuild scheduled", slog.Uint64("generation", gen))
	c.debounced(c.rebuild)
}

// Close unsubscribes from the viewport and fails waiting readers with
// ErrClosed. In-flight rebuild results are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.pending != nil {
		c.pending.err = ErrClosed
		close(c.pending.done)
		c.pending = nil
	}
	c.current = nil
	c.mu.Unlock()

	c.unsubscribe()
	c.cancel()
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	cur, isPending := c.current, c.pending != nil
	c.mu.Unlock()

	st := Stats{
		Builds:     c.builds.Load(),
		Superseded: c.superseded.Load(),
		Failures:   c.failures.Load(),
		Events:     c.events.Load(),
		Pending:    isPending,
	}
	if cur != nil {
		st.Elements = cur.Len()
	}
	return st
}

func (c *Cache) raw() scene.IDSet {
	if c.set == SetNever {
		return c.vp.NeverDrawn()
	}
	return c.vp.AlwaysDrawn()
}

// rebuild builds the index for the latest generation and commits it unless
// a newer change arrived meanwhile.
func (c *Cache) rebuild() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.mu.Unlock()

	_, _, _ = c.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		idx, err := c.build(c.ctx, gen)
		c.commit(gen, idx, err)
		return nil, nil
	})
}

func (c *Cache) commit(gen uint64, idx *Index, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if gen != c.gen {
		c.superseded.Add(1)
		recordSuperseded(c.ctx, c.set)
		c.logger.Warn("discarding superseded override rebuild",
			slog.Uint64("generation", gen),
			slog.Uint64("latest", c.gen),
		)
		return
	}

	p := c.pending
	c.pending = nil
	if err != nil {
		c.failures.Add(1)
		c.current = nil
		c.logger.Error("override rebuild failed",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)
	} else {
		c.current = idx
	}
	if p != nil {
		p.idx, p.err = idx, err
		close(p.done)
	}
}

func (c *Cache) build(ctx context.Context, gen uint64) (idx *Index, err error) {
	start := time.Now()
	ctx, span := startRebuildSpan(ctx, c.set, gen)
	defer func() {
		recordRebuild(ctx, c.set, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	c.builds.Add(1)
	idx = newIndex()
	ids := c.raw().Sorted()
	for _, chunk := range lo.Chunk(ids, c.opts.BatchSize) {
		stmt := query.StmtElementInfo.WithInList(len(chunk))
		err := query.Each(ctx, c.src, stmt, query.Args(chunk), func(r query.Rows) error {
			var id, model, category string
			if err := r.Scan(&id, &model, &category); err != nil {
				return err
			}
			idx.add(id, model, category)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("rebuild %s-drawn index: %w", c.set, err)
		}
	}

	c.logger.Debug("override index rebuilt",
		slog.Uint64("generation", gen),
		slog.Int("requested", len(ids)),
		slog.Int("resolved", idx.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return idx, nil
}
