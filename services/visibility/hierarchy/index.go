// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy provides the memoized structural index of a scene:
// subjects, the models they own, model categories and element counts.
//
// The index is built once on first access from a handful of full-scan
// queries and is never patched. A structural data change calls Invalidate,
// which drops the index and every count cached against it; the next read
// rebuilds it.
package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// DefaultDescendantBatchSize bounds the IN list of one descendants query.
const DefaultDescendantBatchSize = 500

// SubjectInfo describes one subject in the index.
type SubjectInfo struct {
	ID              string   `json:"id"`
	ParentSubject   string   `json:"parent,omitempty"`
	HideInHierarchy bool     `json:"hide_in_hierarchy,omitempty"`
	ChildSubjects   []string `json:"child_subjects,omitempty"`
	ChildModels     []string `json:"child_models,omitempty"`
}

// ModelInfo describes one non-private model in the index.
type ModelInfo struct {
	ID           string   `json:"id"`
	Subject      string   `json:"subject"`
	Categories   []string `json:"categories,omitempty"`
	ElementCount int      `json:"element_count"`
}

// Stats reports index activity.
type Stats struct {
	Builds       int64  `json:"builds"`
	CountQueries int64  `json:"count_queries"`
	Version      uint64 `json:"version"`
	Built        bool   `json:"built"`
	Subjects     int    `json:"subjects"`
	Models       int    `json:"models"`
	Cycles       int    `json:"cycles"`
}

// Options configures an Index.
type Options struct {
	DescendantBatchSize int
	Logger              *slog.Logger
}

// Option configures an Index.
type Option func(*Options)

// WithDescendantBatchSize sets the IN list size for descendant queries.
func WithDescendantBatchSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.DescendantBatchSize = n
		}
	}
}

// WithLogger sets the index logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Index is the lazily built hierarchy index over one query source.
//
// Thread Safety:
//
//	Index is safe for concurrent use. Concurrent first reads share one
//	build through singleflight; a build that finishes after Invalidate is
//	returned to its callers but never committed.
type Index struct {
	src    query.Source
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	current *snapshot
	version uint64

	flight      singleflight.Group
	countFlight singleflight.Group

	builds       atomic.Int64
	countQueries atomic.Int64
}

type snapshot struct {
	version        uint64
	root           string
	subjects       map[string]*SubjectInfo
	models         map[string]*ModelInfo
	categoryModels map[string][]string
	cycles         int

	parentsOnce sync.Once
	parents     []string

	countsMu sync.RWMutex
	counts   map[scene.ModelCategory]int
}

// New creates an index over src. Nothing is queried until the first read.
func New(src query.Source, opts ...Option) *Index {
	o := Options{
		DescendantBatchSize: DefaultDescendantBatchSize,
		Logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Index{
		src:    src,
		opts:   o,
		logger: o.Logger.With(slog.String("component", "hierarchy")),
	}
}

// Invalidate drops the current index and its cached category counts.
func (x *Index) Invalidate() {
	x.mu.Lock()
	x.version++
	x.current = nil
	v := x.version
	x.mu.Unlock()
	x.logger.Debug("hierarchy index invalidated", slog.Uint64("version", v))
}

// Stats returns a snapshot of index activity.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	snap, version := x.current, x.version
	x.mu.RUnlock()

	st := Stats{
		Builds:       x.builds.Load(),
		CountQueries: x.countQueries.Load(),
		Version:      version,
	}
	if snap != nil {
		st.Built = true
		st.Subjects = len(snap.subjects)
		st.Models = len(snap.models)
		st.Cycles = snap.cycles
	}
	return st
}

// RootSubjectID returns the id of the scene's root subject.
func (x *Index) RootSubjectID(ctx context.Context) (string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return "", err
	}
	if snap.root == "" {
		return "", ErrNoRootSubject
	}
	return snap.root, nil
}

// Subject returns a copy of the subject's info.
func (x *Index) Subject(ctx context.Context, id string) (SubjectInfo, bool, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return SubjectInfo{}, false, err
	}
	s, ok := snap.subjects[id]
	if !ok {
		return SubjectInfo{}, false, nil
	}
	out := *s
	out.ChildSubjects = append([]string(nil), s.ChildSubjects...)
	out.ChildModels = append([]string(nil), s.ChildModels...)
	return out, true, nil
}

// Model returns a copy of the model's info.
func (x *Index) Model(ctx context.Context, id string) (ModelInfo, bool, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return ModelInfo{}, false, err
	}
	m, ok := snap.models[id]
	if !ok {
		return ModelInfo{}, false, nil
	}
	out := *m
	out.Categories = append([]string(nil), m.Categories...)
	return out, true, nil
}

// GetParentSubjectIDs returns the subjects that have at least one model
// somewhere beneath them, sorted. The list is derived on first request and
// memoized with the index.
func (x *Index) GetParentSubjectIDs(ctx context.Context) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	snap.parentsOnce.Do(func() {
		parents := scene.NewIDSet()
		for id, s := range snap.subjects {
			if len(s.ChildModels) == 0 {
				continue
			}
			// Broken parent links were cut at build time, so the walk ends.
			for cur := id; cur != "" && !parents.Has(cur); {
				parents.Add(cur)
				info, ok := snap.subjects[cur]
				if !ok {
					break
				}
				cur = info.ParentSubject
			}
		}
		snap.parents = parents.Sorted()
	})
	return append([]string(nil), snap.parents...), nil
}

// GetChildSubjectIDs returns the displayable child subjects of parents.
//
// Description:
//
//	Subjects flagged HideInHierarchy are skipped and their own children
//	surface in their place, recursively. The result follows the parents'
//	order and contains no duplicates.
func (x *Index) GetChildSubjectIDs(ctx context.Context, parents []string) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	var visit func(id string)
	visit = func(id string) {
		s, ok := snap.subjects[id]
		if !ok {
			return
		}
		for _, child := range s.ChildSubjects {
			if c, ok := snap.subjects[child]; ok && c.HideInHierarchy {
				visit(child)
				continue
			}
			if _, dup := seen[child]; !dup {
				seen[child] = struct{}{}
				out = append(out, child)
			}
		}
	}
	for _, p := range parents {
		visit(p)
	}
	return out, nil
}

// GetChildSubjectModelIDs returns the models displayed directly under
// parents, sorted. These are the parents' own models plus those of any
// HideInHierarchy subjects beneath them, recursively.
func (x *Index) GetChildSubjectModelIDs(ctx context.Context, parents []string) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	models := scene.NewIDSet()
	visited := scene.NewIDSet()
	var visit func(id string)
	visit = func(id string) {
		if visited.Has(id) {
			return
		}
		visited.Add(id)
		s, ok := snap.subjects[id]
		if !ok {
			return
		}
		models.Add(s.ChildModels...)
		for _, child := range s.ChildSubjects {
			if c, ok := snap.subjects[child]; ok && c.HideInHierarchy {
				visit(child)
			}
		}
	}
	for _, p := range parents {
		visit(p)
	}
	return models.Sorted(), nil
}

// GetSubjectModelIDs returns every model owned by subjects or any of their
// descendant subjects, sorted.
func (x *Index) GetSubjectModelIDs(ctx context.Context, subjects []string) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	models := scene.NewIDSet()
	visited := scene.NewIDSet()
	var visit func(id string)
	visit = func(id string) {
		if visited.Has(id) {
			return
		}
		visited.Add(id)
		s, ok := snap.subjects[id]
		if !ok {
			return
		}
		models.Add(s.ChildModels...)
		for _, child := range s.ChildSubjects {
			visit(child)
		}
	}
	for _, id := range subjects {
		visit(id)
	}
	return models.Sorted(), nil
}

// GetModelCategories returns the categories of the model's root elements.
func (x *Index) GetModelCategories(ctx context.Context, modelID string) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := snap.models[modelID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), m.Categories...), nil
}

// GetCategoryModels returns the models containing root elements of the
// category.
func (x *Index) GetCategoryModels(ctx context.Context, categoryID string) ([]string, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), snap.categoryModels[categoryID]...), nil
}

// GetModelElementCount returns the number of elements in the model.
func (x *Index) GetModelElementCount(ctx context.Context, modelID string) (int, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return 0, err
	}
	if m, ok := snap.models[modelID]; ok {
		return m.ElementCount, nil
	}
	return 0, nil
}

// GetCategoryElementCount returns the number of elements of the category's
// roots in the model plus all of their descendants.
//
// Description:
//
//	The count is queried on first request and cached with the current
//	index. Concurrent requests for the same pair share one query.
func (x *Index) GetCategoryElementCount(ctx context.Context, modelID, categoryID string) (int, error) {
	snap, err := x.load(ctx)
	if err != nil {
		return 0, err
	}
	key := scene.ModelCategory{ModelID: modelID, CategoryID: categoryID}

	snap.countsMu.RLock()
	n, ok := snap.counts[key]
	snap.countsMu.RUnlock()
	if ok {
		return n, nil
	}

	flightKey := strconv.FormatUint(snap.version, 10) + "\x00" + modelID + "\x00" + categoryID
	v, err, _ := x.countFlight.Do(flightKey, func() (any, error) {
		var count int
		err := query.Each(ctx, x.src, query.StmtCategoryElementCount, []any{modelID, categoryID}, func(r query.Rows) error {
			return r.Scan(&count)
		})
		if err != nil {
			return 0, err
		}
		x.countQueries.Add(1)
		recordCountQuery(ctx)

		snap.countsMu.Lock()
		snap.counts[key] = count
		snap.countsMu.Unlock()
		return count, nil
	})
	if err != nil {
		return 0, fmt.Errorf("count elements of %s/%s: %w", modelID, categoryID, err)
	}
	return v.(int), nil
}

// GetElementDescendants returns all transitive child elements of ids. Ids
// are queried in batches of DescendantBatchSize; opts apply to every batch.
func (x *Index) GetElementDescendants(ctx context.Context, ids []string, opts ...query.Option) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	for _, chunk := range lo.Chunk(ids, x.opts.DescendantBatchSize) {
		stmt := query.StmtElementDescendants.WithInList(len(chunk))
		err := query.Each(ctx, x.src, stmt, query.Args(chunk), func(r query.Rows) error {
			var id string
			if err := r.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
			return nil
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("query element descendants: %w", err)
		}
	}
	return lo.Uniq(out), nil
}

// load returns the current snapshot, building it if needed.
func (x *Index) load(ctx context.Context) (*snapshot, error) {
	x.mu.RLock()
	snap, version := x.current, x.version
	x.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	v, err, shared := x.flight.Do(strconv.FormatUint(version, 10), func() (any, error) {
		x.mu.RLock()
		if x.current != nil && x.current.version == version {
			cur := x.current
			x.mu.RUnlock()
			return cur, nil
		}
		x.mu.RUnlock()

		built, err := x.build(ctx, version)
		if err != nil {
			return nil, err
		}

		x.mu.Lock()
		if x.version == version {
			x.current = built
		} else {
			x.logger.Warn("discarding superseded hierarchy build",
				slog.Uint64("built_version", version),
				slog.Uint64("current_version", x.version),
			)
		}
		x.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		x.logger.Debug("joined in-flight hierarchy build", slog.Uint64("version", version))
	}
	return v.(*snapshot), nil
}

type subjectRow struct {
	id, parent, target string
	hide               bool
}

type modelRow struct {
	id, subject string
}

// build runs the index queries in parallel and assembles a snapshot.
func (x *Index) build(ctx context.Context, version uint64) (snap *snapshot, err error) {
	start := time.Now()
	ctx, span := startBuildSpan(ctx, version)
	defer func() {
		recordBuild(ctx, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var (
		subjects   []subjectRow
		models     []modelRow
		categories []scene.ModelCategory
		counts     = make(map[string]int)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return query.Each(gctx, x.src, query.StmtSubjects, nil, func(r query.Rows) error {
			var row subjectRow
			var hide int
			if err := r.Scan(&row.id, &row.parent, &hide, &row.target); err != nil {
				return err
			}
			row.hide = hide != 0
			subjects = append(subjects, row)
			return nil
		})
	})
	g.Go(func() error {
		return query.Each(gctx, x.src, query.StmtModels, nil, func(r query.Rows) error {
			var row modelRow
			if err := r.Scan(&row.id, &row.subject); err != nil {
				return err
			}
			models = append(models, row)
			return nil
		})
	})
	g.Go(func() error {
		return query.Each(gctx, x.src, query.StmtModelCategories, nil, func(r query.Rows) error {
			var mc scene.ModelCategory
			if err := r.Scan(&mc.ModelID, &mc.CategoryID); err != nil {
				return err
			}
			categories = append(categories, mc)
			return nil
		})
	})
	g.Go(func() error {
		return query.Each(gctx, x.src, query.StmtModelElementCounts, nil, func(r query.Rows) error {
			var id string
			var n int
			if err := r.Scan(&id, &n); err != nil {
				return err
			}
			counts[id] = n
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build hierarchy index: %w", err)
	}

	snap = x.assemble(version, subjects, models, categories, counts)
	recordCycles(ctx, snap.cycles)
	x.builds.Add(1)

	x.logger.Info("hierarchy index built",
		slog.Uint64("version", version),
		slog.Int("subjects", len(snap.subjects)),
		slog.Int("models", len(snap.models)),
		slog.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

func (x *Index) assemble(version uint64, subjectRows []subjectRow, modelRows []modelRow, categories []scene.ModelCategory, counts map[string]int) *snapshot {
	snap := &snapshot{
		version:        version,
		subjects:       make(map[string]*SubjectInfo, len(subjectRows)),
		models:         make(map[string]*ModelInfo, len(modelRows)),
		categoryModels: make(map[string][]string),
		counts:         make(map[scene.ModelCategory]int),
	}

	for _, row := range subjectRows {
		snap.subjects[row.id] = &SubjectInfo{
			ID:              row.id,
			ParentSubject:   row.parent,
			HideInHierarchy: row.hide,
		}
	}

	detached := x.detachBrokenParents(snap)

	var roots []string
	for id, s := range snap.subjects {
		if s.ParentSubject != "" {
			parent := snap.subjects[s.ParentSubject]
			parent.ChildSubjects = append(parent.ChildSubjects, id)
			continue
		}
		if !detached.Has(id) {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	if len(roots) > 0 {
		snap.root = roots[0]
	}
	if len(roots) > 1 {
		x.logger.Warn("scene has more than one root subject",
			slog.String("root", snap.root),
			slog.Any("ignored", roots[1:]),
		)
	}

	for _, row := range modelRows {
		snap.models[row.id] = &ModelInfo{ID: row.id, Subject: row.subject}
	}
	// A subject presenting a model as its target partition owns it.
	for _, row := range subjectRows {
		if row.target == "" {
			continue
		}
		if m, ok := snap.models[row.target]; ok {
			m.Subject = row.id
		}
	}
	for id, m := range snap.models {
		m.ElementCount = counts[id]
		s, ok := snap.subjects[m.Subject]
		if !ok {
			x.logger.Warn("model references unknown subject",
				slog.String("model", id),
				slog.String("subject", m.Subject),
			)
			continue
		}
		s.ChildModels = append(s.ChildModels, id)
	}

	for _, mc := range categories {
		m, ok := snap.models[mc.ModelID]
		if !ok {
			continue
		}
		m.Categories = append(m.Categories, mc.CategoryID)
		snap.categoryModels[mc.CategoryID] = append(snap.categoryModels[mc.CategoryID], mc.ModelID)
	}

	for _, s := range snap.subjects {
		sort.Strings(s.ChildSubjects)
		sort.Strings(s.ChildModels)
	}
	for _, m := range snap.models {
		sort.Strings(m.Categories)
	}
	for cat := range snap.categoryModels {
		sort.Strings(snap.categoryModels[cat])
	}
	return snap
}

// detachBrokenParents clears parent links that point at unknown subjects or
// close a cycle. The affected subjects are returned; they are unreachable
// from the root afterwards.
func (x *Index) detachBrokenParents(snap *snapshot) scene.IDSet {
	detached := scene.NewIDSet()

	ids := make([]string, 0, len(snap.subjects))
	for id := range snap.subjects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := snap.subjects[id]
		if s.ParentSubject != "" && snap.subjects[s.ParentSubject] == nil {
			x.logger.Warn("subject references unknown parent",
				slog.String("subject", id),
				slog.String("parent", s.ParentSubject),
			)
			s.ParentSubject = ""
			detached.Add(id)
		}
	}

	const (
		unvisited = iota
		inPath
		done
	)
	state := make(map[string]int, len(snap.subjects))
	for _, start := range ids {
		var path []string
		cur := start
		for cur != "" && state[cur] == unvisited {
			state[cur] = inPath
			path = append(path, cur)
			cur = snap.subjects[cur].ParentSubject
		}
		if cur != "" && state[cur] == inPath {
			last := path[len(path)-1]
			cycle := path[lo.IndexOf(path, cur):]
			x.logger.Warn("subject parent cycle detected",
				slog.Any("cycle", cycle),
				slog.String("severed", last),
			)
			snap.subjects[last].ParentSubject = ""
			detached.Add(last)
			snap.cycles++
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return detached
}
