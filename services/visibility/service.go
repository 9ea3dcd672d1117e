// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package visibility serves tri-state scene visibility over HTTP.
//
// A Service owns one shared hierarchy.Index per scene source and one Session
// per client viewport. Each session wires an in-memory viewport, its
// always/never-drawn override store, a change coordinator and an engine.
package visibility

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/scenevis/services/visibility/coordinator"
	"github.com/AleutianAI/scenevis/services/visibility/engine"
	"github.com/AleutianAI/scenevis/services/visibility/hierarchy"
	"github.com/AleutianAI/scenevis/services/visibility/overrides"
	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

// ServiceConfig tunes sessions created by a Service.
type ServiceConfig struct {
	// OverrideDebounce is the quiet period before override caches rebuild.
	OverrideDebounce time.Duration

	// EventDebounce is the coalescing window for change notifications.
	EventDebounce time.Duration

	// RowLimit bounds filter-resolution queries. See engine.Config.
	RowLimit int

	// Classes selects the structural class specs. Zero value uses
	// engine.DefaultClassSpecs.
	Classes *engine.ClassSpecs

	Logger *slog.Logger
}

// DefaultServiceConfig returns the standard debounce windows.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		OverrideDebounce: overrides.DefaultDebounce,
		EventDebounce:    coordinator.DefaultDebounce,
		RowLimit:         engine.DefaultFilterRowLimit,
	}
}

// Session is the visibility state of one client viewport.
type Session struct {
	ID        string
	CreatedAt time.Time

	Viewport    *viewport.Memory
	Overrides   *overrides.Store
	Coordinator *coordinator.Coordinator
	Engine      *engine.Engine

	// changes serializes ChangeVisibility calls.
	changes sync.Mutex
	done    chan struct{}
}

// Done is closed when the session is removed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.Coordinator.Close()
	s.Overrides.Close()
	close(s.done)
}

// Service manages viewport sessions over one query source.
//
// Thread Safety: Service is safe for concurrent use.
type Service struct {
	src        query.Source
	index      *hierarchy.Index
	classifier *engine.Classifier
	cfg        ServiceConfig
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewService creates a Service reading the scene from src.
func NewService(src query.Source, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	specs := engine.DefaultClassSpecs()
	if cfg.Classes != nil {
		specs = *cfg.Classes
	}
	return &Service{
		src:        src,
		index:      hierarchy.New(src, hierarchy.WithLogger(logger)),
		classifier: engine.NewClassifier(src, specs, cfg.RowLimit),
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "visibility_service")),
		sessions:   make(map[string]*Session),
	}
}

// Index returns the shared hierarchy index.
func (s *Service) Index() *hierarchy.Index {
	return s.index
}

// CreateSession registers a new viewport.
//
// Description:
//
//	Creates an in-memory viewport with the given displayed models and
//	categories and wires its override store, coordinator and engine.
//
// Outputs:
//
//	*Session - The new session. Its id is a random UUID.
//	error - ErrServiceClosed after Close.
func (s *Service) CreateSession(req CreateViewportRequest) (*Session, error) {
	spatial := true
	if req.Spatial != nil {
		spatial = *req.Spatial
	}
	id := uuid.NewString()
	logger := s.logger.With(slog.String("viewport_id", id))

	vp := viewport.NewMemory(
		viewport.WithSpatial(spatial),
		viewport.WithModels(req.Models...),
		viewport.WithCategories(req.Categories...),
		viewport.WithLogger(logger),
	)
	store := overrides.NewStore(s.src, vp,
		overrides.WithDebounce(s.cfg.OverrideDebounce),
		overrides.WithLogger(logger),
	)
	coord := coordinator.New(vp,
		coordinator.WithDebounce(s.cfg.EventDebounce),
		coordinator.WithInvalidators(store),
		coordinator.WithLogger(logger),
	)
	eng, err := engine.New(engine.Config{
		Viewport:       vp,
		Hierarchy:      s.index,
		Overrides:      store,
		Classifier:     s.classifier,
		FilterRowLimit: s.cfg.RowLimit,
		Logger:         logger,
	})
	if err != nil {
		coord.Close()
		store.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	sess := &Session{
		ID:          id,
		CreatedAt:   time.Now().UTC(),
		Viewport:    vp,
		Overrides:   store,
		Coordinator: coord,
		Engine:      eng,
		done:        make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.close()
		return nil, ErrServiceClosed
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Info("viewport created", slog.Bool("spatial", spatial), slog.Int("models", len(req.Models)))
	return sess, nil
}

// Session returns the session for id.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewportNotFound, id)
	}
	return sess, nil
}

// CloseSession removes and tears down the session for id.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewportNotFound, id)
	}
	sess.close()
	s.logger.Info("viewport closed", slog.String("viewport_id", id))
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DataChanged drops the shared hierarchy index once and signals every
// session coordinator, which invalidates the session's override caches.
func (s *Service) DataChanged() {
	s.index.Invalidate()
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()
	for _, sess := range sessions {
		sess.Coordinator.DataChanged()
	}
	s.logger.Debug("scene data changed", slog.Int("sessions", len(sessions)))
}

// Status answers the visibility of node in the session's viewport. A
// category node without a model id folds the category over every model
// containing it.
func (s *Service) Status(ctx context.Context, sess *Session, node scene.NodeRef) (scene.Status, error) {
	if !isModelless(node) {
		return sess.Engine.GetVisibilityStatus(ctx, node)
	}
	models, err := s.index.GetCategoryModels(ctx, node.CategoryID)
	if err != nil {
		return scene.Status{}, err
	}
	var agg scene.Aggregator
	for _, m := range models {
		n := node
		n.ModelID = m
		st, err := sess.Engine.GetVisibilityStatus(ctx, n)
		if err != nil {
			return scene.Status{}, err
		}
		if agg.Add(st.State) {
			break
		}
	}
	return agg.Status(), nil
}

// Change applies a visibility change in the session's viewport. Changes on
// one session are serialized.
func (s *Service) Change(ctx context.Context, sess *Session, node scene.NodeRef, on bool) error {
	sess.changes.Lock()
	defer sess.changes.Unlock()

	if !isModelless(node) {
		return sess.Engine.ChangeVisibility(ctx, node, on)
	}
	models, err := s.index.GetCategoryModels(ctx, node.CategoryID)
	if err != nil {
		return err
	}
	for _, m := range models {
		n := node
		n.ModelID = m
		if err := sess.Engine.ChangeVisibility(ctx, n, on); err != nil {
			return err
		}
	}
	return nil
}

// ChildSubjects lists the displayable child subjects of parent, or of the
// root subject when parent is empty. Subjects with no model anywhere beneath
// them are left out. Models owned by hidden subjects are reported under the
// nearest visible ancestor.
func (s *Service) ChildSubjects(ctx context.Context, parent string) (SubjectsResponse, error) {
	if parent == "" {
		root, err := s.index.RootSubjectID(ctx)
		if err != nil {
			return SubjectsResponse{}, err
		}
		parent = root
	}
	parentIDs, err := s.index.GetParentSubjectIDs(ctx)
	if err != nil {
		return SubjectsResponse{}, err
	}
	withModels := scene.NewIDSet(parentIDs...)

	resp := SubjectsResponse{Parent: parent, Subjects: []SubjectEntry{}}
	if resp.Models, err = s.index.GetChildSubjectModelIDs(ctx, []string{parent}); err != nil {
		return SubjectsResponse{}, err
	}
	ids, err := s.index.GetChildSubjectIDs(ctx, []string{parent})
	if err != nil {
		return SubjectsResponse{}, err
	}
	for _, id := range ids {
		if !withModels.Has(id) {
			continue
		}
		models, err := s.index.GetChildSubjectModelIDs(ctx, []string{id})
		if err != nil {
			return SubjectsResponse{}, err
		}
		children, err := s.index.GetChildSubjectIDs(ctx, []string{id})
		if err != nil {
			return SubjectsResponse{}, err
		}
		resp.Subjects = append(resp.Subjects, SubjectEntry{
			ID:          id,
			HasChildren: withModels.CountIn(children) > 0,
			Models:      models,
		})
	}
	return resp, nil
}

// Close tears down every session. Later calls return ErrServiceClosed.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func isModelless(node scene.NodeRef) bool {
	return node.Kind == scene.KindCategory && node.ModelID == "" && node.CategoryID != "" && !node.IsFiltered()
}
