// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine computes tri-state visibility for scene nodes and applies
// visibility changes to a viewport.
//
// Reads combine the viewport's coarse display state with the hierarchy
// index and the override caches; no read is proportional to the number of
// elements in the scene. Writes mutate the viewport only. Caches learn about
// the writes through the viewport's change events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/scenevis/services/visibility/overrides"
	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

// DefaultFilterRowLimit bounds queries issued while resolving filtered
// nodes.
const DefaultFilterRowLimit = 10000

// Hierarchy is the part of the hierarchy index the engine reads.
type Hierarchy interface {
	GetSubjectModelIDs(ctx context.Context, subjects []string) ([]string, error)
	GetModelCategories(ctx context.Context, modelID string) ([]string, error)
	GetCategoryModels(ctx context.Context, categoryID string) ([]string, error)
	GetCategoryElementCount(ctx context.Context, modelID, categoryID string) (int, error)
	GetElementDescendants(ctx context.Context, ids []string, opts ...query.Option) ([]string, error)
}

// Overrides resolves override sets by model and category.
type Overrides interface {
	GetElements(ctx context.Context, req overrides.Request) (scene.IDSet, error)
}

// Config wires an Engine.
type Config struct {
	Viewport   viewport.Viewport
	Hierarchy  Hierarchy
	Overrides  Overrides
	Classifier *Classifier

	StatusHooks StatusHooks
	ChangeHooks ChangeHooks

	// FilterRowLimit bounds descendant queries of filtered writes. Zero
	// selects DefaultFilterRowLimit; negative disables the bound.
	FilterRowLimit int

	Logger *slog.Logger
}

// Engine answers visibility queries and applies visibility changes for one
// viewport.
//
// Thread Safety: reads may run concurrently with each other. Changes must be
// serialized by the caller.
type Engine struct {
	vp          viewport.Viewport
	hierarchy   Hierarchy
	overrides   Overrides
	classifier  *Classifier
	statusHooks StatusHooks
	changeHooks ChangeHooks
	rowLimit    int
	logger      *slog.Logger
}

// New validates cfg and creates an Engine. A nil Classifier classifies with
// DefaultClassSpecs and no base-class lookups.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Viewport == nil:
		return nil, fmt.Errorf("%w: viewport is required", ErrInvalidConfig)
	case cfg.Hierarchy == nil:
		return nil, fmt.Errorf("%w: hierarchy is required", ErrInvalidConfig)
	case cfg.Overrides == nil:
		return nil, fmt.Errorf("%w: overrides are required", ErrInvalidConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewClassifier(nil, DefaultClassSpecs(), 0)
	}
	limit := cfg.FilterRowLimit
	if limit == 0 {
		limit = DefaultFilterRowLimit
	}
	return &Engine{
		vp:          cfg.Viewport,
		hierarchy:   cfg.Hierarchy,
		overrides:   cfg.Overrides,
		classifier:  classifier,
		statusHooks: cfg.StatusHooks,
		changeHooks: cfg.ChangeHooks,
		rowLimit:    limit,
		logger:      logger.With(slog.String("component", "engine")),
	}, nil
}

// checkNode rejects nodes the engine cannot evaluate.
func (e *Engine) checkNode(op string, node scene.NodeRef) error {
	if err := node.Validate(); err != nil {
		e.logger.Error("visibility contract violation",
			slog.String("operation", op),
			slog.String("node", node.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w: %w", op, ErrContractViolation, err)
	}
	return nil
}

// limitOpts returns the row ceiling for filter-scoped queries.
func (e *Engine) limitOpts() []query.Option {
	if e.rowLimit < 0 {
		return nil
	}
	return []query.Option{query.WithRowLimit(e.rowLimit)}
}

// translateLimit maps a row ceiling hit to ErrTooManyFilterMatches.
func translateLimit(err error) error {
	if err == nil {
		return nil
	}
	var le *query.LimitError
	if errors.As(err, &le) {
		return fmt.Errorf("%w: %s exceeded %d rows", ErrTooManyFilterMatches, le.Statement, le.Limit)
	}
	if errors.Is(err, query.ErrRowLimitExceeded) {
		return fmt.Errorf("%w: %w", ErrTooManyFilterMatches, err)
	}
	return err
}

// categoryDefault returns whether the category is shown when no element
// override applies: the per-model-category override if set, otherwise the
// category selector.
func (e *Engine) categoryDefault(modelID, categoryID string) (bool, string) {
	switch e.vp.PerModelCategoryOverride(modelID, categoryID) {
	case scene.CategoryOverrideShow:
		return true, scene.ReasonCategoryOverride
	case scene.CategoryOverrideHide:
		return false, scene.ReasonCategoryOverride
	default:
		return e.vp.ViewsCategory(categoryID), scene.ReasonCategorySelector
	}
}

func (e *Engine) overrideSets(ctx context.Context, modelID, categoryID string) (always, never scene.IDSet, err error) {
	always, err = e.overrides.GetElements(ctx, overrides.Request{SetType: overrides.SetAlways, ModelID: modelID, CategoryID: categoryID})
	if err != nil {
		return nil, nil, fmt.Errorf("read always-drawn overrides: %w", err)
	}
	never, err = e.overrides.GetElements(ctx, overrides.Request{SetType: overrides.SetNever, ModelID: modelID, CategoryID: categoryID})
	if err != nil {
		return nil, nil, fmt.Errorf("read never-drawn overrides: %w", err)
	}
	return always, never, nil
}
