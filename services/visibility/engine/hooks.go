// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// StatusFunc computes a status.
type StatusFunc func(ctx context.Context) (scene.Status, error)

// ChangeFunc applies a change.
type ChangeFunc func(ctx context.Context) error

// StatusHook replaces the status computation for one node kind. The hook
// receives the node's parameters and the built-in computation as original;
// its result is authoritative.
type StatusHook[P any] func(ctx context.Context, params P, original StatusFunc) (scene.Status, error)

// ChangeHook replaces the change for one node kind, with the built-in change
// as original.
type ChangeHook[P any] func(ctx context.Context, params P, on bool, original ChangeFunc) error

// SubjectParams identifies subject nodes.
type SubjectParams struct {
	SubjectIDs []string
}

// ModelParams identifies a model node.
type ModelParams struct {
	ModelID string
}

// CategoryParams identifies a category node within a model.
type CategoryParams struct {
	ModelID    string
	CategoryID string
}

// ElementParams identifies an element node.
type ElementParams struct {
	ModelID     string
	CategoryID  string
	ElementID   string
	HasChildren bool
}

// GroupParams identifies a class grouping node.
type GroupParams struct {
	ModelID    string
	CategoryID string
	ElementIDs []string
}

// StatusHooks holds the optional status hooks. Nil fields use the built-in
// computation.
type StatusHooks struct {
	Subject  StatusHook[SubjectParams]
	Model    StatusHook[ModelParams]
	Category StatusHook[CategoryParams]
	Element  StatusHook[ElementParams]
	Group    StatusHook[GroupParams]
}

// ChangeHooks holds the optional change hooks. Nil fields use the built-in
// change.
type ChangeHooks struct {
	Subject  ChangeHook[SubjectParams]
	Model    ChangeHook[ModelParams]
	Category ChangeHook[CategoryParams]
	Element  ChangeHook[ElementParams]
	Group    ChangeHook[GroupParams]
}

func runStatus[P any](ctx context.Context, hook StatusHook[P], params P, original StatusFunc) (scene.Status, error) {
	if hook == nil {
		return original(ctx)
	}
	return hook(ctx, params, original)
}

func runChange[P any](ctx context.Context, hook ChangeHook[P], params P, on bool, original ChangeFunc) error {
	if hook == nil {
		return original(ctx)
	}
	return hook(ctx, params, on, original)
}
