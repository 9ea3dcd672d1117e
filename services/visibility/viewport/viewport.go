// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package viewport defines the display-state contract the visibility engine
// reads and mutates, and an in-memory implementation of it.
package viewport

import "github.com/AleutianAI/scenevis/services/visibility/scene"

// EventKind identifies which part of a viewport's display state changed.
type EventKind int

const (
	// EventModelDisplay fires when the set of displayed models changes.
	EventModelDisplay EventKind = iota

	// EventCategoryDisplay fires when the category selector changes.
	EventCategoryDisplay

	// EventPerModelCategoryOverride fires when per-(model, category)
	// overrides change.
	EventPerModelCategoryOverride

	// EventAlwaysDrawn fires when the always-drawn set or its exclusive
	// flag changes.
	EventAlwaysDrawn

	// EventNeverDrawn fires when the never-drawn set changes.
	EventNeverDrawn
)

func (k EventKind) String() string {
	switch k {
	case EventModelDisplay:
		return "model_display"
	case EventCategoryDisplay:
		return "category_display"
	case EventPerModelCategoryOverride:
		return "per_model_category_override"
	case EventAlwaysDrawn:
		return "always_drawn"
	case EventNeverDrawn:
		return "never_drawn"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after a mutation is applied.
type Event struct {
	Kind EventKind
}

// Listener receives viewport events synchronously on the mutating goroutine.
type Listener func(Event)

// Viewport is the abstract, mutable display state of one view.
//
// Every mutating method fires at most one event, and none when the call
// leaves the state unchanged. AlwaysDrawn and NeverDrawn return snapshots
// that callers must not modify.
type Viewport interface {
	// IsSpatial reports whether the view displays spatial models at all.
	IsSpatial() bool

	ViewsModel(modelID string) bool
	ChangeModelDisplay(modelIDs []string, on bool)

	// ViewsCategory reports the category selector's state for categoryID.
	ViewsCategory(categoryID string) bool
	ChangeCategoryDisplay(categoryIDs []string, on bool)

	PerModelCategoryOverride(modelID, categoryID string) scene.CategoryOverride
	SetPerModelCategoryOverride(modelIDs, categoryIDs []string, override scene.CategoryOverride)
	ClearPerModelCategoryOverrides(modelIDs []string)

	AlwaysDrawn() scene.IDSet
	NeverDrawn() scene.IDSet
	IsAlwaysDrawnExclusive() bool
	SetAlwaysDrawn(ids scene.IDSet, exclusive bool)
	ClearAlwaysDrawn()
	SetNeverDrawn(ids scene.IDSet)
	ClearNeverDrawn()

	// Subscribe registers l and returns a function that removes it.
	Subscribe(l Listener) (unsubscribe func())
}
