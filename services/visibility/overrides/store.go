// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package overrides

import (
	"context"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

// Request selects the overridden elements of a model, or of a (model,
// category) pair when CategoryID is set.
type Request struct {
	SetType    SetType
	ModelID    string
	CategoryID string
}

// Store pairs the always-drawn and never-drawn caches of one viewport. The
// two rebuild independently.
type Store struct {
	Always *Cache
	Never  *Cache
}

// NewStore creates both caches for vp.
func NewStore(src query.Source, vp viewport.Viewport, opts ...Option) *Store {
	return &Store{
		Always: NewCache(src, vp, SetAlways, opts...),
		Never:  NewCache(src, vp, SetNever, opts...),
	}
}

// GetElements returns the elements matching req. The returned set must not
// be modified.
func (s *Store) GetElements(ctx context.Context, req Request) (scene.IDSet, error) {
	return s.cache(req.SetType).GetElements(ctx, req.ModelID, req.CategoryID)
}

// Invalidate schedules a rebuild of both caches, used when element rows
// change underneath unchanged id sets.
func (s *Store) Invalidate() {
	s.Always.Invalidate()
	s.Never.Invalidate()
}

// Close closes both caches.
func (s *Store) Close() {
	s.Always.Close()
	s.Never.Close()
}

func (s *Store) cache(t SetType) *Cache {
	if t == SetNever {
		return s.Never
	}
	return s.Always
}
