// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scene

import "sort"

// IDSet is a set of scene ids.
type IDSet map[string]struct{}

// NewIDSet creates a set holding the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids into the set.
func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Remove deletes ids from the set.
func (s IDSet) Remove(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Len returns the number of ids.
func (s IDSet) Len() int {
	return len(s)
}

// Clone returns an independent copy. Cloning nil yields an empty set.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether s and o hold the same ids. Nil equals empty.
func (s IDSet) Equal(o IDSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// CountIn returns how many of ids are members of the set.
func (s IDSet) CountIn(ids []string) int {
	n := 0
	for _, id := range ids {
		if s.Has(id) {
			n++
		}
	}
	return n
}

// ModelCategory keys per-(model, category) maps.
type ModelCategory struct {
	ModelID    string
	CategoryID string
}

// CategoryOverride is the per-model-category display override stored by the
// viewport. CategoryOverrideNone means the plain category selector decides.
type CategoryOverride int

const (
	CategoryOverrideNone CategoryOverride = iota
	CategoryOverrideShow
	CategoryOverrideHide
)

// String returns the string representation of the override.
func (o CategoryOverride) String() string {
	switch o {
	case CategoryOverrideShow:
		return "show"
	case CategoryOverrideHide:
		return "hide"
	default:
		return "none"
	}
}
