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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

func recordEvents(m *Memory) (*[]EventKind, func()) {
	var got []EventKind
	unsubscribe := m.Subscribe(func(ev Event) {
		got = append(got, ev.Kind)
	})
	return &got, unsubscribe
}

func TestMemory_EachMutationFiresAtMostOneEvent(t *testing.T) {
	m := NewMemory()
	got, unsubscribe := recordEvents(m)
	defer unsubscribe()

	m.ChangeModelDisplay([]string{"m1", "m2"}, true)
	m.ChangeModelDisplay([]string{"m1"}, true) // no-op
	m.ChangeCategoryDisplay([]string{"c1"}, true)
	m.SetPerModelCategoryOverride([]string{"m1", "m2"}, []string{"c1", "c2"}, scene.CategoryOverrideHide)
	m.SetAlwaysDrawn(scene.NewIDSet("e1"), false)
	m.SetAlwaysDrawn(scene.NewIDSet("e1"), false) // no-op
	m.SetNeverDrawn(scene.NewIDSet("e2"))
	m.ClearNeverDrawn()
	m.ClearNeverDrawn() // no-op

	assert.Equal(t, []EventKind{
		EventModelDisplay,
		EventCategoryDisplay,
		EventPerModelCategoryOverride,
		EventAlwaysDrawn,
		EventNeverDrawn,
		EventNeverDrawn,
	}, *got)
}

func TestMemory_PerModelCategoryOverrides(t *testing.T) {
	m := NewMemory()
	m.SetPerModelCategoryOverride([]string{"m1", "m2"}, []string{"c1"}, scene.CategoryOverrideShow)

	assert.Equal(t, scene.CategoryOverrideShow, m.PerModelCategoryOverride("m1", "c1"))
	assert.Equal(t, scene.CategoryOverrideNone, m.PerModelCategoryOverride("m1", "c2"))

	m.ClearPerModelCategoryOverrides([]string{"m1"})
	assert.Equal(t, scene.CategoryOverrideNone, m.PerModelCategoryOverride("m1", "c1"))
	assert.Equal(t, scene.CategoryOverrideShow, m.PerModelCategoryOverride("m2", "c1"))

	m.SetPerModelCategoryOverride([]string{"m2"}, []string{"c1"}, scene.CategoryOverrideNone)
	assert.Equal(t, scene.CategoryOverrideNone, m.PerModelCategoryOverride("m2", "c1"))
}

func TestMemory_SnapshotsAreCopies(t *testing.T) {
	m := NewMemory()
	m.SetAlwaysDrawn(scene.NewIDSet("e1"), true)

	snap := m.AlwaysDrawn()
	snap.Add("e2")

	assert.Equal(t, 1, m.AlwaysDrawn().Len())
	assert.True(t, m.IsAlwaysDrawnExclusive())

	m.ClearAlwaysDrawn()
	assert.Equal(t, 0, m.AlwaysDrawn().Len())
	assert.False(t, m.IsAlwaysDrawnExclusive())
}

func TestMemory_ExclusiveFlagChangeFiresEvent(t *testing.T) {
	m := NewMemory()
	got, unsubscribe := recordEvents(m)
	defer unsubscribe()

	m.SetAlwaysDrawn(scene.NewIDSet(), true)
	assert.Equal(t, []EventKind{EventAlwaysDrawn}, *got)
}

func TestMemory_UnsubscribeAndPanicSafety(t *testing.T) {
	m := NewMemory()
	calls := 0
	m.Subscribe(func(Event) { panic("boom") })
	unsubscribe := m.Subscribe(func(Event) { calls++ })
	require.Equal(t, 2, m.ListenerCount())

	assert.NotPanics(t, func() { m.ChangeModelDisplay([]string{"m1"}, true) })
	assert.Equal(t, 1, calls)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 1, m.ListenerCount())

	m.ChangeModelDisplay([]string{"m1"}, false)
	assert.Equal(t, 1, calls)
}

func TestMemory_Options(t *testing.T) {
	m := NewMemory(WithSpatial(false), WithModels("m1"), WithCategories("c1"))
	assert.False(t, m.IsSpatial())
	assert.True(t, m.ViewsModel("m1"))
	assert.True(t, m.ViewsCategory("c1"))
	assert.False(t, m.ViewsCategory("c2"))
}
