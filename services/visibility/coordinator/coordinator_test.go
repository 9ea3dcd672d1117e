// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) listen(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) snapshot() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

type countingInvalidator struct {
	n atomic.Int32
}

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func TestCoordinator_CoalescesBurst(t *testing.T) {
	vp := viewport.NewMemory()
	c := New(vp, WithDebounce(20*time.Millisecond))
	defer c.Close()

	var rec recorder
	c.OnVisibilityChanged(rec.listen)

	vp.ChangeModelDisplay([]string{"m1"}, true)
	vp.ChangeCategoryDisplay([]string{"c1"}, true)
	vp.SetNeverDrawn(scene.NewIDSet("e1"))
	vp.SetNeverDrawn(scene.NewIDSet("e1", "e2"))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Sequence)
	assert.Equal(t, 4, got[0].Events)
	assert.Equal(t, []string{"category_display", "model_display", "never_drawn"}, got[0].Kinds)
	assert.False(t, got[0].DataChanged)
}

func TestCoordinator_DataChangedInvalidates(t *testing.T) {
	vp := viewport.NewMemory()
	inv := &countingInvalidator{}
	c := New(vp, WithDebounce(5*time.Millisecond), WithInvalidators(inv))
	defer c.Close()

	var rec recorder
	c.OnVisibilityChanged(rec.listen)

	c.DataChanged()
	assert.Equal(t, int32(1), inv.n.Load())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, rec.snapshot()[0].DataChanged)
}

func TestCoordinator_CloseStopsEvents(t *testing.T) {
	vp := viewport.NewMemory()
	c := New(vp, WithDebounce(5*time.Millisecond))

	var rec recorder
	unsubscribe := c.OnVisibilityChanged(rec.listen)
	defer unsubscribe()

	c.Close()
	assert.Equal(t, 0, vp.ListenerCount())

	vp.ChangeModelDisplay([]string{"m1"}, true)
	c.DataChanged()
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestCoordinator_ListenerPanicDoesNotStopOthers(t *testing.T) {
	vp := viewport.NewMemory()
	c := New(vp, WithDebounce(5*time.Millisecond))
	defer c.Close()

	var rec recorder
	c.OnVisibilityChanged(func(Change) { panic("boom") })
	c.OnVisibilityChanged(rec.listen)

	vp.ChangeModelDisplay([]string{"m1"}, true)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
}
