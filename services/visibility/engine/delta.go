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

import "github.com/AleutianAI/scenevis/services/visibility/scene"

// overrideDelta accumulates changes to the viewport's override sets so that
// each set is written at most once.
type overrideDelta struct {
	e          *Engine
	always     scene.IDSet
	never      scene.IDSet
	alwaysBase scene.IDSet
	neverBase  scene.IDSet
}

func (e *Engine) newDelta() *overrideDelta {
	d := &overrideDelta{e: e}
	d.refresh()
	return d
}

// refresh re-reads both sets from the viewport, dropping uncommitted
// changes.
func (d *overrideDelta) refresh() {
	d.alwaysBase = d.e.vp.AlwaysDrawn()
	d.neverBase = d.e.vp.NeverDrawn()
	d.always = d.alwaysBase.Clone()
	d.never = d.neverBase.Clone()
}

func (d *overrideDelta) removeAlways(ids scene.IDSet) {
	for id := range ids {
		d.always.Remove(id)
	}
}

func (d *overrideDelta) removeNever(ids scene.IDSet) {
	for id := range ids {
		d.never.Remove(id)
	}
}

// commit writes the sets that changed.
func (d *overrideDelta) commit() {
	if !d.always.Equal(d.alwaysBase) {
		d.e.vp.SetAlwaysDrawn(d.always, d.e.vp.IsAlwaysDrawnExclusive())
		d.alwaysBase = d.always.Clone()
	}
	if !d.never.Equal(d.neverBase) {
		d.e.vp.SetNeverDrawn(d.never)
		d.neverBase = d.never.Clone()
	}
}
