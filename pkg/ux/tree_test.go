// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

func TestMarker(t *testing.T) {
	tests := []struct {
		st   scene.Status
		want string
	}{
		{scene.VisibleStatus(""), MarkerVisible},
		{scene.PartialStatus(""), MarkerPartial},
		{scene.HiddenStatus(""), MarkerHidden},
		{scene.DisabledStatus(""), MarkerDisabled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Marker(tt.st, false))
	}
}

func TestRenderTree(t *testing.T) {
	roots := []*TreeNode{{
		Label:  "s1",
		Status: scene.VisibleStatus(""),
		Children: []*TreeNode{
			{Label: "m1", Status: scene.PartialStatus(""), Children: []*TreeNode{
				{Label: "c1", Status: scene.VisibleStatus("")},
				{Label: "c2", Status: scene.HiddenStatus("")},
			}},
			{Label: "m2", Status: scene.HiddenStatus("")},
		},
	}}

	want := "● s1\n" +
		"├── ◐ m1\n" +
		"│   ├── ● c1\n" +
		"│   └── ○ c2\n" +
		"└── ○ m2\n"
	assert.Equal(t, want, RenderTree(roots, false))
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
