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
	"strings"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// TreeNode is one line of a rendered visibility tree.
type TreeNode struct {
	Label    string
	Status   scene.Status
	Children []*TreeNode
}

// RenderTree draws roots with box-drawing connectors and a tri-state marker
// before each label.
//
//	● s1
//	├── ● m1
//	│   ├── ● c1
//	│   └── ○ c2
//	└── ◐ m2
func RenderTree(roots []*TreeNode, color bool) string {
	var b strings.Builder
	for _, root := range roots {
		writeLine(&b, "", root, color)
		writeChildren(&b, "", root.Children, color)
	}
	return b.String()
}

func writeChildren(b *strings.Builder, prefix string, children []*TreeNode, color bool) {
	for i, child := range children {
		last := i == len(children)-1
		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}
		writeLine(b, prefix+branch, child, color)
		writeChildren(b, prefix+indent, child.Children, color)
	}
}

func writeLine(b *strings.Builder, prefix string, n *TreeNode, color bool) {
	label := n.Label
	if color && n.Status.Disabled {
		label = Styles.Muted.Render(label)
	}
	b.WriteString(prefix)
	b.WriteString(Marker(n.Status, color))
	b.WriteByte(' ')
	b.WriteString(label)
	b.WriteByte('\n')
}
