// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux styles scenevis terminal output.
package ux

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// Palette - deep ocean teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Styles holds the pre-configured styles.
var Styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Visible lipgloss.Style
	Partial lipgloss.Style
	Hidden  lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Visible: lipgloss.NewStyle().Foreground(ColorTealBright),
	Partial: lipgloss.NewStyle().Foreground(ColorWarning),
	Hidden:  lipgloss.NewStyle().Foreground(ColorSlate),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Tri-state markers.
const (
	MarkerVisible  = "●"
	MarkerPartial  = "◐"
	MarkerHidden   = "○"
	MarkerDisabled = "·"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Marker returns the marker for st, styled when color is set.
func Marker(st scene.Status, color bool) string {
	var mark string
	var style lipgloss.Style
	switch {
	case st.Disabled:
		mark, style = MarkerDisabled, Styles.Muted
	case st.State == scene.Visible:
		mark, style = MarkerVisible, Styles.Visible
	case st.State == scene.Partial:
		mark, style = MarkerPartial, Styles.Partial
	default:
		mark, style = MarkerHidden, Styles.Hidden
	}
	if !color {
		return mark
	}
	return style.Render(mark)
}
