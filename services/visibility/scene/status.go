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

import "fmt"

// State is a tri-state visibility value.
type State int

const (
	// Visible means the node and everything below it is displayed.
	Visible State = iota

	// Partial means some, but not all, of the node's content is displayed.
	Partial

	// Hidden means nothing under the node is displayed.
	Hidden
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case Partial:
		return "partial"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "visible":
		*s = Visible
	case "partial":
		*s = Partial
	case "hidden":
		*s = Hidden
	default:
		return fmt.Errorf("unknown visibility state %q", string(b))
	}
	return nil
}

// Reason codes attached to a Status. They are opaque to the engine and
// exist so a UI can pick a tooltip.
const (
	ReasonNonSpatialView   = "non-spatial-view"
	ReasonModelHidden      = "model-hidden"
	ReasonNeverDrawn       = "never-drawn"
	ReasonAlwaysDrawn      = "always-drawn"
	ReasonExclusive        = "always-drawn-exclusive"
	ReasonCategoryOverride = "per-model-category-override"
	ReasonCategorySelector = "category-selector"
	ReasonOverrideMismatch = "element-overrides"
	ReasonAggregated       = "aggregated"
	ReasonFilterTargets    = "filter-targets"
)

// Status is the answer to a visibility query.
type Status struct {
	// State is the tri-state visibility.
	State State `json:"state"`

	// Disabled means the control is shown but not interactive.
	Disabled bool `json:"disabled,omitempty"`

	// Reason is an optional opaque code explaining State.
	Reason string `json:"reason,omitempty"`
}

// VisibleStatus returns a Visible status with the given reason.
func VisibleStatus(reason string) Status {
	return Status{State: Visible, Reason: reason}
}

// HiddenStatus returns a Hidden status with the given reason.
func HiddenStatus(reason string) Status {
	return Status{State: Hidden, Reason: reason}
}

// PartialStatus returns a Partial status with the given reason.
func PartialStatus(reason string) Status {
	return Status{State: Partial, Reason: reason}
}

// DisabledStatus returns the Hidden, non-interactive status used for nodes
// that cannot be toggled in the current view.
func DisabledStatus(reason string) Status {
	return Status{State: Hidden, Disabled: true, Reason: reason}
}

// FromBool maps a boolean display flag to Visible or Hidden.
func FromBool(on bool, reason string) Status {
	if on {
		return VisibleStatus(reason)
	}
	return HiddenStatus(reason)
}

// Aggregator folds child states with the visibility monoid.
//
// Visible+Visible → Visible, Hidden+Hidden → Hidden, anything mixed or any
// Partial → Partial. The zero value is the identity; an empty fold is
// Visible.
type Aggregator struct {
	sawVisible bool
	sawHidden  bool
	sawPartial bool
}

// Add folds one state in and reports whether the result is settled
// (Partial), in which case callers may stop iterating.
func (a *Aggregator) Add(s State) bool {
	switch s {
	case Visible:
		a.sawVisible = true
	case Hidden:
		a.sawHidden = true
	default:
		a.sawPartial = true
	}
	return a.Done()
}

// Done reports whether further input can no longer change the result.
func (a *Aggregator) Done() bool {
	return a.sawPartial || (a.sawVisible && a.sawHidden)
}

// State returns the folded state.
func (a *Aggregator) State() State {
	switch {
	case a.Done():
		return Partial
	case a.sawHidden:
		return Hidden
	default:
		return Visible
	}
}

// Status returns the folded state as an aggregated Status.
func (a *Aggregator) Status() Status {
	return Status{State: a.State(), Reason: ReasonAggregated}
}

// Fold aggregates a list of states.
func Fold(states ...State) State {
	var a Aggregator
	for _, s := range states {
		if a.Add(s) {
			break
		}
	}
	return a.State()
}
