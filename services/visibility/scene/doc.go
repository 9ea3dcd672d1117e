// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scene defines the shared vocabulary of the visibility engine.
//
// The scene graph is a four-level hierarchy:
//
//	Subject → Model → Category → Element
//
// with transient class-based element groups below categories. Every node is
// addressed by a NodeRef, and every visibility query answers with a Status.
//
// # Identifiers
//
// Ids are opaque strings (hex element ids in practice). IDSet is the set type
// used for always-drawn / never-drawn override sets and all index values.
//
// # Thread Safety
//
// All types in this package are values or read-only after construction.
// IDSet is NOT safe for concurrent mutation; sets handed out by caches and
// viewports are treated as immutable snapshots.
package scene
