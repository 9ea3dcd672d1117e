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

import "errors"

// Sentinel errors shared across the visibility packages.
var (
	// ErrInvalidNode is returned when a NodeRef lacks the fields its kind
	// requires.
	ErrInvalidNode = errors.New("invalid node reference")

	// ErrInvalidClassSpec is returned for malformed "Schema.Class" strings.
	// It is a configuration error and surfaces at construction time.
	ErrInvalidClassSpec = errors.New("invalid class specification")
)
