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

import "errors"

var (
	// ErrContractViolation is returned when a caller passes a node the
	// engine cannot evaluate, such as a category without its model.
	ErrContractViolation = errors.New("visibility contract violation")

	// ErrTooManyFilterMatches is returned when resolving a filtered node
	// exceeds the configured row ceiling.
	ErrTooManyFilterMatches = errors.New("too many filter matches")

	// ErrInvalidConfig is returned by New for missing dependencies.
	ErrInvalidConfig = errors.New("invalid engine config")
)
