// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visibility

import "errors"

// Sentinel errors for the visibility service.
var (
	// ErrViewportNotFound indicates no session exists for the viewport id.
	ErrViewportNotFound = errors.New("viewport not found")

	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = errors.New("service closed")

	// ErrInvalidRequest indicates a request body that cannot be turned into
	// a node reference.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedSource indicates a query source without a data-change
	// signal.
	ErrUnsupportedSource = errors.New("source does not support change notifications")
)
