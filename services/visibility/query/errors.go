// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"errors"
	"fmt"
)

// Sentinel errors for query sources.
var (
	// ErrRowLimitExceeded is matched by *LimitError. It is the one query
	// failure the engine translates for callers.
	ErrRowLimitExceeded = errors.New("query row limit exceeded")

	// ErrSourceClosed is returned by sources after Close.
	ErrSourceClosed = errors.New("query source closed")
)

// LimitError reports which statement overflowed which ceiling.
type LimitError struct {
	Statement string
	Limit     int
}

// Error implements error.
func (e *LimitError) Error() string {
	return fmt.Sprintf("statement %s produced more than %d rows", e.Statement, e.Limit)
}

// Is makes errors.Is(err, ErrRowLimitExceeded) true.
func (e *LimitError) Is(target error) bool {
	return target == ErrRowLimitExceeded
}
