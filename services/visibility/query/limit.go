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

// LimitRows wraps rows so that producing more than limit rows ends
// iteration with a *LimitError. A non-positive limit returns rows as-is.
func LimitRows(rows Rows, stmt Statement, limit int) Rows {
	if limit <= 0 {
		return rows
	}
	return &limitedRows{Rows: rows, stmt: stmt.Name, limit: limit}
}

type limitedRows struct {
	Rows
	stmt  string
	limit int
	seen  int
	err   error
}

func (r *limitedRows) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.Rows.Next() {
		return false
	}
	r.seen++
	if r.seen > r.limit {
		r.err = &LimitError{Statement: r.stmt, Limit: r.limit}
		return false
	}
	return true
}

func (r *limitedRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.Rows.Err()
}
