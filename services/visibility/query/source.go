// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query defines the abstract, paged query source consumed by the
// visibility engine, plus the statements the engine issues against it.
//
// # Description
//
// The engine never talks to a database directly. It issues named
// Statements through a Source and reads the rows back through the Rows
// iterator. Concrete sources live in the sqlite and postgres subpackages.
//
// # Row Ceilings
//
// A caller may pass WithRowLimit(n). When a statement produces more than n
// rows, iteration stops and Rows.Err returns a *LimitError, which matches
// ErrRowLimitExceeded via errors.Is. Results are never silently truncated.
//
// # Thread Safety
//
// Source implementations must be safe for concurrent use. A Rows value is
// owned by a single goroutine.
package query

import (
	"context"
	"fmt"
	"strings"
)

// Rows iterates over a query result. The method set matches *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Source executes statements.
type Source interface {
	// Query runs stmt with positional args. The returned Rows must be
	// closed by the caller.
	Query(ctx context.Context, stmt Statement, args []any, opts ...Option) (Rows, error)
}

// Statement is a named SQL statement with '?' placeholders.
type Statement struct {
	// Name identifies the statement in logs, spans and metrics.
	Name string

	// SQL is the statement text. A literal "{ids}" token is expanded by
	// WithInList.
	SQL string
}

// inListToken marks where WithInList expands placeholders.
const inListToken = "{ids}"

// WithInList returns a copy of the statement with the "{ids}" token
// replaced by n comma-separated placeholders.
func (s Statement) WithInList(n int) Statement {
	if n <= 0 {
		// An empty IN list is a syntax error in both dialects; NULL
		// matches nothing.
		s.SQL = strings.Replace(s.SQL, inListToken, "NULL", 1)
		return s
	}
	s.SQL = strings.Replace(s.SQL, inListToken, strings.TrimSuffix(strings.Repeat("?,", n), ","), 1)
	return s
}

// String returns the statement name.
func (s Statement) String() string {
	return s.Name
}

// Options configures a single Query call.
type Options struct {
	// RowLimit is the maximum number of rows the caller accepts.
	// Zero means unlimited.
	RowLimit int
}

// Option is a functional option for Query.
type Option func(*Options)

// WithRowLimit caps the number of rows a query may produce.
func WithRowLimit(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.RowLimit = n
		}
	}
}

// ApplyOptions folds opts into an Options value.
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Each runs stmt and calls fn once per row. Rows are always closed. The
// first error from fn, from iteration or from Close is returned.
func Each(ctx context.Context, src Source, stmt Statement, args []any, fn func(Rows) error, opts ...Option) (err error) {
	rows, err := src.Query(ctx, stmt, args, opts...)
	if err != nil {
		return fmt.Errorf("query %s: %w", stmt.Name, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", stmt.Name, cerr)
		}
	}()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", stmt.Name, err)
	}
	return nil
}

// Args converts ids to a positional argument slice.
func Args(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
