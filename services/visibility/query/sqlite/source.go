// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sqlite provides a query.Source backed by an embedded SQLite
// database (pure Go driver, no cgo).
//
// # Description
//
// Source executes the engine's statements against a scene database file or
// an in-memory database. Watch turns writes to the database file into a
// debounced data-change signal so the hierarchy index can be rebuilt.
//
// # Thread Safety
//
// Source is safe for concurrent use. In-memory databases are pinned to a
// single connection because every SQLite connection to ":memory:" sees its
// own private database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/AleutianAI/scenevis/services/visibility/query"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Source is a query.Source over database/sql and modernc.org/sqlite.
type Source struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens (creating if needed) the database at path and ensures the
// scene schema exists.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Source, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &Source{db: db, path: path, logger: logger.With(slog.String("source", "sqlite"))}
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an empty in-memory scene database.
func OpenMemory(ctx context.Context) (*Source, error) {
	return Open(ctx, MemoryPath, nil)
}

// Init creates the scene schema if it does not exist.
func (s *Source) Init(ctx context.Context) error {
	for _, ddl := range query.Schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Load inserts a fixture in a single transaction.
func (s *Source) Load(ctx context.Context, f *query.Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fixture load: %w", err)
	}
	for _, ex := range f.Inserts() {
		if _, err := tx.ExecContext(ctx, ex.SQL, ex.Args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("load fixture: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fixture load: %w", err)
	}
	s.logger.Debug("fixture loaded",
		slog.Int("subjects", len(f.Subjects)),
		slog.Int("models", len(f.Models)),
		slog.Int("elements", len(f.Elements)),
	)
	return nil
}

// Query implements query.Source.
func (s *Source) Query(ctx context.Context, stmt query.Statement, args []any, opts ...query.Option) (query.Rows, error) {
	if s.closed.Load() {
		return nil, query.ErrSourceClosed
	}
	o := query.ApplyOptions(opts...)

	ctx, span := query.StartSpan(ctx, "sqlite", stmt, o)
	rows, err := s.db.QueryContext(ctx, stmt.SQL, args...)
	query.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return query.LimitRows(rows, stmt, o.RowLimit), nil
}

// Exec runs a write statement. It exists for tools and tests that mutate
// the scene; the engine itself never writes.
func (s *Source) Exec(ctx context.Context, sqlText string, args ...any) error {
	if s.closed.Load() {
		return query.ErrSourceClosed
	}
	_, err := s.db.ExecContext(ctx, sqlText, args...)
	return err
}

// Path returns the database path.
func (s *Source) Path() string {
	return s.path
}

// Close closes the database.
func (s *Source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
