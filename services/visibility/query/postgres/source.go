// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package postgres provides a query.Source backed by PostgreSQL through
// pgx's connection pool, and a LISTEN/NOTIFY based commit signal.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AleutianAI/scenevis/services/visibility/query"
)

// DefaultNotifyChannel is the channel scene writers NOTIFY after a commit.
const DefaultNotifyChannel = "scene_changed"

// Source is a query.Source over a pgx pool.
type Source struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	closed atomic.Bool
}

// Open connects to dsn and ensures the scene schema exists.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Source, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Source{pool: pool, logger: logger.With(slog.String("source", "postgres"))}
	if err := s.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the scene schema if it does not exist.
func (s *Source) Init(ctx context.Context) error {
	for _, ddl := range query.Schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Load inserts a fixture in a single transaction and notifies listeners.
func (s *Source) Load(ctx context.Context, f *query.Fixture) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, ex := range f.Inserts() {
			if _, err := tx.Exec(ctx, Rebind(ex.SQL), ex.Args...); err != nil {
				return fmt.Errorf("load fixture: %w", err)
			}
		}
		_, err := tx.Exec(ctx, "SELECT pg_notify($1, 'fixture')", DefaultNotifyChannel)
		return err
	})
}

// Query implements query.Source.
func (s *Source) Query(ctx context.Context, stmt query.Statement, args []any, opts ...query.Option) (query.Rows, error) {
	if s.closed.Load() {
		return nil, query.ErrSourceClosed
	}
	o := query.ApplyOptions(opts...)

	ctx, span := query.StartSpan(ctx, "postgresql", stmt, o)
	rows, err := s.pool.Query(ctx, Rebind(stmt.SQL), args...)
	query.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return query.LimitRows(&pgxRows{rows: rows}, stmt, o.RowLimit), nil
}

// Listen blocks until ctx is done, calling handler for every notification
// on channel. One dedicated pool connection is held for the duration.
func (s *Source) Listen(ctx context.Context, channel string, handler func(payload string)) error {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	s.logger.Info("listening for scene changes", slog.String("channel", channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		handler(n.Payload)
	}
}

// Close closes the pool.
func (s *Source) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.pool.Close()
	}
	return nil
}

// Rebind rewrites '?' placeholders to PostgreSQL's $n form, leaving quoted
// literals untouched.
func Rebind(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// pgxRows adapts pgx.Rows to query.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}
