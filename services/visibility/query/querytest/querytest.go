// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package querytest provides query sources for tests: an in-memory SQLite
// source loaded from a fixture and a counting decorator.
package querytest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/query/sqlite"
)

// Open returns an in-memory SQLite source loaded with f, closed on test
// cleanup.
func Open(t testing.TB, f *query.Fixture) *sqlite.Source {
	t.Helper()
	ctx := context.Background()
	src, err := sqlite.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	if f != nil {
		require.NoError(t, src.Load(ctx, f))
	}
	return src
}

// SampleScene is a small scene used across package tests.
//
//	s0 (root)
//	├── s1 ── m1 { c1: e1 ─ e2, e3 ; c2: e4 }
//	└── s2 (hidden)
//	    └── s3 ── m2 { c1: e5 ; c3: e6 }
//	s0 also owns the private model mp.
func SampleScene() *query.Fixture {
	return &query.Fixture{
		Subjects: []query.SubjectRow{
			{ID: "s0"},
			{ID: "s1", ParentID: "s0"},
			{ID: "s2", ParentID: "s0", HideInHierarchy: true},
			{ID: "s3", ParentID: "s2"},
		},
		Models: []query.ModelRow{
			{ID: "m1", ParentSubject: "s1"},
			{ID: "m2", ParentSubject: "s3"},
			{ID: "mp", ParentSubject: "s0", Private: true},
		},
		Elements: []query.ElementRow{
			{ID: "e1", ModelID: "m1", CategoryID: "c1"},
			{ID: "e2", ModelID: "m1", CategoryID: "c1", ParentID: "e1"},
			{ID: "e3", ModelID: "m1", CategoryID: "c1"},
			{ID: "e4", ModelID: "m1", CategoryID: "c2"},
			{ID: "e5", ModelID: "m2", CategoryID: "c1"},
			{ID: "e6", ModelID: "m2", CategoryID: "c3"},
			{ID: "ep", ModelID: "mp", CategoryID: "c1"},
		},
		ClassBases: []query.ClassBaseRow{
			{Class: "Custom.Folder", Base: "BisCore.Subject"},
			{Class: "Custom.Layer", Base: "BisCore.Category"},
		},
	}
}

// Counting decorates a Source and counts queries per statement name.
//
// Thread Safety: Counting is safe for concurrent use.
type Counting struct {
	query.Source

	// Delay, when set, is slept before every query.
	Delay time.Duration

	mu     sync.Mutex
	counts map[string]int
	fail   map[string]error
}

// NewCounting wraps src.
func NewCounting(src query.Source) *Counting {
	return &Counting{
		Source: src,
		counts: make(map[string]int),
		fail:   make(map[string]error),
	}
}

// Query implements query.Source.
func (c *Counting) Query(ctx context.Context, stmt query.Statement, args []any, opts ...query.Option) (query.Rows, error) {
	c.mu.Lock()
	c.counts[stmt.Name]++
	err := c.fail[stmt.Name]
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return c.Source.Query(ctx, stmt, args, opts...)
}

// FailWith makes queries named name return err. A nil err clears it.
func (c *Counting) FailWith(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, name)
		return
	}
	c.fail[name] = err
}

// Count returns the number of queries issued for a statement name.
func (c *Counting) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Total returns the number of queries issued.
func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Reset zeroes all counts.
func (c *Counting) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
