// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/query/querytest"
)

func newSampleIndex(t *testing.T) (*Index, *querytest.Counting) {
	t.Helper()
	src := querytest.NewCounting(querytest.Open(t, querytest.SampleScene()))
	return New(src), src
}

func TestIndex_Reads(t *testing.T) {
	ctx := context.Background()
	x, _ := newSampleIndex(t)

	root, err := x.RootSubjectID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s0", root)

	t.Run("child subjects skip hidden", func(t *testing.T) {
		got, err := x.GetChildSubjectIDs(ctx, []string{"s0"})
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s3"}, got)
	})

	t.Run("subject models are transitive", func(t *testing.T) {
		got, err := x.GetSubjectModelIDs(ctx, []string{"s0"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, got)

		got, err = x.GetSubjectModelIDs(ctx, []string{"s2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m2"}, got)
	})

	t.Run("model categories", func(t *testing.T) {
		got, err := x.GetModelCategories(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, got)

		got, err = x.GetModelCategories(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("category models exclude private models", func(t *testing.T) {
		got, err := x.GetCategoryModels(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, got)
	})

	t.Run("element counts", func(t *testing.T) {
		n, err := x.GetModelElementCount(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("parent subjects", func(t *testing.T) {
		got, err := x.GetParentSubjectIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"s0", "s1", "s2", "s3"}, got)
	})

	t.Run("child subject models", func(t *testing.T) {
		got, err := x.GetChildSubjectModelIDs(ctx, []string{"s0"})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = x.GetChildSubjectModelIDs(ctx, []string{"s1", "s3"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, got)
	})

	t.Run("element descendants", func(t *testing.T) {
		got, err := x.GetElementDescendants(ctx, []string{"e1", "e3"})
		require.NoError(t, err)
		assert.Equal(t, []string{"e2"}, got)
	})

	assert.Equal(t, int64(1), x.Stats().Builds)
}

func TestIndex_CategoryElementCountIsCached(t *testing.T) {
	ctx := context.Background()
	x, src := newSampleIndex(t)

	for i := 0; i < 3; i++ {
		n, err := x.GetCategoryElementCount(ctx, "m1", "c1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.Equal(t, 1, src.Count(query.StmtCategoryElementCount.Name))

	x.Invalidate()
	n, err := x.GetCategoryElementCount(ctx, "m1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, src.Count(query.StmtCategoryElementCount.Name))
	assert.Equal(t, int64(2), x.Stats().Builds)
}

func TestIndex_ConcurrentFirstReadsShareOneBuild(t *testing.T) {
	ctx := context.Background()
	x, src := newSampleIndex(t)
	src.Delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := x.GetModelCategories(ctx, "m1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.Count(query.StmtSubjects.Name))
	assert.Equal(t, int64(1), x.Stats().Builds)
}

func TestIndex_SubjectCycleIsSevered(t *testing.T) {
	ctx := context.Background()
	src := querytest.Open(t, &query.Fixture{
		Subjects: []query.SubjectRow{
			{ID: "r"},
			{ID: "a", ParentID: "b"},
			{ID: "b", ParentID: "a"},
			{ID: "c", ParentID: "r"},
		},
	})
	x := New(src)

	root, err := x.RootSubjectID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r", root)

	got, err := x.GetChildSubjectIDs(ctx, []string{"r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got)

	models, err := x.GetSubjectModelIDs(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, models)
	assert.Equal(t, 1, x.Stats().Cycles)
}

func TestIndex_NestedHiddenSubjects(t *testing.T) {
	ctx := context.Background()
	src := querytest.Open(t, &query.Fixture{
		Subjects: []query.SubjectRow{
			{ID: "r"},
			{ID: "h1", ParentID: "r", HideInHierarchy: true},
			{ID: "h2", ParentID: "h1", HideInHierarchy: true},
			{ID: "v", ParentID: "h2"},
			{ID: "w", ParentID: "v"},
			{ID: "empty", ParentID: "r"},
		},
		Models: []query.ModelRow{
			{ID: "mh", ParentSubject: "h1"},
			{ID: "mh2", ParentSubject: "h2"},
			{ID: "mw", ParentSubject: "w"},
		},
	})
	x := New(src)

	children, err := x.GetChildSubjectIDs(ctx, []string{"r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "v"}, children)

	children, err = x.GetChildSubjectIDs(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, children)

	models, err := x.GetChildSubjectModelIDs(ctx, []string{"r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mh", "mh2"}, models)

	models, err = x.GetChildSubjectModelIDs(ctx, []string{"v"})
	require.NoError(t, err)
	assert.Empty(t, models, "visible children keep their own models")

	models, err = x.GetSubjectModelIDs(ctx, []string{"r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mh", "mh2", "mw"}, models)

	parents, err := x.GetParentSubjectIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2", "r", "v", "w"}, parents)
}

func TestIndex_EmptyScene(t *testing.T) {
	x := New(querytest.Open(t, nil))
	_, err := x.RootSubjectID(context.Background())
	assert.ErrorIs(t, err, ErrNoRootSubject)
}

func TestIndex_BuildFailurePropagates(t *testing.T) {
	ctx := context.Background()
	x, src := newSampleIndex(t)
	boom := errors.New("boom")
	src.FailWith(query.StmtModels.Name, boom)

	_, err := x.GetModelCategories(ctx, "m1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, x.Stats().Built)

	src.FailWith(query.StmtModels.Name, nil)
	got, err := x.GetModelCategories(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, got)
}

func TestIndex_TargetPartitionOwnsModel(t *testing.T) {
	ctx := context.Background()
	src := querytest.Open(t, &query.Fixture{
		Subjects: []query.SubjectRow{
			{ID: "r"},
			{ID: "p", ParentID: "r", TargetPartition: "m"},
		},
		Models: []query.ModelRow{{ID: "m", ParentSubject: "r"}},
	})
	x := New(src)

	got, err := x.GetSubjectModelIDs(ctx, []string{"p"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, got)

	m, ok, err := x.Model(ctx, "m")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p", m.Subject)
}
