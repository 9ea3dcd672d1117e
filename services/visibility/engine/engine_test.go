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

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/hierarchy"
	"github.com/AleutianAI/scenevis/services/visibility/overrides"
	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/query/querytest"
	"github.com/AleutianAI/scenevis/services/visibility/query/sqlite"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/viewport"
)

type testEnv struct {
	db     *sqlite.Source
	src    *querytest.Counting
	vp     *viewport.Memory
	index  *hierarchy.Index
	store  *overrides.Store
	engine *Engine
}

type envOption func(*Config)

func newEnv(t *testing.T, vp *viewport.Memory, opts ...envOption) *testEnv {
	t.Helper()
	db := querytest.Open(t, querytest.SampleScene())
	src := querytest.NewCounting(db)
	if vp == nil {
		vp = viewport.NewMemory(
			viewport.WithModels("m1", "m2"),
			viewport.WithCategories("c1", "c2", "c3"),
		)
	}
	index := hierarchy.New(src)
	store := overrides.NewStore(src, vp, overrides.WithDebounce(time.Millisecond))
	t.Cleanup(store.Close)

	cfg := Config{
		Viewport:   vp,
		Hierarchy:  index,
		Overrides:  store,
		Classifier: NewClassifier(src, DefaultClassSpecs(), 100),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	return &testEnv{db: db, src: src, vp: vp, index: index, store: store, engine: eng}
}

func (env *testEnv) state(t *testing.T, node scene.NodeRef) scene.State {
	t.Helper()
	st, err := env.engine.GetVisibilityStatus(context.Background(), node)
	require.NoError(t, err)
	return st.State
}

func (env *testEnv) change(t *testing.T, node scene.NodeRef, on bool) {
	t.Helper()
	require.NoError(t, env.engine.ChangeVisibility(context.Background(), node, on))
}

type viewportState struct {
	models     map[string]bool
	categories map[string]bool
	overrides  map[scene.ModelCategory]scene.CategoryOverride
	always     []string
	never      []string
	exclusive  bool
}

func capture(vp *viewport.Memory) viewportState {
	st := viewportState{
		models:     map[string]bool{},
		categories: map[string]bool{},
		overrides:  map[scene.ModelCategory]scene.CategoryOverride{},
		always:     vp.AlwaysDrawn().Sorted(),
		never:      vp.NeverDrawn().Sorted(),
		exclusive:  vp.IsAlwaysDrawnExclusive(),
	}
	for _, m := range []string{"m1", "m2"} {
		st.models[m] = vp.ViewsModel(m)
		for _, c := range []string{"c1", "c2", "c3"} {
			st.overrides[scene.ModelCategory{ModelID: m, CategoryID: c}] = vp.PerModelCategoryOverride(m, c)
		}
	}
	for _, c := range []string{"c1", "c2", "c3"} {
		st.categories[c] = vp.ViewsCategory(c)
	}
	return st
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStatus_ModelFoldsCategories(t *testing.T) {
	env := newEnv(t, nil)
	m1 := scene.ModelNode("m1")

	assert.Equal(t, scene.Visible, env.state(t, m1))

	env.vp.ChangeCategoryDisplay([]string{"c2"}, false)
	assert.Equal(t, scene.Partial, env.state(t, m1))

	env.vp.ChangeCategoryDisplay([]string{"c1"}, false)
	assert.Equal(t, scene.Hidden, env.state(t, m1))

	env.vp.ChangeModelDisplay([]string{"m1"}, false)
	st, err := env.engine.GetVisibilityStatus(context.Background(), m1)
	require.NoError(t, err)
	assert.Equal(t, scene.ReasonModelHidden, st.Reason)
}

func TestStatus_SubjectFoldsTransitiveModels(t *testing.T) {
	env := newEnv(t, nil)
	s0 := scene.SubjectNode("s0")

	assert.Equal(t, scene.Visible, env.state(t, s0))

	env.vp.ChangeModelDisplay([]string{"m2"}, false)
	assert.Equal(t, scene.Partial, env.state(t, s0))
	assert.Equal(t, scene.Hidden, env.state(t, scene.SubjectNode("s2")))
}

func TestStatus_NonSpatialViewIsDisabled(t *testing.T) {
	env := newEnv(t, viewport.NewMemory(viewport.WithSpatial(false), viewport.WithModels("m1")))
	ctx := context.Background()

	for _, node := range []scene.NodeRef{scene.SubjectNode("s0"), scene.ModelNode("m1")} {
		st, err := env.engine.GetVisibilityStatus(ctx, node)
		require.NoError(t, err)
		assert.True(t, st.Disabled, node.String())
		assert.Equal(t, scene.Hidden, st.State, node.String())
	}
}

func TestStatus_ElementPrecedence(t *testing.T) {
	env := newEnv(t, nil)
	e1 := scene.ElementNode("m1", "c1", "e1")

	assert.Equal(t, scene.Visible, env.state(t, e1))

	env.vp.SetAlwaysDrawn(scene.NewIDSet("e1"), false)
	env.vp.SetNeverDrawn(scene.NewIDSet("e1"))
	assert.Equal(t, scene.Hidden, env.state(t, e1), "never-drawn wins over always-drawn")

	env.vp.ClearNeverDrawn()
	env.vp.ChangeCategoryDisplay([]string{"c1"}, false)
	assert.Equal(t, scene.Visible, env.state(t, e1))

	env.vp.SetAlwaysDrawn(scene.NewIDSet("e3"), true)
	assert.Equal(t, scene.Hidden, env.state(t, e1), "exclusive mode hides the rest")
	assert.Equal(t, scene.Visible, env.state(t, scene.ElementNode("m1", "c1", "e3")))

	env.vp.ChangeModelDisplay([]string{"m1"}, false)
	assert.Equal(t, scene.Hidden, env.state(t, scene.ElementNode("m1", "c1", "e3")))
}

func TestStatus_CategoryUsesDescendantCount(t *testing.T) {
	env := newEnv(t, nil)
	c1 := scene.CategoryNode("m1", "c1")

	env.vp.SetNeverDrawn(scene.NewIDSet("e1", "e3"))
	assert.Equal(t, scene.Partial, env.state(t, c1), "e2 is a visible descendant")

	env.vp.SetNeverDrawn(scene.NewIDSet("e1", "e2", "e3"))
	assert.Equal(t, scene.Hidden, env.state(t, c1))

	env.vp.ClearNeverDrawn()
	env.vp.ChangeCategoryDisplay([]string{"c1"}, false)
	env.vp.SetAlwaysDrawn(scene.NewIDSet("e1"), false)
	assert.Equal(t, scene.Partial, env.state(t, c1))

	env.vp.SetAlwaysDrawn(scene.NewIDSet("e1", "e2", "e3"), false)
	assert.Equal(t, scene.Visible, env.state(t, c1))
}

func TestStatus_ElementGroup(t *testing.T) {
	env := newEnv(t, nil)
	group := scene.GroupNode("m1", "c1", "e1", "e3")

	assert.Equal(t, scene.Visible, env.state(t, group))

	env.vp.SetNeverDrawn(scene.NewIDSet("e1"))
	assert.Equal(t, scene.Partial, env.state(t, group))

	env.vp.SetNeverDrawn(scene.NewIDSet("e1", "e3"))
	assert.Equal(t, scene.Hidden, env.state(t, group))

	env.vp.ClearNeverDrawn()
	env.vp.SetAlwaysDrawn(scene.NewIDSet("e1"), true)
	assert.Equal(t, scene.Partial, env.state(t, group), "exclusive with some always-drawn")

	env.vp.SetAlwaysDrawn(scene.NewIDSet("e1", "e3"), true)
	assert.Equal(t, scene.Visible, env.state(t, group))
}

func TestStatus_ExclusiveWithEmptySetHidesEverything(t *testing.T) {
	env := newEnv(t, nil)
	env.vp.SetAlwaysDrawn(scene.NewIDSet(), true)

	for _, node := range []scene.NodeRef{
		scene.SubjectNode("s0"),
		scene.ModelNode("m1"),
		scene.ModelNode("m2"),
		scene.CategoryNode("m1", "c1"),
		scene.ElementNode("m1", "c2", "e4"),
		scene.GroupNode("m1", "c1", "e1", "e3"),
	} {
		assert.Equal(t, scene.Hidden, env.state(t, node), node.String())
	}
}

func TestStatus_CategoryWithoutModelIsContractViolation(t *testing.T) {
	env := newEnv(t, nil)
	_, err := env.engine.GetVisibilityStatus(context.Background(), scene.NodeRef{Kind: scene.KindCategory, CategoryID: "c1"})
	assert.ErrorIs(t, err, ErrContractViolation)

	err = env.engine.ChangeVisibility(context.Background(), scene.NodeRef{Kind: scene.KindCategory, CategoryID: "c1"}, true)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestChange_CategoryOverridesAreMinimal(t *testing.T) {
	env := newEnv(t, nil)

	env.change(t, scene.CategoryNode("m1", "c1"), true)
	assert.Equal(t, scene.CategoryOverrideNone, env.vp.PerModelCategoryOverride("m1", "c1"))

	env.change(t, scene.CategoryNode("m1", "c1"), false)
	assert.Equal(t, scene.CategoryOverrideHide, env.vp.PerModelCategoryOverride("m1", "c1"))

	env.vp.ChangeCategoryDisplay([]string{"c2"}, false)
	env.change(t, scene.CategoryNode("m1", "c2"), false)
	assert.Equal(t, scene.CategoryOverrideNone, env.vp.PerModelCategoryOverride("m1", "c2"))

	env.change(t, scene.CategoryNode("m1", "c2"), true)
	assert.Equal(t, scene.CategoryOverrideShow, env.vp.PerModelCategoryOverride("m1", "c2"))
}

func TestChange_CategoryClearsElementOverrides(t *testing.T) {
	env := newEnv(t, nil)
	env.vp.SetNeverDrawn(scene.NewIDSet("e1", "e4"))
	env.vp.SetAlwaysDrawn(scene.NewIDSet("e3"), false)

	env.change(t, scene.CategoryNode("m1", "c1"), true)

	assert.Equal(t, []string{"e4"}, env.vp.NeverDrawn().Sorted())
	assert.Empty(t, env.vp.AlwaysDrawn().Sorted())
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m1", "c1")))
}

func TestChange_IsIdempotent(t *testing.T) {
	nodes := []scene.NodeRef{
		scene.SubjectNode("s0"),
		scene.ModelNode("m1"),
		scene.CategoryNode("m1", "c2"),
		scene.ElementNode("m1", "c1", "e1").WithChildren(),
		scene.GroupNode("m2", "c1", "e5"),
	}
	for _, node := range nodes {
		t.Run(node.String(), func(t *testing.T) {
			vp := viewport.NewMemory(viewport.WithModels("m1"), viewport.WithCategories("c1"))
			env := newEnv(t, vp)

			env.change(t, node, true)
			first := capture(vp)
			env.change(t, node, true)
			assert.Equal(t, first, capture(vp))
		})
	}
}

func TestChange_OnThenOffIsHidden(t *testing.T) {
	nodes := []scene.NodeRef{
		scene.SubjectNode("s0"),
		scene.ModelNode("m2"),
		scene.CategoryNode("m1", "c1"),
		scene.CategoryNode("m1", "c2"),
		scene.ElementNode("m1", "c2", "e4"),
		scene.ElementNode("m1", "c1", "e1").WithChildren(),
		scene.GroupNode("m1", "c1", "e1", "e3"),
	}
	for _, node := range nodes {
		t.Run(node.String(), func(t *testing.T) {
			vp := viewport.NewMemory(viewport.WithModels("m1"), viewport.WithCategories("c2"))
			env := newEnv(t, vp)

			env.change(t, node, true)
			assert.NotEqual(t, scene.Hidden, env.state(t, node))
			env.change(t, node, false)
			assert.Equal(t, scene.Hidden, env.state(t, node))
		})
	}
}

func TestChange_ModelOnClearsOverrides(t *testing.T) {
	vp := viewport.NewMemory(viewport.WithModels("m1"))
	env := newEnv(t, vp)
	m1 := scene.ModelNode("m1")

	vp.SetAlwaysDrawn(scene.NewIDSet("e1", "e2", "e3"), false)
	vp.SetNeverDrawn(scene.NewIDSet("e4"))
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m1", "c1")))
	assert.Equal(t, scene.Hidden, env.state(t, scene.CategoryNode("m1", "c2")))
	assert.Equal(t, scene.Partial, env.state(t, m1))

	env.change(t, m1, true)

	assert.Empty(t, vp.AlwaysDrawn().Sorted())
	assert.Empty(t, vp.NeverDrawn().Sorted())
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m1", "c1")))
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m1", "c2")))
	assert.Equal(t, scene.Visible, env.state(t, m1))
}

func TestChange_ModelOffOnlyHidesModel(t *testing.T) {
	env := newEnv(t, nil)
	env.vp.SetPerModelCategoryOverride([]string{"m1"}, []string{"c1"}, scene.CategoryOverrideHide)
	env.vp.SetNeverDrawn(scene.NewIDSet("e4"))

	env.change(t, scene.ModelNode("m1"), false)

	assert.False(t, env.vp.ViewsModel("m1"))
	assert.Equal(t, scene.CategoryOverrideHide, env.vp.PerModelCategoryOverride("m1", "c1"))
	assert.Equal(t, []string{"e4"}, env.vp.NeverDrawn().Sorted())
}

func TestChange_CategoryOfHiddenModelShowsModelAlone(t *testing.T) {
	vp := viewport.NewMemory(viewport.WithModels("m1"), viewport.WithCategories("c1", "c3"))
	env := newEnv(t, vp)

	env.change(t, scene.CategoryNode("m2", "c3"), true)

	assert.True(t, vp.ViewsModel("m2"))
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m2", "c3")))
	assert.Equal(t, scene.Hidden, env.state(t, scene.CategoryNode("m2", "c1")))
	assert.Equal(t, scene.Partial, env.state(t, scene.ModelNode("m2")))
}

func TestChange_ElementWithChildrenIncludesDescendants(t *testing.T) {
	vp := viewport.NewMemory(viewport.WithModels("m1"))
	env := newEnv(t, vp)

	env.change(t, scene.ElementNode("m1", "c1", "e1").WithChildren(), true)
	assert.Equal(t, []string{"e1", "e2"}, vp.AlwaysDrawn().Sorted())
	assert.Equal(t, scene.Partial, env.state(t, scene.CategoryNode("m1", "c1")))
}

func TestChange_GroupWritesEachSetOnce(t *testing.T) {
	env := newEnv(t, nil)
	env.vp.SetNeverDrawn(scene.NewIDSet("e1", "e3"))

	var events []viewport.EventKind
	unsubscribe := env.vp.Subscribe(func(ev viewport.Event) { events = append(events, ev.Kind) })
	defer unsubscribe()

	env.vp.SetAlwaysDrawn(scene.NewIDSet(), true)
	events = nil

	env.change(t, scene.GroupNode("m1", "c1", "e1", "e3"), true)
	assert.Equal(t, []viewport.EventKind{viewport.EventAlwaysDrawn, viewport.EventNeverDrawn}, events)
	assert.Equal(t, []string{"e1", "e3"}, env.vp.AlwaysDrawn().Sorted())
	assert.Empty(t, env.vp.NeverDrawn().Sorted())
}

func TestHooks_StatusHookIsAuthoritativeAndReused(t *testing.T) {
	var seen []string
	env := newEnv(t, nil, func(cfg *Config) {
		cfg.StatusHooks.Model = func(ctx context.Context, p ModelParams, original StatusFunc) (scene.Status, error) {
			seen = append(seen, p.ModelID)
			if p.ModelID == "m2" {
				return scene.PartialStatus("custom"), nil
			}
			return original(ctx)
		}
	})

	assert.Equal(t, scene.Partial, env.state(t, scene.SubjectNode("s0")))
	assert.Equal(t, []string{"m1", "m2"}, seen)
}

func TestHooks_ChangeHookWrapsCategoryChanges(t *testing.T) {
	var calls []CategoryParams
	env := newEnv(t, nil, func(cfg *Config) {
		cfg.ChangeHooks.Category = func(ctx context.Context, p CategoryParams, on bool, original ChangeFunc) error {
			calls = append(calls, p)
			if p.CategoryID == "c2" {
				return nil
			}
			return original(ctx)
		}
	})
	env.vp.ChangeCategoryDisplay([]string{"c1", "c2"}, false)

	env.change(t, scene.ModelNode("m1"), true)
	assert.Equal(t, []CategoryParams{{ModelID: "m1", CategoryID: "c1"}, {ModelID: "m1", CategoryID: "c2"}}, calls)
	assert.Equal(t, scene.CategoryOverrideShow, env.vp.PerModelCategoryOverride("m1", "c1"))
	assert.Equal(t, scene.CategoryOverrideNone, env.vp.PerModelCategoryOverride("m1", "c2"))
}

func modelAncestors() scene.Path {
	return scene.Path{
		{ClassName: "BisCore.Subject", ID: "s0"},
		{ClassName: "BisCore.PhysicalModel", ID: "m1"},
	}
}

func TestFiltered_ElementTargets(t *testing.T) {
	env := newEnv(t, nil)
	node := scene.ModelNode("m1").WithFilter(scene.Filter{
		Ancestors: modelAncestors(),
		Paths: []scene.Path{
			{{ClassName: "BisCore.SpatialCategory", ID: "c1"}, {ClassName: "Generic.PhysicalObject", ID: "e1"}, {ClassName: "Generic.PhysicalObject", ID: "e2"}},
			{{ClassName: "BisCore.SpatialCategory", ID: "c1"}, {ClassName: "Generic.PhysicalObject", ID: "e1"}},
		},
	})

	targets, err := env.engine.ResolveFilterTargets(context.Background(), node)
	require.NoError(t, err)
	require.Len(t, targets.ElementGroups(), 1)
	g := targets.ElementGroups()[0]
	assert.Equal(t, "m1", g.ModelID)
	assert.Equal(t, "c1", g.CategoryID)
	assert.Equal(t, []ElementTarget{{ID: "e1", HasChildren: true}}, g.Elements)

	assert.Equal(t, scene.Visible, env.state(t, node))

	env.change(t, node, false)
	assert.Equal(t, []string{"e1", "e2"}, env.vp.NeverDrawn().Sorted())
	assert.Equal(t, scene.Hidden, env.state(t, node))
	assert.Equal(t, scene.Partial, env.state(t, scene.CategoryNode("m1", "c1")))
}

func TestFiltered_IntermediateElementsAndDerivedClasses(t *testing.T) {
	env := newEnv(t, nil)
	node := scene.SubjectNode("s0").WithFilter(scene.Filter{
		Ancestors: scene.Path{{ClassName: "BisCore.Subject", ID: "s0"}},
		Paths: []scene.Path{
			{{ClassName: "Custom.Folder", ID: "s1"}},
			{{ClassName: "BisCore.PhysicalModel", ID: "m1"}, {ClassName: "Custom.Layer", ID: "c1"}, {ClassName: "Generic.PhysicalObject", ID: "e1"}, {ClassName: "Generic.PhysicalObject", ID: "e2"}},
			{{ClassName: "BisCore.PhysicalModel", ID: "m2"}, {ClassName: "BisCore:SpatialCategory", ID: "c3"}},
		},
	})

	targets, err := env.engine.ResolveFilterTargets(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, targets.SubjectIDs)
	assert.Empty(t, targets.ModelIDs)
	assert.Equal(t, []scene.ModelCategory{{ModelID: "m2", CategoryID: "c3"}}, targets.Categories)
	require.Len(t, targets.ElementGroups(), 1)
	assert.Equal(t, []ElementTarget{{ID: "e1"}, {ID: "e2", HasChildren: true}}, targets.ElementGroups()[0].Elements)
}

func TestFiltered_CategoryWithoutModelFansOut(t *testing.T) {
	env := newEnv(t, nil)
	node := scene.SubjectNode("s0").WithFilter(scene.Filter{
		Paths: []scene.Path{{{ClassName: "BisCore.SpatialCategory", ID: "c1"}}},
	})

	targets, err := env.engine.ResolveFilterTargets(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, []scene.ModelCategory{{ModelID: "m1", CategoryID: "c1"}, {ModelID: "m2", CategoryID: "c1"}}, targets.Categories)

	env.change(t, node, false)
	assert.Equal(t, scene.Hidden, env.state(t, scene.CategoryNode("m2", "c1")))
	assert.Equal(t, scene.Visible, env.state(t, scene.CategoryNode("m2", "c3")))
}

func TestFiltered_RowCeilingIsTranslated(t *testing.T) {
	env := newEnv(t, nil)
	require.NoError(t, env.db.Load(context.Background(), &query.Fixture{
		ClassBases: []query.ClassBaseRow{
			{Class: "Custom.Wide", Base: "Custom.A"},
			{Class: "Custom.Wide", Base: "Custom.B"},
		},
	}))
	env.engine.classifier = NewClassifier(env.src, DefaultClassSpecs(), 1)

	node := scene.ModelNode("m1").WithFilter(scene.Filter{
		Paths: []scene.Path{{{ClassName: "Custom.Wide", ID: "x"}}},
	})
	_, err := env.engine.GetVisibilityStatus(context.Background(), node)
	assert.ErrorIs(t, err, ErrTooManyFilterMatches)
}

func TestReducePaths(t *testing.T) {
	a := scene.InstanceKey{ClassName: "X.A", ID: "a"}
	b := scene.InstanceKey{ClassName: "X.B", ID: "b"}
	c := scene.InstanceKey{ClassName: "X.C", ID: "c"}

	tests := []struct {
		name string
		in   []scene.Path
		want []scene.Path
	}{
		{"prefix dropped", []scene.Path{{a}, {a, b}}, []scene.Path{{a}}},
		{"order independent", []scene.Path{{a, b}, {a}}, []scene.Path{{a}}},
		{"siblings kept", []scene.Path{{a, b}, {a, c}}, []scene.Path{{a, b}, {a, c}}},
		{"deep prefix", []scene.Path{{a, b, c}, {a, b}, {c}}, []scene.Path{{c}, {a, b}}},
		{"empty ignored", []scene.Path{{}, {b}}, []scene.Path{{b}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReducePaths(tt.in))
		})
	}
}

func TestClassifier(t *testing.T) {
	ctx := context.Background()
	src := querytest.NewCounting(querytest.Open(t, querytest.SampleScene()))
	c := NewClassifier(src, DefaultClassSpecs(), 0)

	tests := []struct {
		name string
		want scene.StructuralClass
	}{
		{"BisCore.Subject", scene.ClassSubject},
		{"biscore:subject", scene.ClassSubject},
		{"Custom.Folder", scene.ClassSubject},
		{"Custom:Layer", scene.ClassCategory},
		{"BisCore.PhysicalModel", scene.ClassModel},
		{"Generic.PhysicalObject", scene.ClassElement},
		{"not a class", scene.ClassElement},
	}
	for _, tt := range tests {
		got, err := c.Classify(ctx, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}

	before := src.Count(query.StmtClassBases.Name)
	_, err := c.Classify(ctx, "Custom.Folder")
	require.NoError(t, err)
	assert.Equal(t, before, src.Count(query.StmtClassBases.Name))
}

func TestParseClassSpecs(t *testing.T) {
	specs, err := ParseClassSpecs([]string{"My.Subject"}, nil, []string{"My:Layer"})
	require.NoError(t, err)
	assert.Equal(t, []scene.ClassSpec{{Schema: "My", Class: "Subject"}}, specs.Subject)
	assert.Equal(t, DefaultClassSpecs().Model, specs.Model)

	_, err = ParseClassSpecs([]string{"nodot"}, nil, nil)
	assert.ErrorIs(t, err, scene.ErrInvalidClassSpec)
}
