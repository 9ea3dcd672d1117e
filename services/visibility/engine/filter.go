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
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// ElementTarget is an element reached by a filter.
type ElementTarget struct {
	ID string

	// HasChildren requests the element's descendants on writes. Set for
	// path terminals only.
	HasChildren bool
}

// ElementGroup is the set of element targets sharing a model and category.
type ElementGroup struct {
	ModelID    string
	CategoryID string
	Elements   []ElementTarget
}

// IDs returns the element ids of the group.
func (g ElementGroup) IDs() []string {
	return lo.Map(g.Elements, func(t ElementTarget, _ int) string { return t.ID })
}

// FilterTargets are the nodes a filtered node stands for.
type FilterTargets struct {
	SubjectIDs []string
	ModelIDs   []string
	Categories []scene.ModelCategory

	groups   []ElementGroup
	groupIdx map[scene.ModelCategory]int
	seen     map[string]struct{}
}

func newFilterTargets() *FilterTargets {
	return &FilterTargets{
		groupIdx: make(map[scene.ModelCategory]int),
		seen:     make(map[string]struct{}),
	}
}

// ElementGroups returns the element targets grouped by model and category,
// in discovery order.
func (t *FilterTargets) ElementGroups() []ElementGroup {
	return t.groups
}

// Empty reports whether the filter resolved to nothing.
func (t *FilterTargets) Empty() bool {
	return len(t.SubjectIDs) == 0 && len(t.ModelIDs) == 0 && len(t.Categories) == 0 && len(t.groups) == 0
}

func (t *FilterTargets) once(key string) bool {
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

func (t *FilterTargets) addSubject(id string) {
	if t.once("s\x00" + id) {
		t.SubjectIDs = append(t.SubjectIDs, id)
	}
}

func (t *FilterTargets) addModel(id string) {
	if t.once("m\x00" + id) {
		t.ModelIDs = append(t.ModelIDs, id)
	}
}

func (t *FilterTargets) addCategory(modelID, categoryID string) {
	if t.once("c\x00" + modelID + "\x00" + categoryID) {
		t.Categories = append(t.Categories, scene.ModelCategory{ModelID: modelID, CategoryID: categoryID})
	}
}

func (t *FilterTargets) addElement(modelID, categoryID string, el ElementTarget) {
	key := scene.ModelCategory{ModelID: modelID, CategoryID: categoryID}
	i, ok := t.groupIdx[key]
	if !ok {
		i = len(t.groups)
		t.groupIdx[key] = i
		t.groups = append(t.groups, ElementGroup{ModelID: modelID, CategoryID: categoryID})
	}
	g := &t.groups[i]
	for j := range g.Elements {
		if g.Elements[j].ID == el.ID {
			g.Elements[j].HasChildren = g.Elements[j].HasChildren || el.HasChildren
			return
		}
	}
	g.Elements = append(g.Elements, el)
}

// ReducePaths drops every path that extends a shorter path in the set. The
// result is ordered by length.
func ReducePaths(paths []scene.Path) []scene.Path {
	sorted := slices.Clone(paths)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })

	var kept []scene.Path
	for _, p := range sorted {
		if len(p) == 0 {
			continue
		}
		if lo.ContainsBy(kept, func(k scene.Path) bool { return p.HasPrefix(k) }) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// ResolveFilterTargets resolves a filtered node to the subjects, models,
// categories and elements its filter paths end at.
//
// Description:
//
//	Paths are reduced first. Each terminal identifier is classified, and
//	the owning model and category are found by walking back through the
//	path and then the node's own ancestor chain, falling back to the
//	node's ids. Element identifiers inside a path are targets too. A
//	category terminal with no owning model fans out over every model
//	containing the category.
func (e *Engine) ResolveFilterTargets(ctx context.Context, node scene.NodeRef) (*FilterTargets, error) {
	targets := newFilterTargets()
	if node.Filter == nil {
		return targets, nil
	}
	if node.Kind == scene.KindElement {
		targets.addElement(node.ModelID, node.CategoryID, ElementTarget{ID: node.ElementID})
	}

	classes := make(map[string]scene.StructuralClass)
	classify := func(k scene.InstanceKey) (scene.StructuralClass, error) {
		if c, ok := classes[k.ClassName]; ok {
			return c, nil
		}
		c, err := e.classifier.Classify(ctx, k.ClassName)
		if err != nil {
			return scene.ClassElement, translateLimit(err)
		}
		classes[k.ClassName] = c
		return c, nil
	}

	// nearest walks back from position i-1 for the closest key of class.
	nearest := func(chain scene.Path, i int, class scene.StructuralClass) (string, error) {
		for j := i - 1; j >= 0; j-- {
			c, err := classify(chain[j])
			if err != nil {
				return "", err
			}
			if c == class {
				return chain[j].ID, nil
			}
		}
		return "", nil
	}

	ancestors := node.Filter.Ancestors
	for _, p := range ReducePaths(node.Filter.Paths) {
		chain := make(scene.Path, 0, len(ancestors)+len(p))
		chain = append(chain, ancestors...)
		chain = append(chain, p...)

		for i := len(ancestors); i < len(chain); i++ {
			key := chain[i]
			terminal := i == len(chain)-1
			class, err := classify(key)
			if err != nil {
				return nil, err
			}

			switch class {
			case scene.ClassSubject:
				if terminal {
					targets.addSubject(key.ID)
				}
			case scene.ClassModel:
				if terminal {
					targets.addModel(key.ID)
				}
			case scene.ClassCategory:
				if !terminal {
					continue
				}
				modelID, err := nearest(chain, i, scene.ClassModel)
				if err != nil {
					return nil, err
				}
				if modelID == "" {
					modelID = node.ModelID
				}
				if modelID != "" {
					targets.addCategory(modelID, key.ID)
					continue
				}
				models, err := e.hierarchy.GetCategoryModels(ctx, key.ID)
				if err != nil {
					return nil, fmt.Errorf("resolve category models: %w", err)
				}
				for _, m := range models {
					targets.addCategory(m, key.ID)
				}
			default:
				categoryID, err := nearest(chain, i, scene.ClassCategory)
				if err != nil {
					return nil, err
				}
				modelID, err := nearest(chain, i, scene.ClassModel)
				if err != nil {
					return nil, err
				}
				if categoryID == "" {
					categoryID = node.CategoryID
				}
				if modelID == "" {
					modelID = node.ModelID
				}
				if modelID == "" || categoryID == "" {
					e.logger.Error("filter target element without owner",
						slog.String("node", node.String()),
						slog.String("element", key.ID),
					)
					return nil, fmt.Errorf("%w: element %s has no model or category in its path", ErrContractViolation, key.ID)
				}
				targets.addElement(modelID, categoryID, ElementTarget{ID: key.ID, HasChildren: terminal})
			}
		}
	}
	return targets, nil
}
