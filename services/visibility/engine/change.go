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

	"github.com/AleutianAI/scenevis/services/visibility/overrides"
	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// ChangeVisibility turns node on or off, cascading to its descendants and
// clearing overrides the change makes stale.
//
// Description:
//
//	Subjects change every transitively owned model. Turning a model on
//	clears its category and element overrides and turns every category
//	on; turning it off only removes it from the displayed set. Categories
//	and elements show their model first when it is hidden. Element
//	changes write each override set at most once per call. Filtered nodes
//	change exactly their filter targets.
//
// Thread Safety: calls must be serialized per viewport.
func (e *Engine) ChangeVisibility(ctx context.Context, node scene.NodeRef, on bool) error {
	if err := e.checkNode("change visibility", node); err != nil {
		return err
	}
	e.logger.Debug("change visibility",
		slog.String("node", node.String()),
		slog.Bool("on", on),
		slog.Bool("filtered", node.IsFiltered()),
	)
	if node.IsFiltered() {
		return e.changeFiltered(ctx, node, on)
	}

	switch node.Kind {
	case scene.KindSubject:
		return e.changeSubject(ctx, node.SubjectIDs, on)
	case scene.KindModel:
		return e.changeModel(ctx, node.ModelID, on)
	case scene.KindCategory:
		return e.changeCategory(ctx, node.ModelID, node.CategoryID, on)
	case scene.KindElement:
		return e.changeElement(ctx, node.ModelID, node.CategoryID, node.ElementID, node.HasChildren, on)
	default:
		return e.changeGroup(ctx, node.ModelID, node.CategoryID, node.ElementIDs, on)
	}
}

func (e *Engine) changeSubject(ctx context.Context, subjectIDs []string, on bool) error {
	return runChange(ctx, e.changeHooks.Subject, SubjectParams{SubjectIDs: subjectIDs}, on, func(ctx context.Context) error {
		models, err := e.hierarchy.GetSubjectModelIDs(ctx, subjectIDs)
		if err != nil {
			return fmt.Errorf("resolve subject models: %w", err)
		}
		for _, id := range models {
			if err := e.changeModel(ctx, id, on); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) changeModel(ctx context.Context, modelID string, on bool) error {
	return runChange(ctx, e.changeHooks.Model, ModelParams{ModelID: modelID}, on, func(ctx context.Context) error {
		if !on {
			e.vp.ChangeModelDisplay([]string{modelID}, false)
			return nil
		}

		always, err := e.overrides.GetElements(ctx, overrides.Request{SetType: overrides.SetAlways, ModelID: modelID})
		if err != nil {
			return fmt.Errorf("read always-drawn overrides: %w", err)
		}
		categories, err := e.hierarchy.GetModelCategories(ctx, modelID)
		if err != nil {
			return fmt.Errorf("resolve model categories: %w", err)
		}

		e.vp.ChangeModelDisplay([]string{modelID}, true)
		e.vp.ClearPerModelCategoryOverrides([]string{modelID})
		e.removeAlwaysDrawn(always)

		return e.changeCategories(ctx, modelID, categories, true)
	})
}

// showModelWithoutCategories displays a hidden model with every category
// hidden and none of its elements always drawn, so that one category or
// element can then be shown on its own.
func (e *Engine) showModelWithoutCategories(ctx context.Context, modelID string) error {
	always, err := e.overrides.GetElements(ctx, overrides.Request{SetType: overrides.SetAlways, ModelID: modelID})
	if err != nil {
		return fmt.Errorf("read always-drawn overrides: %w", err)
	}
	categories, err := e.hierarchy.GetModelCategories(ctx, modelID)
	if err != nil {
		return fmt.Errorf("resolve model categories: %w", err)
	}

	e.vp.ChangeModelDisplay([]string{modelID}, true)
	e.vp.SetPerModelCategoryOverride([]string{modelID}, categories, scene.CategoryOverrideHide)
	e.removeAlwaysDrawn(always)
	return nil
}

func (e *Engine) removeAlwaysDrawn(ids scene.IDSet) {
	if ids.Len() == 0 {
		return
	}
	set := e.vp.AlwaysDrawn()
	before := set.Len()
	for id := range ids {
		set.Remove(id)
	}
	if set.Len() != before {
		e.vp.SetAlwaysDrawn(set, e.vp.IsAlwaysDrawnExclusive())
	}
}

func (e *Engine) changeCategory(ctx context.Context, modelID, categoryID string, on bool) error {
	return e.changeCategories(ctx, modelID, []string{categoryID}, on)
}

// changeCategories changes several categories of one model. Without a
// category hook the overrides of all categories are written together.
func (e *Engine) changeCategories(ctx context.Context, modelID string, categoryIDs []string, on bool) error {
	if e.changeHooks.Category == nil {
		return e.applyCategories(ctx, modelID, categoryIDs, on)
	}
	for _, cat := range categoryIDs {
		params := CategoryParams{ModelID: modelID, CategoryID: cat}
		err := e.changeHooks.Category(ctx, params, on, func(ctx context.Context) error {
			return e.applyCategories(ctx, modelID, []string{cat}, on)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyCategories(ctx context.Context, modelID string, categoryIDs []string, on bool) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	if on && !e.vp.ViewsModel(modelID) {
		if err := e.showModelWithoutCategories(ctx, modelID); err != nil {
			return err
		}
	}

	override := scene.CategoryOverrideHide
	if on {
		override = scene.CategoryOverrideShow
	}
	var explicit, none []string
	for _, cat := range categoryIDs {
		if e.vp.ViewsCategory(cat) == on {
			none = append(none, cat)
		} else {
			explicit = append(explicit, cat)
		}
	}
	if len(none) > 0 {
		e.vp.SetPerModelCategoryOverride([]string{modelID}, none, scene.CategoryOverrideNone)
	}
	if len(explicit) > 0 {
		e.vp.SetPerModelCategoryOverride([]string{modelID}, explicit, override)
	}

	delta := e.newDelta()
	for _, cat := range categoryIDs {
		always, never, err := e.overrideSets(ctx, modelID, cat)
		if err != nil {
			return err
		}
		delta.removeAlways(always)
		delta.removeNever(never)
	}
	delta.commit()
	return nil
}

func (e *Engine) changeElement(ctx context.Context, modelID, categoryID, elementID string, hasChildren, on bool) error {
	params := ElementParams{ModelID: modelID, CategoryID: categoryID, ElementID: elementID, HasChildren: hasChildren}
	return runChange(ctx, e.changeHooks.Element, params, on, func(ctx context.Context) error {
		delta := e.newDelta()
		target := ElementGroup{ModelID: modelID, CategoryID: categoryID, Elements: []ElementTarget{{ID: elementID, HasChildren: hasChildren}}}
		if err := e.applyElements(ctx, delta, target, on, nil); err != nil {
			return err
		}
		delta.commit()
		return nil
	})
}

func (e *Engine) changeGroup(ctx context.Context, modelID, categoryID string, elementIDs []string, on bool) error {
	params := GroupParams{ModelID: modelID, CategoryID: categoryID, ElementIDs: elementIDs}
	return runChange(ctx, e.changeHooks.Group, params, on, func(ctx context.Context) error {
		delta := e.newDelta()
		target := ElementGroup{ModelID: modelID, CategoryID: categoryID}
		for _, id := range elementIDs {
			target.Elements = append(target.Elements, ElementTarget{ID: id})
		}
		if err := e.applyElements(ctx, delta, target, on, nil); err != nil {
			return err
		}
		delta.commit()
		return nil
	})
}

// applyElements records the override changes for a group of elements in
// delta. Descendants of elements with children are fetched in one batch.
func (e *Engine) applyElements(ctx context.Context, delta *overrideDelta, g ElementGroup, on bool, descendantOpts []query.Option) error {
	if on && !e.vp.ViewsModel(g.ModelID) {
		// The model write invalidates the snapshots taken so far.
		delta.commit()
		if err := e.showModelWithoutCategories(ctx, g.ModelID); err != nil {
			return err
		}
		delta.refresh()
	}

	ids := g.IDs()
	var parents []string
	for _, el := range g.Elements {
		if el.HasChildren {
			parents = append(parents, el.ID)
		}
	}
	if len(parents) > 0 {
		children, err := e.hierarchy.GetElementDescendants(ctx, parents, descendantOpts...)
		if err != nil {
			return translateLimit(fmt.Errorf("resolve element descendants: %w", err))
		}
		ids = append(ids, children...)
	}

	visibleByDefault, _ := e.categoryDefault(g.ModelID, g.CategoryID)
	exclusive := e.vp.IsAlwaysDrawnExclusive()
	if on {
		delta.never.Remove(ids...)
		if !visibleByDefault || exclusive {
			delta.always.Add(ids...)
		}
	} else {
		delta.always.Remove(ids...)
		if visibleByDefault && !exclusive {
			delta.never.Add(ids...)
		}
	}
	return nil
}

// changeFiltered changes exactly the filter targets of node, writing each
// element override set at most once for all element targets together.
func (e *Engine) changeFiltered(ctx context.Context, node scene.NodeRef, on bool) error {
	targets, err := e.ResolveFilterTargets(ctx, node)
	if err != nil {
		return err
	}
	if targets.Empty() {
		node.Filter = nil
		return e.ChangeVisibility(ctx, node, on)
	}

	if len(targets.SubjectIDs) > 0 {
		if err := e.changeSubject(ctx, targets.SubjectIDs, on); err != nil {
			return err
		}
	}
	for _, id := range targets.ModelIDs {
		if err := e.changeModel(ctx, id, on); err != nil {
			return err
		}
	}
	for _, mc := range targets.Categories {
		if err := e.changeCategory(ctx, mc.ModelID, mc.CategoryID, on); err != nil {
			return err
		}
	}

	groups := targets.ElementGroups()
	if len(groups) == 0 {
		return nil
	}
	if e.changeHooks.Element != nil || e.changeHooks.Group != nil {
		return e.changeGroupsHooked(ctx, groups, on)
	}

	delta := e.newDelta()
	for _, g := range groups {
		if err := e.applyElements(ctx, delta, g, on, e.limitOpts()); err != nil {
			return err
		}
	}
	delta.commit()
	return nil
}

func (e *Engine) changeGroupsHooked(ctx context.Context, groups []ElementGroup, on bool) error {
	for _, g := range groups {
		var err error
		if len(g.Elements) == 1 {
			el := g.Elements[0]
			err = e.changeElement(ctx, g.ModelID, g.CategoryID, el.ID, el.HasChildren, on)
		} else {
			err = e.changeGroup(ctx, g.ModelID, g.CategoryID, g.IDs(), on)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
