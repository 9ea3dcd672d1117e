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

	"github.com/samber/lo"

	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// GetVisibilityStatus returns the tri-state visibility of node.
//
// Description:
//
//	Filtered nodes fold over their resolved filter targets only. Other
//	nodes dispatch on kind; every kind runs through its optional status
//	hook, including kinds reached while folding a parent.
//
// Outputs:
//
//	scene.Status - The node's status.
//	error - ErrContractViolation for malformed nodes,
//	ErrTooManyFilterMatches when a filter exceeds the row ceiling, or a
//	wrapped query failure.
func (e *Engine) GetVisibilityStatus(ctx context.Context, node scene.NodeRef) (scene.Status, error) {
	if err := e.checkNode("get visibility status", node); err != nil {
		return scene.Status{}, err
	}
	if node.IsFiltered() {
		return e.filteredStatus(ctx, node)
	}
	return e.nodeStatus(ctx, node)
}

func (e *Engine) nodeStatus(ctx context.Context, node scene.NodeRef) (scene.Status, error) {
	switch node.Kind {
	case scene.KindSubject:
		return e.subjectStatus(ctx, node.SubjectIDs)
	case scene.KindModel:
		return e.modelStatus(ctx, node.ModelID)
	case scene.KindCategory:
		return e.categoryStatus(ctx, node.ModelID, node.CategoryID)
	case scene.KindElement:
		return e.elementStatus(ctx, node.ModelID, node.CategoryID, node.ElementID, node.HasChildren)
	default:
		return e.groupStatus(ctx, node.ModelID, node.CategoryID, node.ElementIDs)
	}
}

func (e *Engine) subjectStatus(ctx context.Context, subjectIDs []string) (scene.Status, error) {
	return runStatus(ctx, e.statusHooks.Subject, SubjectParams{SubjectIDs: subjectIDs}, func(ctx context.Context) (scene.Status, error) {
		if !e.vp.IsSpatial() {
			return scene.DisabledStatus(scene.ReasonNonSpatialView), nil
		}
		models, err := e.hierarchy.GetSubjectModelIDs(ctx, subjectIDs)
		if err != nil {
			return scene.Status{}, fmt.Errorf("resolve subject models: %w", err)
		}
		return e.foldModels(ctx, models)
	})
}

func (e *Engine) foldModels(ctx context.Context, models []string) (scene.Status, error) {
	var agg scene.Aggregator
	for _, id := range models {
		st, err := e.modelStatus(ctx, id)
		if err != nil {
			return scene.Status{}, err
		}
		if agg.Add(st.State) {
			break
		}
	}
	return agg.Status(), nil
}

func (e *Engine) modelStatus(ctx context.Context, modelID string) (scene.Status, error) {
	return runStatus(ctx, e.statusHooks.Model, ModelParams{ModelID: modelID}, func(ctx context.Context) (scene.Status, error) {
		if !e.vp.IsSpatial() {
			return scene.DisabledStatus(scene.ReasonNonSpatialView), nil
		}
		if !e.vp.ViewsModel(modelID) {
			return scene.HiddenStatus(scene.ReasonModelHidden), nil
		}
		categories, err := e.hierarchy.GetModelCategories(ctx, modelID)
		if err != nil {
			return scene.Status{}, fmt.Errorf("resolve model categories: %w", err)
		}
		if len(categories) == 0 && e.vp.IsAlwaysDrawnExclusive() {
			return scene.HiddenStatus(scene.ReasonExclusive), nil
		}
		var agg scene.Aggregator
		for _, cat := range categories {
			st, err := e.categoryStatus(ctx, modelID, cat)
			if err != nil {
				return scene.Status{}, err
			}
			if agg.Add(st.State) {
				break
			}
		}
		return agg.Status(), nil
	})
}

func (e *Engine) categoryStatus(ctx context.Context, modelID, categoryID string) (scene.Status, error) {
	return runStatus(ctx, e.statusHooks.Category, CategoryParams{ModelID: modelID, CategoryID: categoryID}, func(ctx context.Context) (scene.Status, error) {
		if !e.vp.ViewsModel(modelID) {
			return scene.HiddenStatus(scene.ReasonModelHidden), nil
		}
		total, err := e.hierarchy.GetCategoryElementCount(ctx, modelID, categoryID)
		if err != nil {
			return scene.Status{}, err
		}
		always, never, err := e.overrideSets(ctx, modelID, categoryID)
		if err != nil {
			return scene.Status{}, err
		}
		neverCount := never.Len()
		alwaysCount := 0
		for id := range always {
			if !never.Has(id) {
				alwaysCount++
			}
		}
		return e.setStatus(modelID, categoryID, total, alwaysCount, neverCount), nil
	})
}

func (e *Engine) groupStatus(ctx context.Context, modelID, categoryID string, elementIDs []string) (scene.Status, error) {
	return runStatus(ctx, e.statusHooks.Group, GroupParams{ModelID: modelID, CategoryID: categoryID, ElementIDs: elementIDs}, func(ctx context.Context) (scene.Status, error) {
		if !e.vp.ViewsModel(modelID) {
			return scene.HiddenStatus(scene.ReasonModelHidden), nil
		}
		always, never, err := e.overrideSets(ctx, modelID, categoryID)
		if err != nil {
			return scene.Status{}, err
		}
		ids := lo.Uniq(elementIDs)
		neverCount, alwaysCount := 0, 0
		for _, id := range ids {
			switch {
			case never.Has(id):
				neverCount++
			case always.Has(id):
				alwaysCount++
			}
		}
		return e.setStatus(modelID, categoryID, len(ids), alwaysCount, neverCount), nil
	})
}

// setStatus combines override counts over a set of total elements with the
// category default.
func (e *Engine) setStatus(modelID, categoryID string, total, alwaysCount, neverCount int) scene.Status {
	exclusive := e.vp.IsAlwaysDrawnExclusive()
	if total > 0 {
		if neverCount >= total {
			return scene.HiddenStatus(scene.ReasonNeverDrawn)
		}
		if alwaysCount >= total {
			return scene.VisibleStatus(scene.ReasonAlwaysDrawn)
		}
	}
	if exclusive {
		if alwaysCount == 0 {
			return scene.HiddenStatus(scene.ReasonExclusive)
		}
		return scene.PartialStatus(scene.ReasonOverrideMismatch)
	}

	visible, reason := e.categoryDefault(modelID, categoryID)
	switch {
	case visible && neverCount > 0:
		return scene.PartialStatus(scene.ReasonOverrideMismatch)
	case !visible && alwaysCount > 0:
		return scene.PartialStatus(scene.ReasonOverrideMismatch)
	default:
		return scene.FromBool(visible, reason)
	}
}

func (e *Engine) elementStatus(ctx context.Context, modelID, categoryID, elementID string, hasChildren bool) (scene.Status, error) {
	params := ElementParams{ModelID: modelID, CategoryID: categoryID, ElementID: elementID, HasChildren: hasChildren}
	return runStatus(ctx, e.statusHooks.Element, params, func(ctx context.Context) (scene.Status, error) {
		if !e.vp.ViewsModel(modelID) {
			return scene.HiddenStatus(scene.ReasonModelHidden), nil
		}
		always, never, err := e.overrideSets(ctx, modelID, categoryID)
		if err != nil {
			return scene.Status{}, err
		}
		switch {
		case never.Has(elementID):
			return scene.HiddenStatus(scene.ReasonNeverDrawn), nil
		case always.Has(elementID):
			return scene.VisibleStatus(scene.ReasonAlwaysDrawn), nil
		case e.vp.IsAlwaysDrawnExclusive():
			return scene.HiddenStatus(scene.ReasonExclusive), nil
		}
		return scene.FromBool(e.categoryDefault(modelID, categoryID)), nil
	})
}

// filteredStatus folds over exactly the node's filter targets. A filter that
// resolves to no targets falls back to the unfiltered node.
func (e *Engine) filteredStatus(ctx context.Context, node scene.NodeRef) (scene.Status, error) {
	targets, err := e.ResolveFilterTargets(ctx, node)
	if err != nil {
		return scene.Status{}, err
	}
	if targets.Empty() {
		return e.nodeStatus(ctx, node)
	}

	var agg scene.Aggregator
	add := func(st scene.Status, err error) (bool, error) {
		if err != nil {
			return true, err
		}
		return agg.Add(st.State), nil
	}

	if len(targets.SubjectIDs) > 0 {
		if done, err := add(e.subjectStatus(ctx, targets.SubjectIDs)); done {
			return filterResult(agg, err)
		}
	}
	for _, id := range targets.ModelIDs {
		if done, err := add(e.modelStatus(ctx, id)); done {
			return filterResult(agg, err)
		}
	}
	for _, mc := range targets.Categories {
		if done, err := add(e.categoryStatus(ctx, mc.ModelID, mc.CategoryID)); done {
			return filterResult(agg, err)
		}
	}
	for _, g := range targets.ElementGroups() {
		var st scene.Status
		var err error
		if len(g.Elements) == 1 {
			el := g.Elements[0]
			st, err = e.elementStatus(ctx, g.ModelID, g.CategoryID, el.ID, el.HasChildren)
		} else {
			st, err = e.groupStatus(ctx, g.ModelID, g.CategoryID, g.IDs())
		}
		if done, err := add(st, err); done {
			return filterResult(agg, err)
		}
	}
	return filterResult(agg, nil)
}

func filterResult(agg scene.Aggregator, err error) (scene.Status, error) {
	if err != nil {
		return scene.Status{}, err
	}
	return scene.Status{State: agg.State(), Reason: scene.ReasonFilterTargets}, nil
}
