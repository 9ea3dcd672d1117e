// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/scenevis/pkg/ux"
	"github.com/AleutianAI/scenevis/services/visibility"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

var (
	hideModels     []string
	hideCategories []string
	noColor        bool

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the subject/model/category tree with visibility markers",
		Long: `Builds the hierarchy from the configured source, opens a viewport that
displays every model and category except the hidden ones, and prints the
tree. ● visible, ◐ partial, ○ hidden.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
)

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	src, err := openSource(ctx, cfg.Source, logger.Slog())
	if err != nil {
		return err
	}
	defer src.Close()

	svc, err := newService(src, cfg, logger.Slog())
	if err != nil {
		return err
	}
	defer svc.Close()

	roots, err := buildTree(ctx, svc, hideModels, hideCategories)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	color := !noColor && ux.IsTerminal(out)
	if color {
		fmt.Fprintln(out, ux.Styles.Title.Render("Scene visibility"))
	}
	fmt.Fprint(out, ux.RenderTree(roots, color))
	return nil
}

// buildTree opens a viewport displaying every model and category not
// listed in hidden, then walks the visible subject hierarchy from the root.
func buildTree(ctx context.Context, svc *visibility.Service, hiddenModels, hiddenCategories []string) ([]*ux.TreeNode, error) {
	idx := svc.Index()
	root, err := idx.RootSubjectID(ctx)
	if err != nil {
		return nil, err
	}
	models, err := idx.GetSubjectModelIDs(ctx, []string{root})
	if err != nil {
		return nil, err
	}
	var categories []string
	for _, m := range models {
		cats, err := idx.GetModelCategories(ctx, m)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cats...)
	}

	sess, err := svc.CreateSession(visibility.CreateViewportRequest{
		Models:     lo.Without(models, hiddenModels...),
		Categories: lo.Without(lo.Uniq(categories), hiddenCategories...),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = svc.CloseSession(sess.ID) }()

	node, err := subjectTree(ctx, svc, sess, root)
	if err != nil {
		return nil, err
	}
	return []*ux.TreeNode{node}, nil
}

func subjectTree(ctx context.Context, svc *visibility.Service, sess *visibility.Session, id string) (*ux.TreeNode, error) {
	st, err := svc.Status(ctx, sess, scene.SubjectNode(id))
	if err != nil {
		return nil, err
	}
	node := &ux.TreeNode{Label: id, Status: st}

	listing, err := svc.ChildSubjects(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, child := range listing.Subjects {
		sub, err := subjectTree(ctx, svc, sess, child.ID)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
	}

	for _, m := range listing.Models {
		mst, err := svc.Status(ctx, sess, scene.ModelNode(m))
		if err != nil {
			return nil, err
		}
		mnode := &ux.TreeNode{Label: m, Status: mst}
		cats, err := svc.Index().GetModelCategories(ctx, m)
		if err != nil {
			return nil, err
		}
		for _, c := range cats {
			cst, err := svc.Status(ctx, sess, scene.CategoryNode(m, c))
			if err != nil {
				return nil, err
			}
			mnode.Children = append(mnode.Children, &ux.TreeNode{Label: c, Status: cst})
		}
		node.Children = append(node.Children, mnode)
	}
	return node, nil
}
