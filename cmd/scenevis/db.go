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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scenevis/services/visibility/query"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Manage the scene database",
	}
	dbInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the scene schema in the configured source",
		Args:  cobra.NoArgs,
		RunE:  runDBInit,
	}
	dbLoadCmd = &cobra.Command{
		Use:   "load [fixture.yaml]",
		Short: "Insert a YAML scene fixture into the configured source",
		Args:  cobra.ExactArgs(1),
		RunE:  runDBLoad,
	}
)

func runDBInit(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	src, err := openSource(cmd.Context(), cfg.Source, logger.Slog())
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "schema ready in %s source %s\n", cfg.Source.Driver, cfg.Source.DSN)
	return nil
}

func runDBLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	fixture, err := query.LoadFixtureFile(args[0])
	if err != nil {
		return err
	}
	src, err := openSource(cmd.Context(), cfg.Source, logger.Slog())
	if err != nil {
		return err
	}
	defer src.Close()

	if err := src.Load(cmd.Context(), fixture); err != nil {
		return err
	}
	logger.Slog().Info("fixture loaded",
		slog.String("path", args[0]),
		slog.Int("subjects", len(fixture.Subjects)),
		slog.Int("models", len(fixture.Models)),
		slog.Int("elements", len(fixture.Elements)))
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d subjects, %d models, %d elements\n",
		len(fixture.Subjects), len(fixture.Models), len(fixture.Elements))
	return nil
}
