// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scenevis serves and inspects scene visibility.
//
// Usage:
//
//	scenevis db init --config scenevis.yaml
//	scenevis db load fixtures/sample.yaml
//	scenevis serve
//	scenevis status --hide-category c2
//
// Example requests:
//
//	# Create a viewport showing two models
//	curl -X POST http://localhost:8090/v1/visibility/viewports \
//	  -d '{"models": ["m1", "m2"], "categories": ["c1"]}'
//
//	# Ask for a model's status
//	curl -X POST http://localhost:8090/v1/visibility/viewports/$ID/status \
//	  -d '{"nodes": [{"kind": "model", "model_id": "m1"}]}'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "scenevis",
		Short:         "Tri-state visibility for hierarchical scene graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to scenevis.yaml (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbLoadCmd)

	statusCmd.Flags().StringSliceVar(&hideModels, "hide-model", nil, "Model ids to leave undisplayed")
	statusCmd.Flags().StringSliceVar(&hideCategories, "hide-category", nil, "Category ids to leave undisplayed")
	statusCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
