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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/scenevis/services/visibility"
	"github.com/AleutianAI/scenevis/services/visibility/config"
	"github.com/AleutianAI/scenevis/services/visibility/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the visibility HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
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
	log := logger.Slog()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	src, err := openSource(ctx, cfg.Source, log)
	if err != nil {
		return err
	}
	defer src.Close()

	svc, err := newService(src, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Source.Watch {
		stopWatch, err := svc.WatchSource(ctx, visibility.WatchOptions{Channel: cfg.Source.NotifyChannel})
		if err != nil {
			log.Warn("scene change watching disabled", slog.String("error", err.Error()))
		} else {
			defer stopWatch()
		}
	}

	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := visibility.NewRouter(visibility.NewHandlers(svc), visibility.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		RateLimit:   cfg.Service.RateLimit,
		RateBurst:   cfg.Service.RateBurst,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting scenevis server",
			slog.String("address", server.Addr),
			slog.String("driver", cfg.Source.Driver))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down scenevis server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

func newService(src sceneSource, cfg config.Config, log *slog.Logger) (*visibility.Service, error) {
	specs, err := cfg.ClassSpecs()
	if err != nil {
		return nil, err
	}
	return visibility.NewService(src, visibility.ServiceConfig{
		OverrideDebounce: cfg.Visibility.OverrideDebounce,
		EventDebounce:    cfg.Visibility.EventDebounce,
		RowLimit:         cfg.Source.RowLimit,
		Classes:          &specs,
		Logger:           log,
	}), nil
}
