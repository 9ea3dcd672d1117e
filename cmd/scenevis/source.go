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
	"log/slog"

	"github.com/AleutianAI/scenevis/pkg/logging"
	"github.com/AleutianAI/scenevis/services/visibility/config"
	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/query/postgres"
	"github.com/AleutianAI/scenevis/services/visibility/query/sqlite"
)

// sceneSource is a query source that can also accept fixtures.
type sceneSource interface {
	query.Source
	Load(ctx context.Context, f *query.Fixture) error
	Close() error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Logging.JSON,
		LogDir:  cfg.Logging.LogDir,
		Service: "scenevis",
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Slog())
	return logger, nil
}

// openSource opens the configured driver. Both drivers create the schema.
func openSource(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (sceneSource, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.DSN, logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Driver)
	}
}
