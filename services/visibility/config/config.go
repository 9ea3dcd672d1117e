// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the scenevis service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/scenevis/services/visibility/engine"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
	"github.com/AleutianAI/scenevis/services/visibility/telemetry"
)

// ErrInvalid wraps every validation failure returned by Load and Validate.
var ErrInvalid = errors.New("config: invalid")

// Source drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root of scenevis.yaml.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Source     SourceConfig     `yaml:"source"`
	Visibility VisibilityConfig `yaml:"visibility"`
	Classes    ClassesConfig    `yaml:"classes"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
}

// ServiceConfig configures the HTTP listener.
type ServiceConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// RateLimit is requests per second across all clients. Zero disables it.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`
}

// SourceConfig selects the scene query source.
type SourceConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `yaml:"dsn" validate:"required"`

	// RowLimit caps filter-resolution queries. Negative means unbounded.
	RowLimit int `yaml:"row_limit"`

	// Watch enables fsnotify (sqlite) or LISTEN (postgres) data-change signals.
	Watch         bool   `yaml:"watch"`
	NotifyChannel string `yaml:"notify_channel"`
}

// VisibilityConfig tunes cache debounce windows.
type VisibilityConfig struct {
	OverrideDebounce time.Duration `yaml:"override_debounce" validate:"gte=0"`
	EventDebounce    time.Duration `yaml:"event_debounce" validate:"gte=0"`
}

// ClassesConfig lists class specs, "Schema.Class" or "Schema:Class".
type ClassesConfig struct {
	Subject  []string `yaml:"subject" validate:"dive,classspec"`
	Model    []string `yaml:"model" validate:"dive,classspec"`
	Category []string `yaml:"category" validate:"dive,classspec"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON   bool   `yaml:"json"`
	LogDir string `yaml:"log_dir"`
}

// Default returns a configuration that serves ./scene.db on port 8090.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Port:      8090,
			RateLimit: 50,
			RateBurst: 100,
		},
		Source: SourceConfig{
			Driver:        DriverSQLite,
			DSN:           "scene.db",
			RowLimit:      engine.DefaultFilterRowLimit,
			Watch:         true,
			NotifyChannel: "scene_changed",
		},
		Visibility: VisibilityConfig{
			OverrideDebounce: 20 * time.Millisecond,
			EventDebounce:    20 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("classspec", validateClassSpec); err != nil {
		panic(fmt.Sprintf("register classspec validator: %v", err))
	}
}

func validateClassSpec(fl validator.FieldLevel) bool {
	_, err := scene.ParseClassSpec(fl.Field().String())
	return err == nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads defaults only.
//
// Environment:
//
//	SCENEVIS_SOURCE_DSN - replaces source.dsn
//	SCENEVIS_HTTP_PORT  - replaces service.port
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SCENEVIS_SOURCE_DSN"); v != "" {
		c.Source.DSN = v
	}
	if v := os.Getenv("SCENEVIS_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SCENEVIS_HTTP_PORT %q: %w", ErrInvalid, v, err)
		}
		c.Service.Port = port
	}
	return nil
}

// Validate checks field constraints and parses the class specs.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.ClassSpecs(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ClassSpecs returns the parsed class configuration. Empty lists keep the
// built-in BisCore defaults.
func (c Config) ClassSpecs() (engine.ClassSpecs, error) {
	return engine.ParseClassSpecs(c.Classes.Subject, c.Classes.Model, c.Classes.Category)
}

// Save writes c as YAML to path.
func Save(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
