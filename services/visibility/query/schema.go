// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema is the scene schema, one DDL statement per entry. The statements
// are valid for both SQLite and PostgreSQL.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	hide_in_hierarchy INTEGER NOT NULL DEFAULT 0,
	target_partition_id TEXT
)`,
	`CREATE TABLE IF NOT EXISTS models (
	id TEXT PRIMARY KEY,
	parent_subject_id TEXT NOT NULL,
	is_private INTEGER NOT NULL DEFAULT 0,
	class_name TEXT NOT NULL DEFAULT 'BisCore.PhysicalModel'
)`,
	`CREATE TABLE IF NOT EXISTS elements (
	id TEXT PRIMARY KEY,
	model_id TEXT NOT NULL,
	category_id TEXT NOT NULL,
	parent_id TEXT,
	class_name TEXT NOT NULL DEFAULT 'Generic.PhysicalObject'
)`,
	`CREATE INDEX IF NOT EXISTS elements_model_category ON elements (model_id, category_id)`,
	`CREATE INDEX IF NOT EXISTS elements_parent ON elements (parent_id)`,
	`CREATE TABLE IF NOT EXISTS class_bases (
	class_name TEXT NOT NULL,
	base_name TEXT NOT NULL,
	PRIMARY KEY (class_name, base_name)
)`,
}

// Exec is one statement with its positional arguments.
type Exec struct {
	SQL  string
	Args []any
}

// Fixture is a complete scene description, used to seed databases for
// tests, demos and the CLI "db load" command.
type Fixture struct {
	Subjects   []SubjectRow   `yaml:"subjects"`
	Models     []ModelRow     `yaml:"models"`
	Elements   []ElementRow   `yaml:"elements"`
	ClassBases []ClassBaseRow `yaml:"class_bases"`
}

// SubjectRow is a row of the subjects table.
type SubjectRow struct {
	ID              string `yaml:"id"`
	ParentID        string `yaml:"parent,omitempty"`
	HideInHierarchy bool   `yaml:"hide_in_hierarchy,omitempty"`
	TargetPartition string `yaml:"target_partition,omitempty"`
}

// ModelRow is a row of the models table.
type ModelRow struct {
	ID            string `yaml:"id"`
	ParentSubject string `yaml:"subject"`
	Private       bool   `yaml:"private,omitempty"`
	ClassName     string `yaml:"class,omitempty"`
}

// ElementRow is a row of the elements table.
type ElementRow struct {
	ID         string `yaml:"id"`
	ModelID    string `yaml:"model"`
	CategoryID string `yaml:"category"`
	ParentID   string `yaml:"parent,omitempty"`
	ClassName  string `yaml:"class,omitempty"`
}

// ClassBaseRow declares that Class derives directly from Base.
type ClassBaseRow struct {
	Class string `yaml:"class"`
	Base  string `yaml:"base"`
}

// LoadFixtureFile reads a YAML fixture from disk.
func LoadFixtureFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Inserts returns the INSERT statements that populate the schema with the
// fixture, using '?' placeholders.
func (f *Fixture) Inserts() []Exec {
	out := make([]Exec, 0, len(f.Subjects)+len(f.Models)+len(f.Elements)+len(f.ClassBases))
	for _, s := range f.Subjects {
		out = append(out, Exec{
			SQL:  "INSERT INTO subjects (id, parent_id, hide_in_hierarchy, target_partition_id) VALUES (?, ?, ?, ?)",
			Args: []any{s.ID, nullable(s.ParentID), boolInt(s.HideInHierarchy), nullable(s.TargetPartition)},
		})
	}
	for _, m := range f.Models {
		class := m.ClassName
		if class == "" {
			class = "BisCore.PhysicalModel"
		}
		out = append(out, Exec{
			SQL:  "INSERT INTO models (id, parent_subject_id, is_private, class_name) VALUES (?, ?, ?, ?)",
			Args: []any{m.ID, m.ParentSubject, boolInt(m.Private), class},
		})
	}
	for _, e := range f.Elements {
		class := e.ClassName
		if class == "" {
			class = "Generic.PhysicalObject"
		}
		out = append(out, Exec{
			SQL:  "INSERT INTO elements (id, model_id, category_id, parent_id, class_name) VALUES (?, ?, ?, ?, ?)",
			Args: []any{e.ID, e.ModelID, e.CategoryID, nullable(e.ParentID), class},
		})
	}
	for _, b := range f.ClassBases {
		out = append(out, Exec{
			SQL:  "INSERT INTO class_bases (class_name, base_name) VALUES (?, ?)",
			Args: []any{b.Class, b.Base},
		})
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
