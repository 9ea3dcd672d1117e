// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scene

import (
	"fmt"
	"strings"
)

// StructuralClass is the hierarchy level a class maps to.
type StructuralClass int

const (
	// ClassElement is the fallback for any class that is not a subject,
	// model or category class.
	ClassElement StructuralClass = iota
	ClassSubject
	ClassModel
	ClassCategory
)

// String returns the string representation of the structural class.
func (c StructuralClass) String() string {
	switch c {
	case ClassSubject:
		return "subject"
	case ClassModel:
		return "model"
	case ClassCategory:
		return "category"
	default:
		return "element"
	}
}

// ClassSpec is a parsed "Schema.Class" (or "Schema:Class") name.
type ClassSpec struct {
	Schema string
	Class  string
}

// FullName returns the canonical "Schema.Class" form.
func (c ClassSpec) FullName() string {
	return c.Schema + "." + c.Class
}

// Matches compares a class name against the spec case-insensitively,
// accepting either separator.
func (c ClassSpec) Matches(className string) bool {
	other, err := ParseClassSpec(className)
	if err != nil {
		return false
	}
	return strings.EqualFold(c.Schema, other.Schema) && strings.EqualFold(c.Class, other.Class)
}

// ParseClassSpec parses a full class name. Both parts must be non-empty
// identifiers; anything else is a configuration error.
func ParseClassSpec(s string) (ClassSpec, error) {
	sep := strings.IndexAny(s, ".:")
	if sep <= 0 || sep == len(s)-1 {
		return ClassSpec{}, fmt.Errorf("%w: %q", ErrInvalidClassSpec, s)
	}
	spec := ClassSpec{Schema: s[:sep], Class: s[sep+1:]}
	if !isIdentifier(spec.Schema) || !isIdentifier(spec.Class) {
		return ClassSpec{}, fmt.Errorf("%w: %q", ErrInvalidClassSpec, s)
	}
	return spec, nil
}

// ParseClassSpecs parses every entry, failing on the first malformed one.
func ParseClassSpecs(names []string) ([]ClassSpec, error) {
	out := make([]ClassSpec, 0, len(names))
	for _, n := range names {
		spec, err := ParseClassSpec(n)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
