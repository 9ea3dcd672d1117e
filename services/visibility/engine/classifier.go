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
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/scenevis/services/visibility/query"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// maxClassDepth bounds the base-class walk.
const maxClassDepth = 32

// ClassSpecs lists the classes recognised as subjects, models and
// categories. Any other class, including unknown ones, is an element.
type ClassSpecs struct {
	Subject  []scene.ClassSpec
	Model    []scene.ClassSpec
	Category []scene.ClassSpec
}

// DefaultClassSpecs returns the base classes of the standard scene schema.
func DefaultClassSpecs() ClassSpecs {
	return ClassSpecs{
		Subject:  []scene.ClassSpec{{Schema: "BisCore", Class: "Subject"}},
		Model:    []scene.ClassSpec{{Schema: "BisCore", Class: "Model"}, {Schema: "BisCore", Class: "GeometricModel3d"}, {Schema: "BisCore", Class: "PhysicalModel"}},
		Category: []scene.ClassSpec{{Schema: "BisCore", Class: "Category"}, {Schema: "BisCore", Class: "SpatialCategory"}},
	}
}

// ParseClassSpecs parses class spec strings ("Schema.Class" or
// "Schema:Class") for each structural class. Empty lists keep the defaults.
func ParseClassSpecs(subject, model, category []string) (ClassSpecs, error) {
	specs := DefaultClassSpecs()
	for _, item := range []struct {
		names []string
		dst   *[]scene.ClassSpec
	}{
		{subject, &specs.Subject},
		{model, &specs.Model},
		{category, &specs.Category},
	} {
		if len(item.names) == 0 {
			continue
		}
		parsed, err := scene.ParseClassSpecs(item.names)
		if err != nil {
			return ClassSpecs{}, err
		}
		*item.dst = parsed
	}
	return specs, nil
}

func (s ClassSpecs) match(className string) (scene.StructuralClass, bool) {
	for _, spec := range s.Subject {
		if spec.Matches(className) {
			return scene.ClassSubject, true
		}
	}
	for _, spec := range s.Model {
		if spec.Matches(className) {
			return scene.ClassModel, true
		}
	}
	for _, spec := range s.Category {
		if spec.Matches(className) {
			return scene.ClassCategory, true
		}
	}
	return scene.ClassElement, false
}

// Classifier maps class names to structural classes, following derived
// classes through the source's class_bases table. Results are cached.
//
// Thread Safety: Classifier is safe for concurrent use.
type Classifier struct {
	src      query.Source
	specs    ClassSpecs
	rowLimit int

	mu     sync.RWMutex
	cache  map[string]scene.StructuralClass
	flight singleflight.Group
}

// NewClassifier creates a classifier. rowLimit bounds every base-class
// query; zero means unbounded.
func NewClassifier(src query.Source, specs ClassSpecs, rowLimit int) *Classifier {
	return &Classifier{
		src:      src,
		specs:    specs,
		rowLimit: rowLimit,
		cache:    make(map[string]scene.StructuralClass),
	}
}

// Classify returns the structural class of className.
//
// Description:
//
//	The class itself is matched first, then its bases breadth-first. A
//	name that is not a valid class spec is an element. Base-class queries
//	honour the row ceiling and fail with query.ErrRowLimitExceeded.
func (c *Classifier) Classify(ctx context.Context, className string) (scene.StructuralClass, error) {
	spec, err := scene.ParseClassSpec(className)
	if err != nil {
		return scene.ClassElement, nil
	}
	key := strings.ToLower(spec.FullName())

	c.mu.RLock()
	class, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return class, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		class, err := c.resolve(ctx, spec.FullName())
		if err != nil {
			return scene.ClassElement, err
		}
		c.mu.Lock()
		c.cache[key] = class
		c.mu.Unlock()
		return class, nil
	})
	if err != nil {
		return scene.ClassElement, err
	}
	return v.(scene.StructuralClass), nil
}

func (c *Classifier) resolve(ctx context.Context, className string) (scene.StructuralClass, error) {
	visited := map[string]bool{strings.ToLower(className): true}
	frontier := []string{className}
	for depth := 0; depth < maxClassDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, name := range frontier {
			if class, ok := c.specs.match(name); ok {
				return class, nil
			}
			if c.src == nil {
				continue
			}
			var opts []query.Option
			if c.rowLimit > 0 {
				opts = append(opts, query.WithRowLimit(c.rowLimit))
			}
			err := query.Each(ctx, c.src, query.StmtClassBases, []any{name}, func(r query.Rows) error {
				var base string
				if err := r.Scan(&base); err != nil {
					return err
				}
				if k := strings.ToLower(base); !visited[k] {
					visited[k] = true
					next = append(next, base)
				}
				return nil
			}, opts...)
			if err != nil {
				return scene.ClassElement, fmt.Errorf("resolve bases of %s: %w", name, err)
			}
		}
		frontier = next
	}
	return scene.ClassElement, nil
}
