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

// NodeKind discriminates the NodeRef union.
type NodeKind int

const (
	KindSubject NodeKind = iota
	KindModel
	KindCategory
	KindElement
	KindElementGroup
)

// String returns the string representation of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindSubject:
		return "subject"
	case KindModel:
		return "model"
	case KindCategory:
		return "category"
	case KindElement:
		return "element"
	case KindElementGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, error) {
	switch strings.ToLower(s) {
	case "subject":
		return KindSubject, nil
	case "model":
		return KindModel, nil
	case "category":
		return KindCategory, nil
	case "element":
		return KindElement, nil
	case "group", "element-group":
		return KindElementGroup, nil
	default:
		return 0, fmt.Errorf("%w: unknown node kind %q", ErrInvalidNode, s)
	}
}

// InstanceKey identifies one node on a hierarchy path by class and id.
type InstanceKey struct {
	ClassName string `json:"class"`
	ID        string `json:"id"`
}

// Path is a root-to-leaf sequence of instance keys.
type Path []InstanceKey

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Filter restricts a node's subtree to explicit filter-target paths.
type Filter struct {
	// Paths are identifier paths from this node's children down to filter
	// targets.
	Paths []Path `json:"paths"`

	// Ancestors is the node's own ancestor chain, root first, ending with
	// the node itself.
	Ancestors Path `json:"ancestors,omitempty"`
}

// NodeRef addresses a node of the scene hierarchy. Which fields are
// meaningful depends on Kind:
//
//	Subject:      SubjectIDs
//	Model:        ModelID
//	Category:     ModelID, CategoryID
//	Element:      ModelID, CategoryID, ElementID, HasChildren
//	ElementGroup: ModelID, CategoryID, ElementIDs
//
// A non-nil Filter turns the node into a filtered node.
type NodeRef struct {
	Kind        NodeKind
	SubjectIDs  []string
	ModelID     string
	CategoryID  string
	ElementID   string
	ElementIDs  []string
	HasChildren bool
	Filter      *Filter
}

// SubjectNode addresses one or more subjects shown as a single tree node.
func SubjectNode(ids ...string) NodeRef {
	return NodeRef{Kind: KindSubject, SubjectIDs: ids}
}

// ModelNode addresses a model.
func ModelNode(modelID string) NodeRef {
	return NodeRef{Kind: KindModel, ModelID: modelID}
}

// CategoryNode addresses a category within a model.
func CategoryNode(modelID, categoryID string) NodeRef {
	return NodeRef{Kind: KindCategory, ModelID: modelID, CategoryID: categoryID}
}

// ElementNode addresses a single element.
func ElementNode(modelID, categoryID, elementID string) NodeRef {
	return NodeRef{Kind: KindElement, ModelID: modelID, CategoryID: categoryID, ElementID: elementID}
}

// GroupNode addresses a class-grouping node over element ids.
func GroupNode(modelID, categoryID string, elementIDs ...string) NodeRef {
	return NodeRef{Kind: KindElementGroup, ModelID: modelID, CategoryID: categoryID, ElementIDs: elementIDs}
}

// WithChildren marks an element node as having child elements.
func (n NodeRef) WithChildren() NodeRef {
	n.HasChildren = true
	return n
}

// WithFilter attaches filter-target paths to the node.
func (n NodeRef) WithFilter(f Filter) NodeRef {
	n.Filter = &f
	return n
}

// IsFiltered reports whether the node is restricted to filter targets.
func (n NodeRef) IsFiltered() bool {
	return n.Filter != nil
}

// Validate checks that the fields required by Kind are present.
func (n NodeRef) Validate() error {
	switch n.Kind {
	case KindSubject:
		if len(n.SubjectIDs) == 0 {
			return fmt.Errorf("%w: subject node without ids", ErrInvalidNode)
		}
	case KindModel:
		if n.ModelID == "" {
			return fmt.Errorf("%w: model node without id", ErrInvalidNode)
		}
	case KindCategory:
		if n.ModelID == "" || n.CategoryID == "" {
			return fmt.Errorf("%w: category node needs model and category ids", ErrInvalidNode)
		}
	case KindElement:
		if n.ModelID == "" || n.CategoryID == "" || n.ElementID == "" {
			return fmt.Errorf("%w: element node needs model, category and element ids", ErrInvalidNode)
		}
	case KindElementGroup:
		if n.ModelID == "" || n.CategoryID == "" || len(n.ElementIDs) == 0 {
			return fmt.Errorf("%w: group node needs model, category and element ids", ErrInvalidNode)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidNode, n.Kind)
	}
	return nil
}

// String returns a compact description for logs.
func (n NodeRef) String() string {
	switch n.Kind {
	case KindSubject:
		return "subject(" + strings.Join(n.SubjectIDs, ",") + ")"
	case KindModel:
		return "model(" + n.ModelID + ")"
	case KindCategory:
		return "category(" + n.ModelID + "/" + n.CategoryID + ")"
	case KindElement:
		return "element(" + n.ModelID + "/" + n.CategoryID + "/" + n.ElementID + ")"
	case KindElementGroup:
		return fmt.Sprintf("group(%s/%s, %d elements)", n.ModelID, n.CategoryID, len(n.ElementIDs))
	default:
		return "unknown"
	}
}
