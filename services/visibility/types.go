// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visibility

import (
	"fmt"
	"time"

	"github.com/AleutianAI/scenevis/services/visibility/coordinator"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// NodeRequest is the wire form of scene.NodeRef.
//
// Kind is one of subject, model, category, element or group. A category
// without model_id addresses the category across every model containing it.
type NodeRequest struct {
	Kind        string        `json:"kind" binding:"required,oneof=subject model category element group"`
	SubjectIDs  []string      `json:"subject_ids,omitempty"`
	ModelID     string        `json:"model_id,omitempty"`
	CategoryID  string        `json:"category_id,omitempty"`
	ElementID   string        `json:"element_id,omitempty"`
	ElementIDs  []string      `json:"element_ids,omitempty"`
	HasChildren bool          `json:"has_children,omitempty"`
	Filter      *scene.Filter `json:"filter,omitempty"`
}

// NodeRef converts the request. Field presence is checked by the engine.
func (r NodeRequest) NodeRef() (scene.NodeRef, error) {
	kind, err := scene.ParseNodeKind(r.Kind)
	if err != nil {
		return scene.NodeRef{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return scene.NodeRef{
		Kind:        kind,
		SubjectIDs:  r.SubjectIDs,
		ModelID:     r.ModelID,
		CategoryID:  r.CategoryID,
		ElementID:   r.ElementID,
		ElementIDs:  r.ElementIDs,
		HasChildren: r.HasChildren,
		Filter:      r.Filter,
	}, nil
}

// CreateViewportRequest is the body for POST /v1/visibility/viewports.
type CreateViewportRequest struct {
	// Spatial defaults to true.
	Spatial    *bool    `json:"spatial,omitempty"`
	Models     []string `json:"models,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// ViewportResponse describes a viewport session.
type ViewportResponse struct {
	ID        string    `json:"id"`
	Spatial   bool      `json:"spatial"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusRequest is the body for POST /v1/visibility/viewports/:id/status.
type StatusRequest struct {
	Nodes []NodeRequest `json:"nodes" binding:"required,min=1,max=1000,dive"`
}

// NodeStatus pairs a node with its status.
type NodeStatus struct {
	Node   string       `json:"node"`
	Status scene.Status `json:"status"`
}

// StatusResponse lists statuses in request order.
type StatusResponse struct {
	Statuses []NodeStatus `json:"statuses"`
}

// ChangeRequest is the body for POST /v1/visibility/viewports/:id/change.
type ChangeRequest struct {
	Node NodeRequest `json:"node"`
	On   *bool       `json:"on" binding:"required"`
}

// ChangeResponse returns the node status after the change.
type ChangeResponse struct {
	Node   string       `json:"node"`
	Status scene.Status `json:"status"`
}

// EventMessage is one websocket frame on the events stream.
type EventMessage struct {
	Type   string              `json:"type"`
	Change *coordinator.Change `json:"change,omitempty"`
}

// SubjectEntry is one visible child subject.
type SubjectEntry struct {
	ID          string   `json:"id"`
	HasChildren bool     `json:"has_children"`
	Models      []string `json:"models,omitempty"`
}

// SubjectsResponse is returned by GET /v1/visibility/hierarchy/subjects.
// Models are displayed directly under Parent, including those of hidden
// subjects beneath it.
type SubjectsResponse struct {
	Parent   string         `json:"parent"`
	Models   []string       `json:"models,omitempty"`
	Subjects []SubjectEntry `json:"subjects"`
}

// CategoriesResponse lists a model's categories.
type CategoriesResponse struct {
	ModelID      string   `json:"model_id"`
	Categories   []string `json:"categories"`
	ElementCount int      `json:"element_count"`
}

// ModelsResponse lists models containing a category.
type ModelsResponse struct {
	CategoryID string   `json:"category_id"`
	Models     []string `json:"models"`
}

// HealthResponse is returned by GET /v1/visibility/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Viewports int    `json:"viewports"`
	Builds    int64  `json:"hierarchy_builds"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
