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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scenevis/services/visibility/engine"
	"github.com/AleutianAI/scenevis/services/visibility/query/querytest"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.OverrideDebounce = time.Millisecond
	cfg.EventDebounce = time.Millisecond
	return cfg
}

func setupTestRouter(t *testing.T) (*Service, *gin.Engine) {
	t.Helper()
	src := querytest.Open(t, querytest.SampleScene())
	svc := NewService(src, testConfig())
	t.Cleanup(svc.Close)
	return svc, NewRouter(NewHandlers(svc), RouterConfig{})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createViewport(t *testing.T, router http.Handler, req CreateViewportRequest) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp ViewportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func statusOf(t *testing.T, router http.Handler, id string, nodes ...NodeRequest) []scene.State {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/status", StatusRequest{Nodes: nodes})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	states := make([]scene.State, len(resp.Statuses))
	for i, s := range resp.Statuses {
		states[i] = s.Status.State
	}
	return states
}

func boolPtr(b bool) *bool { return &b }

func TestHandlers_HandleHealth(t *testing.T) {
	_, router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/visibility/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHandlers_RequestIDEchoed(t *testing.T) {
	_, router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/visibility/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestHandlers_ViewportLifecycle(t *testing.T) {
	svc, router := setupTestRouter(t)

	id := createViewport(t, router, CreateViewportRequest{})
	assert.Equal(t, 1, svc.SessionCount())

	w := doJSON(t, router, http.MethodDelete, "/v1/visibility/viewports/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/visibility/viewports/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, svc.SessionCount())
}

func TestHandlers_CreateViewportNonSpatial(t *testing.T) {
	_, router := setupTestRouter(t)
	id := createViewport(t, router, CreateViewportRequest{Spatial: boolPtr(false), Models: []string{"m1"}})

	got := statusOf(t, router, id, NodeRequest{Kind: "model", ModelID: "m1"})
	assert.Equal(t, []scene.State{scene.Hidden}, got)
}

func TestHandlers_HandleStatus_Errors(t *testing.T) {
	_, router := setupTestRouter(t)
	id := createViewport(t, router, CreateViewportRequest{})

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown viewport", "/v1/visibility/viewports/nope/status",
			StatusRequest{Nodes: []NodeRequest{{Kind: "model", ModelID: "m1"}}}, http.StatusNotFound},
		{"empty nodes", "/v1/visibility/viewports/" + id + "/status",
			StatusRequest{}, http.StatusBadRequest},
		{"unknown kind", "/v1/visibility/viewports/" + id + "/status",
			map[string]any{"nodes": []map[string]string{{"kind": "layer"}}}, http.StatusBadRequest},
		{"model without id", "/v1/visibility/viewports/" + id + "/status",
			StatusRequest{Nodes: []NodeRequest{{Kind: "model"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandlers_ChangeModel(t *testing.T) {
	_, router := setupTestRouter(t)
	id := createViewport(t, router, CreateViewportRequest{
		Models:     []string{"m1"},
		Categories: []string{"c1", "c2"},
	})
	model := NodeRequest{Kind: "model", ModelID: "m1"}

	assert.Equal(t, []scene.State{scene.Visible}, statusOf(t, router, id, model))

	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/change",
		ChangeRequest{Node: model, On: boolPtr(false)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChangeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, scene.Hidden, resp.Status.State)
	assert.Equal(t, "model(m1)", resp.Node)
}

func TestHandlers_ChangeRequiresOn(t *testing.T) {
	_, router := setupTestRouter(t)
	id := createViewport(t, router, CreateViewportRequest{})

	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/change",
		map[string]any{"node": map[string]string{"kind": "model", "model_id": "m1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_CategoryWithoutModelFansOut(t *testing.T) {
	_, router := setupTestRouter(t)
	id := createViewport(t, router, CreateViewportRequest{
		Models:     []string{"m1", "m2"},
		Categories: []string{"c1"},
	})
	c1 := NodeRequest{Kind: "category", CategoryID: "c1"}
	c3 := NodeRequest{Kind: "category", CategoryID: "c3"}

	assert.Equal(t, []scene.State{scene.Visible, scene.Hidden}, statusOf(t, router, id, c1, c3))

	// Hide c1 in m2 only; the fanned-out category becomes partial.
	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/change",
		ChangeRequest{Node: NodeRequest{Kind: "category", ModelID: "m2", CategoryID: "c1"}, On: boolPtr(false)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []scene.State{scene.Partial}, statusOf(t, router, id, c1))

	w = doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/change",
		ChangeRequest{Node: c1, On: boolPtr(false)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []scene.State{scene.Hidden}, statusOf(t, router, id, c1))
}

func TestHandlers_Hierarchy(t *testing.T) {
	_, router := setupTestRouter(t)

	t.Run("root children", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/visibility/hierarchy/subjects", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp SubjectsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "s0", resp.Parent)
		require.Len(t, resp.Subjects, 2)
		assert.Equal(t, "s1", resp.Subjects[0].ID)
		assert.Equal(t, []string{"m1"}, resp.Subjects[0].Models)
		assert.Equal(t, "s3", resp.Subjects[1].ID)
		assert.False(t, resp.Subjects[1].HasChildren)
	})

	t.Run("model categories", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/visibility/hierarchy/models/m1/categories", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp CategoriesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"c1", "c2"}, resp.Categories)
		assert.Equal(t, 4, resp.ElementCount)
	})

	t.Run("category models", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/visibility/hierarchy/categories/c1/models", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp ModelsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"m1", "m2"}, resp.Models)
	})

	t.Run("unknown category", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/v1/visibility/hierarchy/categories/zz/models", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"category_id":"zz","models":[]}`, w.Body.String())
	})
}

func TestHandlers_HandleEvents(t *testing.T) {
	_, router := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	id := createViewport(t, router, CreateViewportRequest{Categories: []string{"c1"}})

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/visibility/viewports/" + id + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg EventMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "subscribed", msg.Type)

	w := doJSON(t, router, http.MethodPost, "/v1/visibility/viewports/"+id+"/change",
		ChangeRequest{Node: NodeRequest{Kind: "model", ModelID: "m1"}, On: boolPtr(true)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "visibility_changed", msg.Type)
	require.NotNil(t, msg.Change)
	assert.Contains(t, msg.Change.Kinds, "model_display")

	// Closing the viewport ends the stream.
	w = doJSON(t, router, http.MethodDelete, "/v1/visibility/viewports/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	for {
		if _, _, err = ws.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHandlers_EventsUnknownViewport(t *testing.T) {
	_, router := setupTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/v1/visibility/viewports/nope/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	src := querytest.Open(t, querytest.SampleScene())
	svc := NewService(src, testConfig())
	defer svc.Close()
	router := NewRouter(NewHandlers(svc), RouterConfig{RateLimit: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/v1/visibility/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, router, http.MethodGet, "/v1/visibility/health", nil).Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidRequest, http.StatusBadRequest},
		{engine.ErrContractViolation, http.StatusBadRequest},
		{ErrViewportNotFound, http.StatusNotFound},
		{ErrServiceClosed, http.StatusConflict},
		{engine.ErrTooManyFilterMatches, http.StatusUnprocessableEntity},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := errorStatus(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
