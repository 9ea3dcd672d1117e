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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/scenevis/services/visibility/coordinator"
	"github.com/AleutianAI/scenevis/services/visibility/engine"
	"github.com/AleutianAI/scenevis/services/visibility/overrides"
	"github.com/AleutianAI/scenevis/services/visibility/scene"
)

const (
	eventBuffer = 32
	writeWait   = 5 * time.Second
)

// Handlers serves the visibility HTTP API.
type Handlers struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handlers) logger(c *gin.Context, handler string) *slog.Logger {
	return slog.With(slog.String("request_id", requestID(c)), slog.String("handler", handler))
}

// HandleHealth handles GET /v1/visibility/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   ServiceVersion,
		Viewports: h.svc.SessionCount(),
		Builds:    h.svc.Index().Stats().Builds,
	})
}

// HandleCreateViewport handles POST /v1/visibility/viewports.
//
// Response:
//
//	201 Created: ViewportResponse
//	400 Bad Request: malformed body
//	409 Conflict: service shutting down
func (h *Handlers) HandleCreateViewport(c *gin.Context) {
	logger := h.logger(c, "HandleCreateViewport")

	var req CreateViewportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
			return
		}
	}

	sess, err := h.svc.CreateSession(req)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, ViewportResponse{
		ID:        sess.ID,
		Spatial:   sess.Viewport.IsSpatial(),
		CreatedAt: sess.CreatedAt,
	})
}

// HandleDeleteViewport handles DELETE /v1/visibility/viewports/:id.
func (h *Handlers) HandleDeleteViewport(c *gin.Context) {
	logger := h.logger(c, "HandleDeleteViewport")
	if err := h.svc.CloseSession(c.Param("id")); err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleStatus handles POST /v1/visibility/viewports/:id/status.
//
// Description:
//
//	Answers the tri-state visibility of every node in the body, in order.
//
// Response:
//
//	200 OK: StatusResponse
//	400 Bad Request: malformed body or node
//	404 Not Found: unknown viewport
//	422 Unprocessable Entity: filter matched too many elements
func (h *Handlers) HandleStatus(c *gin.Context) {
	logger := h.logger(c, "HandleStatus")

	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	resp := StatusResponse{Statuses: make([]NodeStatus, 0, len(req.Nodes))}
	for _, nr := range req.Nodes {
		node, err := nr.NodeRef()
		if err != nil {
			h.writeError(c, logger, err)
			return
		}
		st, err := h.svc.Status(c.Request.Context(), sess, node)
		if err != nil {
			h.writeError(c, logger, err)
			return
		}
		resp.Statuses = append(resp.Statuses, NodeStatus{Node: node.String(), Status: st})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleChange handles POST /v1/visibility/viewports/:id/change.
//
// Response:
//
//	200 OK: ChangeResponse with the node's status after the change
//	400 Bad Request: malformed body or node
//	404 Not Found: unknown viewport
//	422 Unprocessable Entity: filter matched too many elements
func (h *Handlers) HandleChange(c *gin.Context) {
	logger := h.logger(c, "HandleChange")

	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	var req ChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	node, err := req.Node.NodeRef()
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.svc.Change(ctx, sess, node, *req.On); err != nil {
		h.writeError(c, logger, err)
		return
	}
	st, err := h.svc.Status(ctx, sess, node)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	logger.Info("Visibility changed",
		slog.String("viewport_id", sess.ID),
		slog.String("node", node.String()),
		slog.Bool("on", *req.On),
		slog.String("state", st.State.String()))
	c.JSON(http.StatusOK, ChangeResponse{Node: node.String(), Status: st})
}

// HandleEvents handles GET /v1/visibility/viewports/:id/events.
//
// Description:
//
//	Upgrades to a websocket and streams one EventMessage per coalesced
//	visibility change until the client disconnects or the viewport is
//	closed. The first frame has type "subscribed". Slow clients lose
//	events rather than blocking the coordinator.
func (h *Handlers) HandleEvents(c *gin.Context) {
	logger := h.logger(c, "HandleEvents")

	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	changes := make(chan coordinator.Change, eventBuffer)
	dispose := sess.Coordinator.OnVisibilityChanged(func(ch coordinator.Change) {
		select {
		case changes <- ch:
		default:
			logger.Warn("dropping visibility event", slog.Uint64("sequence", ch.Sequence))
		}
	})
	defer dispose()

	if err := ws.WriteJSON(EventMessage{Type: "subscribed"}); err != nil {
		return
	}

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ch := <-changes:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(EventMessage{Type: "visibility_changed", Change: &ch}); err != nil {
				logger.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-sess.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "viewport closed")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-disconnected:
			return
		}
	}
}

// HandleSubjects handles GET /v1/visibility/hierarchy/subjects?parent=ID.
// Without parent the root subject's children are listed.
func (h *Handlers) HandleSubjects(c *gin.Context) {
	logger := h.logger(c, "HandleSubjects")
	resp, err := h.svc.ChildSubjects(c.Request.Context(), c.Query("parent"))
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleModelCategories handles GET /v1/visibility/hierarchy/models/:id/categories.
func (h *Handlers) HandleModelCategories(c *gin.Context) {
	logger := h.logger(c, "HandleModelCategories")
	ctx := c.Request.Context()
	id := c.Param("id")

	cats, err := h.svc.Index().GetModelCategories(ctx, id)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	count, err := h.svc.Index().GetModelElementCount(ctx, id)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	c.JSON(http.StatusOK, CategoriesResponse{ModelID: id, Categories: cats, ElementCount: count})
}

// HandleCategoryModels handles GET /v1/visibility/hierarchy/categories/:id/models.
func (h *Handlers) HandleCategoryModels(c *gin.Context) {
	logger := h.logger(c, "HandleCategoryModels")
	id := c.Param("id")
	models, err := h.svc.Index().GetCategoryModels(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, logger, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	c.JSON(http.StatusOK, ModelsResponse{CategoryID: id, Models: models})
}

// writeError maps service and engine errors onto HTTP status codes.
func (h *Handlers) writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Warn("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, scene.ErrInvalidNode):
		return http.StatusBadRequest, "INVALID_NODE"
	case errors.Is(err, engine.ErrContractViolation):
		return http.StatusBadRequest, "CONTRACT_VIOLATION"
	case errors.Is(err, ErrViewportNotFound):
		return http.StatusNotFound, "VIEWPORT_NOT_FOUND"
	case errors.Is(err, ErrServiceClosed), errors.Is(err, overrides.ErrClosed):
		return http.StatusConflict, "CLOSED"
	case errors.Is(err, engine.ErrTooManyFilterMatches):
		return http.StatusUnprocessableEntity, "TOO_MANY_FILTER_MATCHES"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
