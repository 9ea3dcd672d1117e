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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/scenevis/services/visibility/telemetry"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	ServiceName string

	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// RegisterRoutes registers the /visibility endpoints on rg.
//
// Endpoints:
//
//	GET    /visibility/health
//	POST   /visibility/viewports
//	DELETE /visibility/viewports/:id
//	POST   /visibility/viewports/:id/status
//	POST   /visibility/viewports/:id/change
//	GET    /visibility/viewports/:id/events   (websocket)
//	GET    /visibility/hierarchy/subjects
//	GET    /visibility/hierarchy/models/:id/categories
//	GET    /visibility/hierarchy/categories/:id/models
//
// Example:
//
//	v1 := router.Group("/v1")
//	visibility.RegisterRoutes(v1, visibility.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	vis := rg.Group("/visibility")
	{
		vis.GET("/health", handlers.HandleHealth)

		viewports := vis.Group("/viewports")
		{
			viewports.POST("", handlers.HandleCreateViewport)
			viewports.DELETE("/:id", handlers.HandleDeleteViewport)
			viewports.POST("/:id/status", handlers.HandleStatus)
			viewports.POST("/:id/change", handlers.HandleChange)
			viewports.GET("/:id/events", handlers.HandleEvents)
		}

		hier := vis.Group("/hierarchy")
		{
			hier.GET("/subjects", handlers.HandleSubjects)
			hier.GET("/models/:id/categories", handlers.HandleModelCategories)
			hier.GET("/categories/:id/models", handlers.HandleCategoryModels)
		}
	}
}

// NewRouter builds the gin engine with recovery, tracing, request ids,
// metrics and rate limiting, the /v1 routes and /metrics when the Prometheus
// exporter is active.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	name := cfg.ServiceName
	if name == "" {
		name = "scenevis"
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(name))
	router.Use(RequestID())
	router.Use(Metrics())

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	v1.Use(RateLimit(limiter))
	RegisterRoutes(v1, handlers)
	return router
}
