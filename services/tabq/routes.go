// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tabq

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all tabq routes with the router.
//
// Description:
//
//	Registers the /v1/tabq/* endpoints on rg. The group should already
//	carry any middleware (recovery, otelgin).
//
// Endpoints:
//
//	POST /v1/tabq/query    - Resolve a question against a dataset
//	POST /v1/tabq/describe - Schema descriptor of a dataset
//	GET  /v1/tabq/health   - Health check
//
// Example:
//
//	v1 := router.Group("/v1")
//	tabq.RegisterRoutes(v1, tabq.NewHandlers(pipeline, nil))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	tq := rg.Group("/tabq")
	{
		tq.POST("/query", handlers.HandleQuery)
		tq.POST("/describe", handlers.HandleDescribe)
		tq.GET("/health", handlers.HandleHealth)
	}
}

// RegisterMetrics exposes the Prometheus registry at GET /metrics.
func RegisterMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
