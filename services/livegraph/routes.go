// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package livegraph

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all livegraph routes with the router.
//
// Description:
//
//	Registers the viewer page, the push channel, the graph API and the
//	operational endpoints. Middleware must already be applied.
//
// Viewer Endpoints:
//
//	GET  / - Viewer page
//	GET  /ws - Websocket push channel ("graph-data" events)
//
// Graph Endpoints:
//
//	GET  /v1/graph - Current snapshot
//	GET  /v1/graph/stats - Node, edge and orphan counts
//	POST /v1/graph/rebuild - Queue a rebuild
//
// Operational Endpoints:
//
//	GET  /health - Liveness
//	GET  /ready - Readiness (a snapshot exists)
//	GET  /metrics - Prometheus scrape
func RegisterRoutes(r gin.IRouter, handlers *Handlers) {
	r.GET("/", handlers.HandleViewer)
	r.GET("/ws", handlers.HandleWebSocket)

	v1 := r.Group("/v1")
	{
		v1.GET("/graph", handlers.HandleGetGraph)
		v1.GET("/graph/stats", handlers.HandleGetStats)
		v1.POST("/graph/rebuild", handlers.HandleRebuild)
	}

	r.GET("/health", handlers.HandleHealth)
	r.GET("/ready", handlers.HandleReady)
	r.GET("/metrics", handlers.HandleMetrics)
}
