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
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/session"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
	"github.com/gin-gonic/gin"
)

//go:embed web/index.html
var viewerHTML []byte

// Handlers serves the livegraph HTTP endpoints.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleViewer handles GET /.
func (h *Handlers) HandleViewer(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", viewerHTML)
}

// HandleWebSocket handles GET /ws.
//
// Description:
//
//	Upgrades to a websocket and streams "graph-data" events until the viewer
//	leaves. The first event is the cached snapshot, built on demand.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	err := h.svc.hub.Serve(c.Writer, c.Request, h.svc.initialSnapshot)
	if err != nil && !errors.Is(err, session.ErrHubClosed) {
		telemetry.LoggerWithTrace(c.Request.Context(), h.svc.logger).
			Debug("viewer session not established", slog.String("error", err.Error()))
	}
}

// HandleGetGraph handles GET /v1/graph.
//
// Description:
//
//	Returns the cached snapshot in the viewer wire format, building one if
//	the cache is empty. The snapshot version is sent as X-Graph-Version.
//
// Response:
//
//	200 OK: {"nodes": [...], "edges": [...]}
//	503 Service Unavailable: ErrorResponse when the build was interrupted
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "graph unavailable",
			Code:    CodeRebuildFailed,
			Details: err.Error(),
		})
		return
	}
	c.Header("X-Graph-Version", strconv.FormatUint(snap.Version, 10))
	c.JSON(http.StatusOK, snap)
}

// HandleGetStats handles GET /v1/graph/stats.
//
// Never triggers a build; before the first build counts are zero.
func (h *Handlers) HandleGetStats(c *gin.Context) {
	resp := StatsResponse{
		Root:     h.svc.cfg.Root,
		Cache:    h.svc.store.Stats(),
		Rebuild:  h.svc.rebuilder.Stats(),
		Sessions: h.svc.hub.Count(),
	}
	snap, ok := h.svc.store.Read()
	resp.Graph = graph.ComputeStats(snap)
	if ok {
		resp.GraphVersion = snap.Version
		builtAt := snap.BuiltAt
		resp.BuiltAt = &builtAt
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRebuild handles POST /v1/graph/rebuild.
//
// Description:
//
//	Queues a rebuild; requests arriving while one is already queued are
//	folded into it. Throttled by the configured rate limit.
//
// Response:
//
//	202 Accepted: RebuildResponse
//	429 Too Many Requests: ErrorResponse
func (h *Handlers) HandleRebuild(c *gin.Context) {
	if h.svc.limiter != nil && !h.svc.limiter.Allow() {
		recordThrottled(c.Request.Context())
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "rebuild rate limit exceeded",
			Code:  CodeRateLimited,
		})
		return
	}

	h.svc.rebuilder.Trigger()
	c.JSON(http.StatusAccepted, RebuildResponse{
		Status:       "queued",
		GraphVersion: h.svc.store.Version(),
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true) once a snapshot exists
//	503 Service Unavailable: ReadyResponse (Ready=false) before the first build
func (h *Handlers) HandleReady(c *gin.Context) {
	version := h.svc.store.Version()
	resp := ReadyResponse{
		Ready:        version > 0,
		GraphVersion: version,
		Sessions:     h.svc.hub.Count(),
		Rebuilding:   h.svc.rebuilder.Stats().InProgress,
	}
	if !resp.Ready {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleMetrics handles GET /metrics when the Prometheus exporter is active.
func (h *Handlers) HandleMetrics(c *gin.Context) {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "metrics exporter is not prometheus",
			Code:  CodeNoMetrics,
		})
		return
	}
	handler.ServeHTTP(c.Writer, c.Request)
}
