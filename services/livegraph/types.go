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
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/rebuild"
	"github.com/AleutianAI/livegraph/services/livegraph/snapshot"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	// Status is "healthy" if the service is running.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /ready.
type ReadyResponse struct {
	// Ready is true once a snapshot has been built.
	Ready bool `json:"ready"`

	// GraphVersion is the cached snapshot version, 0 before the first build.
	GraphVersion uint64 `json:"graph_version"`

	// Sessions is the number of connected viewers.
	Sessions int `json:"sessions"`

	// Rebuilding is true while a rebuild cycle runs.
	Rebuilding bool `json:"rebuilding"`
}

// StatsResponse is the response for GET /v1/graph/stats.
type StatsResponse struct {
	// Root is the analyzed project directory.
	Root string `json:"root"`

	// Graph counts nodes, edges and orphans of the cached snapshot.
	Graph graph.Stats `json:"graph"`

	// GraphVersion is the cached snapshot version.
	GraphVersion uint64 `json:"graph_version"`

	// BuiltAt is when the cached snapshot was written.
	BuiltAt *time.Time `json:"built_at,omitempty"`

	Cache    snapshot.Stats `json:"cache"`
	Rebuild  rebuild.Stats  `json:"rebuild"`
	Sessions int            `json:"sessions"`
}

// RebuildResponse is the response for POST /v1/graph/rebuild.
type RebuildResponse struct {
	// Status is "queued".
	Status string `json:"status"`

	// GraphVersion is the version current at the time of the request; the
	// rebuilt graph will carry a higher one.
	GraphVersion uint64 `json:"graph_version"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
