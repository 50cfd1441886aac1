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

import "errors"

// Sentinel errors for the livegraph service.
var (
	// ErrUnknownBuiltin indicates a builtin analyzer was requested for an
	// ecosystem without an in-process implementation.
	ErrUnknownBuiltin = errors.New("no builtin analyzer for ecosystem")

	// ErrNoEnabledAnalyzers indicates every configured analyzer is disabled.
	ErrNoEnabledAnalyzers = errors.New("no enabled analyzers")

	// ErrServiceRunning indicates Run was called twice.
	ErrServiceRunning = errors.New("service already running")
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeRebuildFailed = "REBUILD_FAILED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeNoMetrics     = "METRICS_DISABLED"
)
