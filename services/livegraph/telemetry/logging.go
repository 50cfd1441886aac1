// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// LoggerWithTrace returns a logger enriched with trace_id and span_id.
//
// # Description
//
// Correlates log lines with spans. If ctx carries no valid span the logger is
// returned unchanged.
//
// # Inputs
//
//   - ctx: Context that may contain a span. May be nil.
//   - logger: Base logger. If nil, slog.Default() is used.
//
// # Outputs
//
//   - *slog.Logger: Never nil.
//
// # Thread Safety
//
// Safe for concurrent use.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

// LoggerWithSession adds trace correlation plus the viewer session id.
func LoggerWithSession(ctx context.Context, logger *slog.Logger, sessionID string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(
		slog.String("session_id", sessionID),
	)
}

// LoggerWithAnalyzer adds trace correlation plus the analyzer name and ecosystem.
func LoggerWithAnalyzer(ctx context.Context, logger *slog.Logger, name, ecosystem string) *slog.Logger {
	return LoggerWithTrace(ctx, logger).With(
		slog.String("analyzer", name),
		slog.String("ecosystem", ecosystem),
	)
}
