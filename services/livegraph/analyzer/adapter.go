// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyzer extracts per-ecosystem import maps from a project tree.
//
// Every adapter honors one contract: Analyze never fails. A broken tool,
// a missing runtime, malformed output, a timeout or cancellation all yield an
// empty Result, with the cause logged and recorded as telemetry. One
// ecosystem failing therefore never prevents the others from being shown.
//
// Adapters hold no state between calls; each Analyze re-reads the tree.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Adapter produces the import map for one ecosystem.
//
// # Thread Safety
//
// Implementations must be safe for concurrent Analyze calls on distinct
// roots; the orchestrator runs each adapter at most once per rebuild.
type Adapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string

	// Ecosystem is the tag applied to every node this adapter introduces.
	Ecosystem() graph.Ecosystem

	// Extensions lists the file extensions (with leading dot) whose changes
	// should trigger a rebuild.
	Extensions() []string

	// Analyze returns the import map of root. Never returns nil on success
	// paths; returns an empty Result on any failure.
	Analyze(ctx context.Context, root string) graph.Result
}

// analyzeFunc is the fallible core of an adapter.
type analyzeFunc func(ctx context.Context, root string) (graph.Result, error)

// failEmpty runs fn under a span and converts every failure into an empty
// Result.
//
// # Description
//
// Records duration, module count and failures as metrics; logs failures at
// warn level with the analyzer name, ecosystem and error; recovers panics.
//
// # Inputs
//
//   - ctx: Caller context. Cancellation is reported like any other failure.
//   - logger: Base logger. May be nil.
//   - name: Adapter name.
//   - eco: Adapter ecosystem.
//   - root: Project root passed to fn.
//   - fn: The fallible analysis.
//
// # Outputs
//
//   - graph.Result: fn's result on success, otherwise an empty non-nil map.
func failEmpty(ctx context.Context, logger *slog.Logger, name string, eco graph.Ecosystem, root string, fn analyzeFunc) (result graph.Result) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Adapter.Analyze",
		trace.WithAttributes(
			attribute.String("analyzer.name", name),
			attribute.String("analyzer.ecosystem", eco.String()),
		),
	)
	defer span.End()

	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAnalyzerPanic, r)
			result = nil
		}

		elapsed := time.Since(start)
		if err != nil {
			telemetry.RecordError(span, err)
			recordAnalyzeMetrics(ctx, name, eco, elapsed, 0, false)
			telemetry.LoggerWithAnalyzer(ctx, logger, name, eco.String()).Warn("analysis failed, using empty result",
				slog.String("root", root),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			result = graph.Result{}
			return
		}

		if result == nil {
			result = graph.Result{}
		}
		span.SetAttributes(attribute.Int("analyzer.modules", len(result)))
		telemetry.SetSpanOK(span)
		recordAnalyzeMetrics(ctx, name, eco, elapsed, len(result), true)
		telemetry.LoggerWithAnalyzer(ctx, logger, name, eco.String()).Debug("analysis complete",
			slog.Int("modules", len(result)),
			slog.Duration("elapsed", elapsed),
		)
	}()

	if err = ctx.Err(); err != nil {
		return nil
	}
	result, err = fn(ctx, root)
	return result
}

// appendUnique appends dep to deps unless already present.
func appendUnique(deps []graph.ModuleID, seen map[graph.ModuleID]struct{}, dep graph.ModuleID) []graph.ModuleID {
	if _, ok := seen[dep]; ok {
		return deps
	}
	seen[dep] = struct{}{}
	return append(deps, dep)
}
