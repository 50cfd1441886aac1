// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "livegraph.analyzer"

var meter = otel.Meter(tracerName)

var (
	analyzeLatency  metric.Float64Histogram
	analyzeFailures metric.Int64Counter
	modulesFound    metric.Int64Histogram
	filesSkipped    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analyzeLatency, err = meter.Float64Histogram(
			"livegraph_analyzer_duration_seconds",
			metric.WithDescription("Duration of one adapter analysis"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analyzeFailures, err = meter.Int64Counter(
			"livegraph_analyzer_failures_total",
			metric.WithDescription("Analyses that fell back to an empty result"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		modulesFound, err = meter.Int64Histogram(
			"livegraph_analyzer_modules",
			metric.WithDescription("Modules reported per successful analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesSkipped, err = meter.Int64Counter(
			"livegraph_analyzer_files_skipped_total",
			metric.WithDescription("Source files that could not be read or parsed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordAnalyzeMetrics(ctx context.Context, name string, eco graph.Ecosystem, d time.Duration, modules int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("analyzer", name),
		attribute.String("ecosystem", eco.String()),
	)

	analyzeLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("analyzer", name),
		attribute.Bool("success", success),
	))
	if success {
		modulesFound.Record(ctx, int64(modules), attrs)
	} else {
		analyzeFailures.Add(ctx, 1, attrs)
	}
}

func recordFileSkipped(ctx context.Context, eco graph.Ecosystem) {
	if err := initMetrics(); err != nil {
		return
	}
	filesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("ecosystem", eco.String())))
}
