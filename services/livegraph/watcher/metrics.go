// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watcher

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("livegraph.watcher")

var (
	eventsTotal   metric.Int64Counter
	triggersTotal metric.Int64Counter
	errorsTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		eventsTotal, err = meter.Int64Counter(
			"livegraph_watcher_events_total",
			metric.WithDescription("Qualifying filesystem events by operation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		triggersTotal, err = meter.Int64Counter(
			"livegraph_watcher_triggers_total",
			metric.WithDescription("Debounced rebuild triggers fired"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsTotal, err = meter.Int64Counter(
			"livegraph_watcher_errors_total",
			metric.WithDescription("Errors reported by the filesystem watcher"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEvent(ctx context.Context, op string) {
	if err := initMetrics(); err != nil {
		return
	}
	eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func recordTrigger(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	triggersTotal.Add(ctx, 1)
}

func recordWatchError(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	errorsTotal.Add(ctx, 1)
}
