// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("livegraph.session")

var (
	sessionsActive  metric.Int64UpDownCounter
	broadcastsTotal metric.Int64Counter
	droppedTotal    metric.Int64Counter
	writeErrors     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sessionsActive, err = meter.Int64UpDownCounter(
			"livegraph_sessions_active",
			metric.WithDescription("Connected viewer sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		broadcastsTotal, err = meter.Int64Counter(
			"livegraph_broadcasts_total",
			metric.WithDescription("Snapshots fanned out to viewers"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		droppedTotal, err = meter.Int64Counter(
			"livegraph_session_messages_dropped_total",
			metric.WithDescription("Queued snapshots superseded before they were written"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		writeErrors, err = meter.Int64Counter(
			"livegraph_session_write_errors_total",
			metric.WithDescription("Websocket writes that failed and closed a session"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSessionDelta(ctx context.Context, delta int64) {
	if err := initMetrics(); err != nil {
		return
	}
	sessionsActive.Add(ctx, delta)
}

func recordBroadcast(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	broadcastsTotal.Add(ctx, 1)
}

func recordDropped(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	droppedTotal.Add(ctx, 1)
}

func recordWriteError(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	writeErrors.Add(ctx, 1)
}
