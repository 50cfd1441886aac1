// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "livegraph.rebuild"

var meter = otel.Meter(tracerName)

var (
	rebuildLatency  metric.Float64Histogram
	rebuildTotal    metric.Int64Counter
	coalescedTotal  metric.Int64Counter
	snapshotNodes   metric.Int64Gauge
	snapshotEdges   metric.Int64Gauge
	snapshotOrphans metric.Int64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		rebuildLatency, err = meter.Float64Histogram(
			"livegraph_rebuild_duration_seconds",
			metric.WithDescription("Duration of one rebuild cycle"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rebuildTotal, err = meter.Int64Counter(
			"livegraph_rebuilds_total",
			metric.WithDescription("Rebuild cycles by reason and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		coalescedTotal, err = meter.Int64Counter(
			"livegraph_rebuild_triggers_coalesced_total",
			metric.WithDescription("Rebuild triggers folded into an already queued cycle"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotNodes, err = meter.Int64Gauge(
			"livegraph_snapshot_nodes",
			metric.WithDescription("Nodes in the current snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotEdges, err = meter.Int64Gauge(
			"livegraph_snapshot_edges",
			metric.WithDescription("Edges in the current snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		snapshotOrphans, err = meter.Int64Gauge(
			"livegraph_snapshot_orphans",
			metric.WithDescription("Orphan nodes in the current snapshot"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRebuild(ctx context.Context, reason string, d time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.Bool("success", success),
	)
	rebuildLatency.Record(ctx, d.Seconds(), attrs)
	rebuildTotal.Add(ctx, 1, attrs)
}

func recordCoalesced(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	coalescedTotal.Add(ctx, 1)
}

func recordSnapshotSize(ctx context.Context, st graph.Stats) {
	if err := initMetrics(); err != nil {
		return
	}
	snapshotNodes.Record(ctx, int64(st.Nodes))
	snapshotEdges.Record(ctx, int64(st.Edges))
	snapshotOrphans.Record(ctx, int64(st.Orphans))
}
