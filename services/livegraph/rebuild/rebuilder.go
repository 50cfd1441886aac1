// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rebuild runs analyzers, merges their output and publishes the
// resulting snapshot.
//
// One rebuild cycle is: every adapter analyzes the root concurrently, the
// fragments are merged in adapter order, the snapshot is written to the
// cache, and only then broadcast to viewers. Cycles never overlap.
package rebuild

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/analyzer"
	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/snapshot"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNoAdapters is returned by New when no adapters are configured.
var ErrNoAdapters = errors.New("rebuild: no analyzers configured")

// Publisher receives each snapshot after it has been cached.
type Publisher interface {
	Broadcast(snap *graph.Snapshot)
}

// Config configures a Rebuilder.
type Config struct {
	// Root is the absolute project root handed to every adapter.
	Root string

	// Adapters run on every rebuild, merged in this order.
	Adapters []analyzer.Adapter

	// Store receives every merged snapshot.
	Store *snapshot.Store

	// Publisher is notified after each cache write. May be nil.
	Publisher Publisher

	// Palette colors merged nodes. Zero value uses graph.DefaultPalette.
	Palette graph.Palette

	// MaxConcurrency bounds concurrently running adapters; 0 means no limit.
	MaxConcurrency int

	// Logger receives cycle logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Stats summarizes rebuild activity.
type Stats struct {
	Rebuilds     int64         `json:"rebuilds"`
	Coalesced    int64         `json:"coalesced_triggers"`
	InProgress   bool          `json:"in_progress"`
	LastDuration time.Duration `json:"last_duration_ns"`
}

// Rebuilder orchestrates rebuild cycles.
//
// # Description
//
// Rebuild runs one cycle synchronously. Trigger requests an asynchronous
// cycle, executed by the goroutine running Run; while a cycle is running at
// most one further cycle is queued and additional triggers are coalesced
// into it. Ensure returns the cached snapshot or, on an empty cache, runs a
// single cycle shared by every concurrent caller.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Rebuilder struct {
	root      string
	adapters  []analyzer.Adapter
	store     *snapshot.Store
	publisher Publisher
	palette   graph.Palette
	limit     int
	logger    *slog.Logger

	// mu serializes cycles.
	mu      sync.Mutex
	trigger chan struct{}
	flight  singleflight.Group

	rebuilds     int64
	coalesced    int64
	inProgress   int32
	lastDuration int64
}

// New creates a Rebuilder.
//
// # Outputs
//
//   - *Rebuilder: Ready for Run, Rebuild, Trigger and Ensure.
//   - error: ErrNoAdapters when cfg.Adapters is empty.
func New(cfg Config) (*Rebuilder, error) {
	if len(cfg.Adapters) == 0 {
		return nil, ErrNoAdapters
	}
	if cfg.Store == nil {
		cfg.Store = snapshot.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Palette.Colors == nil {
		cfg.Palette = graph.DefaultPalette()
	}

	return &Rebuilder{
		root:      cfg.Root,
		adapters:  cfg.Adapters,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		palette:   cfg.Palette,
		limit:     cfg.MaxConcurrency,
		logger:    cfg.Logger,
		trigger:   make(chan struct{}, 1),
	}, nil
}

// Store returns the snapshot cache this Rebuilder writes to.
func (r *Rebuilder) Store() *snapshot.Store { return r.store }

// SetPublisher replaces the publisher. It must be called before Run.
func (r *Rebuilder) SetPublisher(p Publisher) {
	r.mu.Lock()
	r.publisher = p
	r.mu.Unlock()
}

// Rebuild runs one full cycle and returns the cached, versioned snapshot.
//
// # Description
//
// Waits for any running cycle to finish first. Adapter failures never fail
// the cycle; they contribute empty fragments.
//
// # Outputs
//
//   - *graph.Snapshot: The snapshot as written to the cache.
//   - error: Non-nil only when ctx ends before the merge; nothing is written
//     or broadcast in that case.
func (r *Rebuilder) Rebuild(ctx context.Context) (*graph.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuildLocked(ctx, "explicit")
}

// Trigger requests a cycle without blocking.
//
// If a cycle request is already queued, this one is folded into it.
func (r *Rebuilder) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
		atomic.AddInt64(&r.coalesced, 1)
		recordCoalesced(context.Background())
	}
}

// Run executes queued triggers until ctx is done.
//
// Returns nil once ctx is canceled.
func (r *Rebuilder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.trigger:
			r.mu.Lock()
			_, err := r.rebuildLocked(ctx, "trigger")
			r.mu.Unlock()
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("triggered rebuild failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Ensure returns the cached snapshot, building it if the cache is empty.
//
// Concurrent callers on an empty cache share a single cycle. The shared
// cycle keeps the first caller's values but not its cancellation; a caller
// whose ctx ends stops waiting while the cycle completes for the others.
func (r *Rebuilder) Ensure(ctx context.Context) (*graph.Snapshot, error) {
	if snap, ok := r.store.Read(); ok {
		return snap, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan("ensure", func() (interface{}, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		// A cycle may have completed while we waited for the lock.
		if snap, ok := r.store.Read(); ok {
			return snap, nil
		}
		return r.rebuildLocked(buildCtx, "ensure")
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*graph.Snapshot), nil
	}
}

// Stats returns rebuild counters.
func (r *Rebuilder) Stats() Stats {
	return Stats{
		Rebuilds:     atomic.LoadInt64(&r.rebuilds),
		Coalesced:    atomic.LoadInt64(&r.coalesced),
		InProgress:   atomic.LoadInt32(&r.inProgress) == 1,
		LastDuration: time.Duration(atomic.LoadInt64(&r.lastDuration)),
	}
}

// Extensions returns the union of every adapter's extensions.
func (r *Rebuilder) Extensions() []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, a := range r.adapters {
		for _, e := range a.Extensions() {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			exts = append(exts, e)
		}
	}
	return exts
}

// rebuildLocked runs one cycle. Caller holds r.mu.
func (r *Rebuilder) rebuildLocked(ctx context.Context, reason string) (*graph.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Rebuilder.Rebuild",
		trace.WithAttributes(
			attribute.String("rebuild.reason", reason),
			attribute.Int("rebuild.adapters", len(r.adapters)),
		),
	)
	defer span.End()

	atomic.StoreInt32(&r.inProgress, 1)
	defer atomic.StoreInt32(&r.inProgress, 0)

	logger := telemetry.LoggerWithTrace(ctx, r.logger)
	start := time.Now()

	fragments := make([]graph.Fragment, len(r.adapters))
	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}
	for i, a := range r.adapters {
		g.Go(func() error {
			fragments[i] = graph.Fragment{
				Ecosystem: a.Ecosystem(),
				Result:    a.Analyze(gctx, r.root),
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		telemetry.RecordError(span, err)
		recordRebuild(ctx, reason, time.Since(start), false)
		return nil, err
	}

	merged := graph.Merge(fragments, r.palette)
	snap := r.store.Write(merged)
	if r.publisher != nil {
		r.publisher.Broadcast(snap)
	}

	elapsed := time.Since(start)
	atomic.AddInt64(&r.rebuilds, 1)
	atomic.StoreInt64(&r.lastDuration, int64(elapsed))

	stats := graph.ComputeStats(snap)
	span.SetAttributes(
		attribute.Int64("snapshot.version", int64(snap.Version)),
		attribute.Int("snapshot.nodes", stats.Nodes),
		attribute.Int("snapshot.edges", stats.Edges),
	)
	telemetry.SetSpanOK(span)
	recordRebuild(ctx, reason, elapsed, true)
	recordSnapshotSize(ctx, stats)

	logger.Info("graph rebuilt",
		slog.String("reason", reason),
		slog.Uint64("version", snap.Version),
		slog.Int("nodes", stats.Nodes),
		slog.Int("edges", stats.Edges),
		slog.Int("orphans", stats.Orphans),
		slog.Duration("elapsed", elapsed),
	)
	return snap, nil
}
