// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package livegraph serves a live import graph of a source tree.
//
// The Service wires the pipeline: the watcher debounces file changes into
// rebuild triggers, the rebuilder runs every analyzer and merges their
// output into the snapshot cache, and the session hub pushes each new
// snapshot to connected browser viewers.
package livegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/rebuild"
	"github.com/AleutianAI/livegraph/services/livegraph/session"
	"github.com/AleutianAI/livegraph/services/livegraph/snapshot"
	"github.com/AleutianAI/livegraph/services/livegraph/watcher"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Service is the running livegraph pipeline and its HTTP surface.
//
// # Description
//
// NewService validates the project root and builds every component; Run
// starts them and blocks until its context ends or a component fails.
//
// # Thread Safety
//
// Safe for concurrent use. Run may be called once.
type Service struct {
	cfg    config.Config
	logger *slog.Logger

	store     *snapshot.Store
	hub       *session.Hub
	rebuilder *rebuild.Rebuilder
	watcher   *watcher.Watcher
	limiter   *rate.Limiter
	router    *gin.Engine

	running int32

	// baseCtx is the Run context. Viewer-initiated builds run under it.
	baseMu  sync.RWMutex
	baseCtx context.Context
}

// NewService builds the pipeline for cfg.
//
// # Inputs
//
//   - cfg: Validated configuration with an absolute Root.
//   - logger: Nil means slog.Default().
//
// # Outputs
//
//   - *Service: Ready for Run.
//   - error: Analyzer construction or watcher setup failure (missing or
//     non-directory root). Fatal at startup.
func NewService(cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapters, err := BuildAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := snapshot.New()
	hub := session.NewHub(session.Config{
		QueueSize: cfg.SessionQueueSize,
		Logger:    logger,
	})
	rb, err := rebuild.New(rebuild.Config{
		Root:           cfg.Root,
		Adapters:       adapters,
		Store:          store,
		Publisher:      hub,
		Palette:        cfg.Palette(),
		MaxConcurrency: cfg.MaxConcurrentAnalyzers,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	w, err := watcher.New(watcher.Config{
		Root:           cfg.Root,
		Extensions:     rb.Extensions(),
		Debounce:       cfg.Debounce,
		IgnorePatterns: cfg.Ignore,
		Logger:         logger,
	}, rb.Trigger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		hub:       hub,
		rebuilder: rb,
		watcher:   w,
		baseCtx:   context.Background(),
	}
	if cfg.RebuildRateLimit.PerSecond > 0 {
		burst := cfg.RebuildRateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RebuildRateLimit.PerSecond), burst)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	RegisterRoutes(s.router, NewHandlers(s))

	return s, nil
}

// Handler returns the HTTP handler serving the viewer, websocket and API.
func (s *Service) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Service) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run starts the pipeline and serves HTTP until ctx ends.
//
// # Description
//
// Starts the session hub and the rebuild loop, queues the startup build,
// begins watching, then listens on Addr. On cancellation the watcher stops,
// viewers are disconnected and the server drains.
//
// # Outputs
//
//   - error: nil after a clean shutdown; the first component failure
//     otherwise (for example, the port is in use).
func (s *Service) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServiceRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	s.setBase(gctx)

	if err := s.watcher.Start(gctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	g.Go(func() error { return s.hub.Run(gctx) })
	g.Go(func() error { return s.rebuilder.Run(gctx) })
	s.rebuilder.Trigger()

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		s.logger.Info("livegraph listening",
			slog.String("addr", srv.Addr),
			slog.String("root", s.cfg.Root),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.watcher.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("livegraph stopped")
	return err
}

// Snapshot returns the cached snapshot, building it if none exists yet.
func (s *Service) Snapshot(ctx context.Context) (*graph.Snapshot, error) {
	return s.rebuilder.Ensure(ctx)
}

// initialSnapshot feeds newly connected viewers. It builds under the
// service context so one viewer leaving does not abort a shared build.
func (s *Service) initialSnapshot(context.Context) (*graph.Snapshot, error) {
	return s.rebuilder.Ensure(s.base())
}

func (s *Service) setBase(ctx context.Context) {
	s.baseMu.Lock()
	s.baseCtx = ctx
	s.baseMu.Unlock()
}

func (s *Service) base() context.Context {
	s.baseMu.RLock()
	defer s.baseMu.RUnlock()
	return s.baseCtx
}

// BuildSnapshot runs one rebuild for cfg without starting the service.
//
// Used by the one-shot CLI command; nothing is watched or served.
func BuildSnapshot(ctx context.Context, cfg config.Config, logger *slog.Logger) (*graph.Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := watcher.CheckRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	adapters, err := BuildAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}
	rb, err := rebuild.New(rebuild.Config{
		Root:           root,
		Adapters:       adapters,
		Palette:        cfg.Palette(),
		MaxConcurrency: cfg.MaxConcurrentAnalyzers,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return rb.Rebuild(ctx)
}
