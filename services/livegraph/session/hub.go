// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session manages connected graph viewers.
//
// A Hub owns the set of live websocket sessions. Connect, disconnect and
// broadcast are messages to the single goroutine running Hub.Run, so the set
// itself is never shared.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// InitialFunc supplies the snapshot a viewer receives right after connecting.
type InitialFunc func(ctx context.Context) (*graph.Snapshot, error)

// Config tunes the hub and its sessions. Zero fields take defaults.
type Config struct {
	// QueueSize bounds each session's outbound queue. Default 4.
	QueueSize int

	// WriteWait is the deadline for one websocket write. Default 10s.
	WriteWait time.Duration

	// PongWait is how long a viewer may stay silent. Default 60s.
	PongWait time.Duration

	// PingPeriod must be shorter than PongWait. Default 9/10 of PongWait.
	PingPeriod time.Duration

	// MaxMessageSize caps inbound viewer frames. Default 4096.
	MaxMessageSize int64

	// CheckOrigin validates the upgrade request. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 4
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Hub tracks viewer sessions and fans snapshots out to them.
//
// # Description
//
// Run must be running for Serve and Broadcast to make progress. When Run's
// context ends every session is closed, later connections are refused with
// ErrHubClosed, and Broadcast becomes a no-op.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	register   chan *Session
	unregister chan *Session
	broadcast  chan *graph.Snapshot
	done       chan struct{}

	running int32
	count   int64
}

// NewHub creates a Hub. Start it with Run.
func NewHub(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan *graph.Snapshot),
		done:       make(chan struct{}),
	}
}

// Run owns the session set until ctx is done.
//
// # Outputs
//
//   - error: ErrHubRunning if Run is already active, ErrHubClosed if the hub
//     has stopped; nil after a normal shutdown.
func (h *Hub) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&h.running, 0, 1) {
		select {
		case <-h.done:
			return ErrHubClosed
		default:
			return ErrHubRunning
		}
	}
	defer close(h.done)

	sessions := make(map[*Session]struct{})
	for {
		select {
		case <-ctx.Done():
			for s := range sessions {
				s.close()
			}
			recordSessionDelta(context.Background(), -int64(len(sessions)))
			atomic.StoreInt64(&h.count, 0)
			h.cfg.Logger.Info("session hub stopped", slog.Int("closed_sessions", len(sessions)))
			return nil

		case s := <-h.register:
			sessions[s] = struct{}{}
			atomic.StoreInt64(&h.count, int64(len(sessions)))
			recordSessionDelta(ctx, 1)

		case s := <-h.unregister:
			if _, ok := sessions[s]; !ok {
				continue
			}
			delete(sessions, s)
			s.close()
			atomic.StoreInt64(&h.count, int64(len(sessions)))
			recordSessionDelta(ctx, -1)

		case snap := <-h.broadcast:
			for s := range sessions {
				s.enqueue(snap)
			}
			recordBroadcast(ctx)
		}
	}
}

// Broadcast queues snap for every connected session.
//
// Blocks until the hub accepts it; returns immediately after shutdown.
func (h *Hub) Broadcast(snap *graph.Snapshot) {
	if snap == nil {
		return
	}
	select {
	case h.broadcast <- snap:
	case <-h.done:
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	return int(atomic.LoadInt64(&h.count))
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Serve upgrades the request and runs one viewer session until it ends.
//
// # Description
//
// The session is registered before the initial snapshot is fetched, so a
// broadcast racing with the connect is never lost; version ordering keeps
// the older of the two from being delivered second.
//
// # Inputs
//
//   - w, r: The upgrade request. On upgrade failure an HTTP error has
//     already been written.
//   - initial: Supplies the connect-time snapshot. Its failure is logged and
//     the session continues to receive broadcasts.
//
// # Outputs
//
//   - error: Upgrade failure or ErrHubClosed; nil when the viewer left.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial InitialFunc) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := telemetry.LoggerWithSession(ctx, h.cfg.Logger, id)
	s := newSession(id, conn, h.cfg, logger)

	select {
	case h.register <- s:
	case <-h.done:
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteWait))
		_ = conn.Close()
		return ErrHubClosed
	}
	logger.Info("viewer connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx)
	}()

	if initial != nil {
		go func() {
			snap, err := initial(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("initial snapshot unavailable", slog.String("error", err.Error()))
				}
				return
			}
			s.enqueue(snap)
		}()
	}

	s.readPump()
	cancel()
	<-writerDone

	select {
	case h.unregister <- s:
	case <-h.done:
	}
	logger.Info("viewer disconnected")
	return nil
}
