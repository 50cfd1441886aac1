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
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/gorilla/websocket"
)

// EventGraphData is the event name of every snapshot push.
const EventGraphData = "graph-data"

// Envelope is the JSON frame written to viewers.
type Envelope struct {
	Event string          `json:"event"`
	Data  *graph.Snapshot `json:"data"`
}

// Session is one connected viewer.
//
// # Description
//
// Snapshots are queued by the hub and written by the session's own writer
// goroutine. The queue holds at most Config.QueueSize snapshots; when full
// the oldest is dropped. A snapshot whose version is not newer than the last
// queued one is ignored, so a viewer never sees the graph go backwards.
//
// # Thread Safety
//
// enqueue and close are safe for concurrent use. The pumps are each run by
// exactly one goroutine.
type Session struct {
	id     string
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	queue      []*graph.Snapshot
	lastQueued uint64
	dropped    int64

	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		queue:  make([]*graph.Snapshot, 0, cfg.QueueSize),
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// enqueue queues snap for writing. Returns false when snap is stale.
func (s *Session) enqueue(snap *graph.Snapshot) bool {
	if snap == nil {
		return false
	}

	s.mu.Lock()
	if s.lastQueued != 0 && snap.Version <= s.lastQueued {
		s.mu.Unlock()
		return false
	}
	if len(s.queue) >= s.cfg.QueueSize {
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.dropped++
		recordDropped(context.Background())
	}
	s.queue = append(s.queue, snap)
	s.lastQueued = snap.Version
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns every queued snapshot, oldest first.
func (s *Session) drain() []*graph.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = make([]*graph.Snapshot, 0, s.cfg.QueueSize)
	return out
}

// close signals the writer to send a close frame and stop.
func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// writePump owns all writes to the connection and closes it on exit.
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.closed:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			return

		case <-s.notify:
			for _, snap := range s.drain() {
				if err := s.write(snap); err != nil {
					s.logger.Debug("websocket write failed", slog.String("error", err.Error()))
					recordWriteError(ctx)
					return
				}
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) write(snap *graph.Snapshot) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(Envelope{Event: EventGraphData, Data: snap})
}

// readPump consumes viewer frames until the peer leaves or the connection
// fails. Viewer messages carry no meaning and are discarded.
func (s *Session) readPump() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("viewer connection lost", slog.String("error", err.Error()))
			}
			return
		}
	}
}
