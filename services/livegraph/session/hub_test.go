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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapWith(id string, version uint64) *graph.Snapshot {
	return &graph.Snapshot{
		Nodes:   []graph.Node{{ID: id, Label: id, Title: id, Color: graph.DefaultOrphanColor, Group: graph.EcosystemTypeScript}},
		Edges:   []graph.Edge{},
		Version: version,
	}
}

func startHub(t *testing.T, cfg Config) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(cancel)
	return h, cancel
}

func serveHub(t *testing.T, h *Hub, initial InitialFunc) (*httptest.Server, <-chan error) {
	t.Helper()
	errs := make(chan error, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs <- h.Serve(w, r, initial)
	}))
	t.Cleanup(srv.Close)
	return srv, errs
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Nodes []graph.Node `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	} `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wireEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env wireEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func waitForCount(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func staticInitial(snap *graph.Snapshot) InitialFunc {
	return func(context.Context) (*graph.Snapshot, error) { return snap, nil }
}

func TestHub_ConnectReceivesInitialSnapshot(t *testing.T) {
	h, _ := startHub(t, Config{})
	srv, _ := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))

	conn := dial(t, srv)
	env := readEnvelope(t, conn)

	assert.Equal(t, EventGraphData, env.Event)
	require.Len(t, env.Data.Nodes, 1)
	assert.Equal(t, "a.ts", env.Data.Nodes[0].ID)
	assert.NotNil(t, env.Data.Edges)
	waitForCount(t, h, 1)
}

func TestHub_WireFormat(t *testing.T) {
	h, _ := startHub(t, Config{})
	srv, _ := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))

	conn := dial(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Len(t, generic, 2)
	assert.JSONEq(t, `"graph-data"`, string(generic["event"]))

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(generic["data"], &data))
	assert.Len(t, data, 2, "data carries only nodes and edges")
	assert.JSONEq(t, `[]`, string(data["edges"]))
}

func TestHub_BroadcastFansOut(t *testing.T) {
	h, _ := startHub(t, Config{})
	srv, _ := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))

	c1 := dial(t, srv)
	c2 := dial(t, srv)
	readEnvelope(t, c1)
	readEnvelope(t, c2)
	waitForCount(t, h, 2)

	h.Broadcast(snapWith("b.ts", 2))

	for _, c := range []*websocket.Conn{c1, c2} {
		env := readEnvelope(t, c)
		require.Len(t, env.Data.Nodes, 1)
		assert.Equal(t, "b.ts", env.Data.Nodes[0].ID)
	}
}

func TestHub_DisconnectBeforeBroadcast(t *testing.T) {
	h, _ := startHub(t, Config{})
	srv, errs := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))

	leaving := dial(t, srv)
	staying := dial(t, srv)
	readEnvelope(t, leaving)
	readEnvelope(t, staying)
	waitForCount(t, h, 2)

	require.NoError(t, leaving.Close())
	waitForCount(t, h, 1)

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the viewer left")
	}

	h.Broadcast(snapWith("b.ts", 2))
	env := readEnvelope(t, staying)
	assert.Equal(t, "b.ts", env.Data.Nodes[0].ID)
}

func TestHub_InitialFailureStillReceivesBroadcasts(t *testing.T) {
	h, _ := startHub(t, Config{})
	failing := func(context.Context) (*graph.Snapshot, error) {
		return nil, errors.New("analysis unavailable")
	}
	srv, _ := serveHub(t, h, failing)

	conn := dial(t, srv)
	waitForCount(t, h, 1)

	h.Broadcast(snapWith("late.py", 1))
	env := readEnvelope(t, conn)
	assert.Equal(t, "late.py", env.Data.Nodes[0].ID)
}

func TestHub_ShutdownClosesSessions(t *testing.T) {
	h, cancel := startHub(t, Config{})
	srv, errs := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))

	conn := dial(t, srv)
	readEnvelope(t, conn)
	waitForCount(t, h, 1)

	cancel()
	<-h.Done()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, h.Count())

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
}

func TestHub_BroadcastAfterShutdownIsNoop(t *testing.T) {
	h, cancel := startHub(t, Config{})
	cancel()
	<-h.Done()

	done := make(chan struct{})
	go func() {
		h.Broadcast(snapWith("a.ts", 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after shutdown")
	}
}

func TestHub_ServeAfterShutdown(t *testing.T) {
	h, cancel := startHub(t, Config{})
	cancel()
	<-h.Done()

	srv, errs := serveHub(t, h, staticInitial(snapWith("a.ts", 1)))
	conn := dial(t, srv)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrHubClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not refuse the viewer")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_RunTwice(t *testing.T) {
	h := NewHub(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&h.running) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.Run(context.Background()), ErrHubRunning)

	cancel()
	<-h.Done()
	assert.ErrorIs(t, h.Run(context.Background()), ErrHubClosed)
}

func TestSession_EnqueueOrdering(t *testing.T) {
	s := newSession("s1", nil, Config{}.withDefaults(), slog.Default())

	assert.True(t, s.enqueue(snapWith("a", 2)))
	assert.False(t, s.enqueue(snapWith("a", 1)), "older version is stale")
	assert.False(t, s.enqueue(snapWith("a", 2)), "same version is stale")
	assert.True(t, s.enqueue(snapWith("a", 3)))
	assert.False(t, s.enqueue(nil))

	got := s.drain()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Version)
	assert.Equal(t, uint64(3), got[1].Version)
	assert.Nil(t, s.drain())
}

func TestSession_QueueDropsOldest(t *testing.T) {
	s := newSession("s1", nil, Config{QueueSize: 2}.withDefaults(), slog.Default())

	for v := uint64(1); v <= 3; v++ {
		require.True(t, s.enqueue(snapWith("a", v)))
	}

	got := s.drain()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].Version)
	assert.Equal(t, uint64(3), got[1].Version)
	assert.Equal(t, int64(1), s.dropped)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{PongWait: 10 * time.Second, PingPeriod: time.Minute}.withDefaults()

	assert.Equal(t, 4, cfg.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
	assert.Equal(t, 9*time.Second, cfg.PingPeriod, "ping period is clamped below pong wait")
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.NotNil(t, cfg.Logger)
	assert.True(t, cfg.CheckOrigin(httptest.NewRequest(http.MethodGet, "/", nil)))
}
