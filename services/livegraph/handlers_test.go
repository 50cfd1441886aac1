// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package livegraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

// writeProject lays out a small mixed project: a.ts imports b.ts, and c.py
// stands alone.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.ts": `import { b } from "./b";`,
		"b.ts": `export const b = 1;`,
		"c.py": "print('hi')\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func testConfig(root string) config.Config {
	cfg := config.Default()
	cfg.Root = root
	cfg.Debounce = 50 * time.Millisecond
	return cfg
}

// newTestService builds a service with its session hub running, so
// rebuilds can publish without Run.
func newTestService(t *testing.T, cfg config.Config) *Service {
	t.Helper()
	svc, err := NewService(cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = svc.hub.Run(ctx) }()
	return svc
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func nodeByID(snap graph.Snapshot) map[string]graph.Node {
	out := make(map[string]graph.Node, len(snap.Nodes))
	for _, n := range snap.Nodes {
		out[n.ID] = n
	}
	return out
}

func assertProjectGraph(t *testing.T, snap graph.Snapshot) {
	t.Helper()
	nodes := nodeByID(snap)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d: %+v", len(nodes), snap.Nodes)
	}
	if nodes["a.ts"].Color != "#3178c6" || nodes["a.ts"].Group != graph.EcosystemTypeScript {
		t.Errorf("unexpected a.ts node: %+v", nodes["a.ts"])
	}
	if nodes["c.py"].Color != graph.DefaultOrphanColor || nodes["c.py"].Group != graph.EcosystemPython {
		t.Errorf("expected c.py to be a python orphan, got %+v", nodes["c.py"])
	}
	if len(snap.Edges) != 1 || snap.Edges[0] != (graph.Edge{From: "a.ts", To: "b.ts"}) {
		t.Errorf("expected single edge a.ts -> b.ts, got %+v", snap.Edges)
	}
}

func TestNewService_MissingRoot(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	if _, err := NewService(cfg, nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestHandlers_HandleHealth(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))

	w := doRequest(t, svc.Handler(), "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))
	router := svc.Handler()

	w := doRequest(t, router, "GET", "/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d before first build, got %d", http.StatusServiceUnavailable, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	if _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	w = doRequest(t, router, "GET", "/ready")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Ready || resp.GraphVersion != 1 {
		t.Errorf("unexpected ready response: %+v", resp)
	}
}

func TestHandlers_HandleGetGraph(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))

	w := doRequest(t, svc.Handler(), "GET", "/v1/graph")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Graph-Version"); got != "1" {
		t.Errorf("expected X-Graph-Version 1, got %q", got)
	}

	var snap graph.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	assertProjectGraph(t, snap)

	// Served from cache the second time.
	w = doRequest(t, svc.Handler(), "GET", "/v1/graph")
	if got := w.Header().Get("X-Graph-Version"); got != "1" {
		t.Errorf("expected cached version 1, got %q", got)
	}
	if stats := svc.rebuilder.Stats(); stats.Rebuilds != 1 {
		t.Errorf("expected 1 rebuild, got %d", stats.Rebuilds)
	}
}

func TestHandlers_HandleGetStats(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))
	router := svc.Handler()

	w := doRequest(t, router, "GET", "/v1/graph/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Graph.Nodes != 0 || resp.GraphVersion != 0 || resp.BuiltAt != nil {
		t.Errorf("stats must not build a graph: %+v", resp)
	}

	if _, err := svc.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	w = doRequest(t, router, "GET", "/v1/graph/stats")
	resp = StatsResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Graph.Nodes != 3 || resp.Graph.Edges != 1 || resp.Graph.Orphans != 1 {
		t.Errorf("unexpected graph stats: %+v", resp.Graph)
	}
	if resp.Graph.Groups[graph.EcosystemPython].Orphans != 1 {
		t.Errorf("expected one python orphan, got %+v", resp.Graph.Groups)
	}
	if resp.Root != svc.cfg.Root {
		t.Errorf("expected root %q, got %q", svc.cfg.Root, resp.Root)
	}
	if resp.BuiltAt == nil {
		t.Error("expected built_at after a build")
	}
}

func TestHandlers_HandleRebuild(t *testing.T) {
	cfg := testConfig(writeProject(t))
	cfg.RebuildRateLimit = config.RateLimitConfig{PerSecond: 0.001, Burst: 1}
	svc := newTestService(t, cfg)
	router := svc.Handler()

	w := doRequest(t, router, "POST", "/v1/graph/rebuild")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}
	var resp RebuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "queued" {
		t.Errorf("expected status 'queued', got %q", resp.Status)
	}

	w = doRequest(t, router, "POST", "/v1/graph/rebuild")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if errResp.Code != CodeRateLimited {
		t.Errorf("expected code %q, got %q", CodeRateLimited, errResp.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestHandlers_HandleRebuild_Unlimited(t *testing.T) {
	cfg := testConfig(writeProject(t))
	cfg.RebuildRateLimit = config.RateLimitConfig{}
	svc := newTestService(t, cfg)

	for i := 0; i < 5; i++ {
		w := doRequest(t, svc.Handler(), "POST", "/v1/graph/rebuild")
		if w.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected status %d, got %d", i, http.StatusAccepted, w.Code)
		}
	}
}

func TestHandlers_HandleMetrics_Disabled(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))

	w := doRequest(t, svc.Handler(), "GET", "/metrics")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandlers_HandleViewer(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))

	w := doRequest(t, svc.Handler(), "GET", "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Errorf("expected html, got %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "graph-data") {
		t.Error("viewer page does not subscribe to graph-data")
	}
}

type wireEnvelope struct {
	Event string         `json:"event"`
	Data  graph.Snapshot `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) wireEnvelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var env wireEnvelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestHandlers_HandleWebSocket_InitialSnapshot(t *testing.T) {
	svc := newTestService(t, testConfig(writeProject(t)))
	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env := readEnvelope(t, conn, 5*time.Second)
	if env.Event != "graph-data" {
		t.Fatalf("expected graph-data event, got %q", env.Event)
	}
	assertProjectGraph(t, env.Data)
}

func TestBuildAdapters(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzers = []config.AnalyzerConfig{
		{Name: "ts", Kind: config.KindBuiltin, Ecosystem: "typescript"},
		{Name: "js", Kind: config.KindBuiltin, Ecosystem: "javascript"},
		{Name: "py", Kind: config.KindBuiltin, Ecosystem: "python", Disabled: true},
		{Name: "go", Kind: config.KindBuiltin, Ecosystem: "go"},
		{Name: "rust", Kind: config.KindProcess, Ecosystem: "rust", Command: "cargo-deps"},
	}

	adapters, err := BuildAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("BuildAdapters: %v", err)
	}
	want := []struct {
		name string
		eco  graph.Ecosystem
	}{
		{"ts", graph.EcosystemTypeScript},
		{"js", graph.EcosystemJavaScript},
		{"go", graph.EcosystemGo},
		{"rust", "rust"},
	}
	if len(adapters) != len(want) {
		t.Fatalf("expected %d adapters, got %d", len(want), len(adapters))
	}
	for i, w := range want {
		if adapters[i].Name() != w.name || adapters[i].Ecosystem() != w.eco {
			t.Errorf("adapter %d: expected %s/%s, got %s/%s",
				i, w.name, w.eco, adapters[i].Name(), adapters[i].Ecosystem())
		}
	}
}

func TestBuildAdapters_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Analyzers = []config.AnalyzerConfig{
		{Name: "rust", Kind: config.KindBuiltin, Ecosystem: "rust"},
	}
	if _, err := BuildAdapters(cfg, nil); !errors.Is(err, ErrUnknownBuiltin) {
		t.Errorf("expected ErrUnknownBuiltin, got %v", err)
	}

	cfg.Analyzers = []config.AnalyzerConfig{
		{Name: "ts", Kind: config.KindBuiltin, Ecosystem: "typescript", Disabled: true},
	}
	if _, err := BuildAdapters(cfg, nil); !errors.Is(err, ErrNoEnabledAnalyzers) {
		t.Errorf("expected ErrNoEnabledAnalyzers, got %v", err)
	}
}

func TestBuildSnapshot(t *testing.T) {
	snap, err := BuildSnapshot(context.Background(), testConfig(writeProject(t)), nil)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}
	assertProjectGraph(t, *snap)
}
