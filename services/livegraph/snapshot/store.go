// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot holds the most recently built graph.
//
// The Store is a single slot shared by the rebuild orchestrator (the only
// writer) and the viewer sessions and HTTP handlers (readers). It lives for
// the process; nothing is persisted.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
)

// Store is a single-slot snapshot cache.
//
// # Description
//
// Write replaces the slot unconditionally and stamps a monotonically
// increasing version, so the most recently written snapshot always wins.
// Readers receive the stored pointer; snapshots are immutable once written.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	current *graph.Snapshot
	version uint64

	hits   int64
	misses int64
	writes int64

	now func() time.Time
}

// Stats is a point-in-time view of the store.
type Stats struct {
	// Version of the cached snapshot; 0 when empty.
	Version uint64 `json:"version"`

	// BuiltAt is when the cached snapshot was written; zero when empty.
	BuiltAt time.Time `json:"built_at"`

	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Writes int64 `json:"writes"`
}

// New returns an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// Read returns the cached snapshot, or false when none has been written.
func (s *Store) Read() (*graph.Snapshot, bool) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if cur == nil {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&s.hits, 1)
	return cur, true
}

// Write stores a copy of snap stamped with the next version and the current
// time, and returns that copy. A nil snap is stored as an empty graph.
//
// The caller's value is not modified; node and edge slices are shared and
// must not be mutated afterwards.
func (s *Store) Write(snap *graph.Snapshot) *graph.Snapshot {
	stamped := &graph.Snapshot{}
	if snap != nil {
		*stamped = *snap
	}
	if stamped.Nodes == nil {
		stamped.Nodes = []graph.Node{}
	}
	if stamped.Edges == nil {
		stamped.Edges = []graph.Edge{}
	}

	s.mu.Lock()
	s.version++
	stamped.Version = s.version
	stamped.BuiltAt = s.now()
	s.current = stamped
	s.mu.Unlock()

	atomic.AddInt64(&s.writes, 1)
	return stamped
}

// Version returns the version of the cached snapshot, 0 when empty.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.Version
}

// Stats returns current store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	st := Stats{}
	if s.current != nil {
		st.Version = s.current.Version
		st.BuiltAt = s.current.BuiltAt
	}
	s.mu.RUnlock()

	st.Hits = atomic.LoadInt64(&s.hits)
	st.Misses = atomic.LoadInt64(&s.misses)
	st.Writes = atomic.LoadInt64(&s.writes)
	return st
}
