// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph merges per-ecosystem import maps into one directed module graph.
//
// A Snapshot is the unit published to viewers: a complete node and edge set
// produced by a single rebuild. Snapshots are never mutated after Merge
// returns; the snapshot cache stamps a version on a shallow copy.
package graph

import "time"

// ModuleID identifies one source module within an ecosystem's namespace.
//
// File-based analyzers emit forward-slash paths relative to the project root;
// the Go analyzer emits package import paths.
type ModuleID = string

// Ecosystem tags the source language/tooling a node belongs to.
type Ecosystem string

const (
	EcosystemTypeScript Ecosystem = "typescript"
	EcosystemJavaScript Ecosystem = "javascript"
	EcosystemPython     Ecosystem = "python"
	EcosystemGo         Ecosystem = "go"
)

// String returns the ecosystem tag.
func (e Ecosystem) String() string {
	return string(e)
}

// Result maps each analyzed module to the modules it imports, in source order.
type Result map[ModuleID][]ModuleID

// Fragment is one analyzer's contribution to a merge.
type Fragment struct {
	// Ecosystem is the tag applied to every node this fragment introduces.
	Ecosystem Ecosystem

	// Result is the analyzer output. A nil or empty Result contributes nothing.
	Result Result
}

// Node is a module vertex on the wire.
type Node struct {
	// ID is the module identifier.
	ID ModuleID `json:"id"`

	// Label is the basename of ID.
	Label string `json:"label"`

	// Title is the full module identifier, shown on hover.
	Title string `json:"title"`

	// Color is the ecosystem color, or the orphan color when the node has no edges.
	Color string `json:"color"`

	// Group is the ecosystem tag.
	Group Ecosystem `json:"group"`
}

// Edge is a directed "From imports To" relationship.
type Edge struct {
	From ModuleID `json:"from"`
	To   ModuleID `json:"to"`
}

// Snapshot is one complete, immutable graph.
type Snapshot struct {
	// Nodes in insertion order. IDs are unique.
	Nodes []Node `json:"nodes"`

	// Edges in insertion order. Each ordered pair appears at most once.
	Edges []Edge `json:"edges"`

	// Version is assigned by the snapshot cache on write. Zero until cached.
	Version uint64 `json:"-"`

	// BuiltAt is when the cache accepted this snapshot.
	BuiltAt time.Time `json:"-"`
}

// Empty reports whether the snapshot has no nodes.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Nodes) == 0
}

// GroupStats counts nodes of one ecosystem.
type GroupStats struct {
	Nodes   int `json:"nodes"`
	Orphans int `json:"orphans"`
}

// Stats summarizes a snapshot.
type Stats struct {
	Nodes   int                      `json:"nodes"`
	Edges   int                      `json:"edges"`
	Orphans int                      `json:"orphans"`
	Groups  map[Ecosystem]GroupStats `json:"groups"`
}
