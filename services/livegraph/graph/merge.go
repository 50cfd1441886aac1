// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"path"
	"sort"
)

// Default colors. Orphan is applied post-merge to nodes without edges.
const (
	DefaultOrphanColor   = "#d3d3d3"
	DefaultFallbackColor = "#97c2fc"
)

// Palette maps ecosystems to node colors.
type Palette struct {
	// Colors holds the per-ecosystem color.
	Colors map[Ecosystem]string

	// Fallback is used for ecosystems missing from Colors.
	Fallback string

	// Orphan is used for nodes with no incident edges.
	Orphan string
}

// DefaultPalette returns the built-in ecosystem colors.
func DefaultPalette() Palette {
	return Palette{
		Colors: map[Ecosystem]string{
			EcosystemTypeScript: "#3178c6",
			EcosystemJavaScript: "#f1e05a",
			EcosystemPython:     "#3572A5",
			EcosystemGo:         "#00ADD8",
		},
		Fallback: DefaultFallbackColor,
		Orphan:   DefaultOrphanColor,
	}
}

// ColorFor returns the color for an ecosystem.
func (p Palette) ColorFor(e Ecosystem) string {
	if c, ok := p.Colors[e]; ok && c != "" {
		return c
	}
	if p.Fallback != "" {
		return p.Fallback
	}
	return DefaultFallbackColor
}

// OrphanColor returns the orphan color, defaulting when unset.
func (p Palette) OrphanColor() string {
	if p.Orphan != "" {
		return p.Orphan
	}
	return DefaultOrphanColor
}

// Merge combines analyzer fragments into one Snapshot.
//
// # Description
//
// Fragments are processed in the order given. Within a fragment, files are
// visited in sorted order so that the output does not depend on map
// iteration. For every file a node is inserted (first insertion wins on
// group and color), then for every dependency a node is inserted with the
// same ecosystem and a file→dependency edge is appended. Edges are
// deduplicated per ordered pair. Finally every node with no incident edge is
// recolored with the palette's orphan color.
//
// # Inputs
//
//   - fragments: Analyzer outputs tagged with their ecosystem. May be empty.
//   - palette: Node colors.
//
// # Outputs
//
//   - *Snapshot: Never nil. Version and BuiltAt are left zero.
//
// # Thread Safety
//
// Pure function; safe for concurrent use.
func Merge(fragments []Fragment, palette Palette) *Snapshot {
	b := newBuilder(palette)
	for _, frag := range fragments {
		files := make([]ModuleID, 0, len(frag.Result))
		for file := range frag.Result {
			files = append(files, file)
		}
		sort.Strings(files)

		for _, file := range files {
			b.addNode(file, frag.Ecosystem)
			for _, dep := range frag.Result[file] {
				b.addNode(dep, frag.Ecosystem)
				b.addEdge(file, dep)
			}
		}
	}
	return b.finish()
}

type builder struct {
	palette Palette
	nodes   []Node
	index   map[ModuleID]int
	edges   []Edge
	seen    map[Edge]struct{}
}

func newBuilder(palette Palette) *builder {
	return &builder{
		palette: palette,
		nodes:   make([]Node, 0),
		index:   make(map[ModuleID]int),
		edges:   make([]Edge, 0),
		seen:    make(map[Edge]struct{}),
	}
}

func (b *builder) addNode(id ModuleID, eco Ecosystem) {
	if _, ok := b.index[id]; ok {
		return
	}
	b.index[id] = len(b.nodes)
	b.nodes = append(b.nodes, Node{
		ID:    id,
		Label: path.Base(id),
		Title: id,
		Color: b.palette.ColorFor(eco),
		Group: eco,
	})
}

func (b *builder) addEdge(from, to ModuleID) {
	e := Edge{From: from, To: to}
	if _, dup := b.seen[e]; dup {
		return
	}
	b.seen[e] = struct{}{}
	b.edges = append(b.edges, e)
}

func (b *builder) finish() *Snapshot {
	connected := incident(b.edges)
	orphan := b.palette.OrphanColor()
	for i := range b.nodes {
		if _, ok := connected[b.nodes[i].ID]; !ok {
			b.nodes[i].Color = orphan
		}
	}
	return &Snapshot{Nodes: b.nodes, Edges: b.edges}
}

func incident(edges []Edge) map[ModuleID]struct{} {
	set := make(map[ModuleID]struct{}, len(edges)*2)
	for _, e := range edges {
		set[e.From] = struct{}{}
		set[e.To] = struct{}{}
	}
	return set
}

// ComputeStats counts nodes, edges and orphans, overall and per ecosystem.
func ComputeStats(s *Snapshot) Stats {
	st := Stats{Groups: make(map[Ecosystem]GroupStats)}
	if s == nil {
		return st
	}
	connected := incident(s.Edges)
	st.Nodes = len(s.Nodes)
	st.Edges = len(s.Edges)
	for _, n := range s.Nodes {
		g := st.Groups[n.Group]
		g.Nodes++
		if _, ok := connected[n.ID]; !ok {
			g.Orphans++
			st.Orphans++
		}
		st.Groups[n.Group] = g
	}
	return st
}
