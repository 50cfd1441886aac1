// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates livegraph configuration.
//
// Sources, lowest precedence first: built-in defaults, a YAML file, a .env
// file, then LIVEGRAPH_* environment variables.
package config

import (
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "livegraph.yaml"

// Analyzer kinds.
const (
	KindBuiltin = "builtin"
	KindProcess = "process"
)

// Config is the complete service configuration.
type Config struct {
	// Root is the project directory to analyze and watch.
	Root string `yaml:"root" json:"root" validate:"required"`

	// Host is the listen address. Empty listens on all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port" validate:"min=1,max=65535"`

	// Debounce is the quiet period after the last file change.
	Debounce time.Duration `yaml:"debounce" json:"debounce" validate:"min=10ms"`

	// Ignore holds extra gitignore-style exclusions.
	Ignore []string `yaml:"ignore" json:"ignore"`

	// OrphanColor overrides the color of nodes without edges.
	OrphanColor string `yaml:"orphan_color" json:"orphan_color" validate:"omitempty,hexcolor"`

	// Analyzers run on every rebuild, merged in this order.
	Analyzers []AnalyzerConfig `yaml:"analyzers" json:"analyzers" validate:"required,min=1,dive"`

	// MaxConcurrentAnalyzers bounds parallel analyzers; 0 means unbounded.
	MaxConcurrentAnalyzers int `yaml:"max_concurrent_analyzers" json:"max_concurrent_analyzers" validate:"gte=0"`

	// SessionQueueSize bounds each viewer's pending snapshots.
	SessionQueueSize int `yaml:"session_queue_size" json:"session_queue_size" validate:"gte=0,lte=64"`

	RebuildRateLimit RateLimitConfig `yaml:"rebuild_rate_limit" json:"rebuild_rate_limit"`

	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`
}

// AnalyzerConfig declares one analyzer adapter.
type AnalyzerConfig struct {
	// Name identifies the analyzer in logs and metrics.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Kind is "builtin" or "process".
	Kind string `yaml:"kind" json:"kind" validate:"required,oneof=builtin process"`

	// Ecosystem tags every node the analyzer produces.
	Ecosystem string `yaml:"ecosystem" json:"ecosystem" validate:"required,ecosystem"`

	// Command is the executable for process analyzers. It receives the
	// project root as its last argument.
	Command string `yaml:"command,omitempty" json:"command,omitempty" validate:"required_if=Kind process"`

	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Timeout bounds one process run. Zero uses the adapter default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"gte=0"`

	// Extensions are the file extensions the analyzer reads, e.g. ".ts".
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty" validate:"dive,startswith=."`

	// Color overrides the ecosystem's node color.
	Color string `yaml:"color,omitempty" json:"color,omitempty" validate:"omitempty,hexcolor"`

	// Disabled skips the analyzer without removing it from the file.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// RateLimitConfig throttles manual rebuild requests.
type RateLimitConfig struct {
	// PerSecond is the sustained rate; 0 disables throttling.
	PerSecond float64 `yaml:"per_second" json:"per_second" validate:"gte=0"`

	Burst int `yaml:"burst" json:"burst" validate:"gte=0"`
}

// Default returns the built-in configuration: the current directory on port
// 3000 with the TypeScript and Python analyzers.
func Default() Config {
	return Config{
		Root:     ".",
		Port:     3000,
		Debounce: time.Second,
		Analyzers: []AnalyzerConfig{
			{Name: "typescript", Kind: KindBuiltin, Ecosystem: string(graph.EcosystemTypeScript)},
			{Name: "python", Kind: KindBuiltin, Ecosystem: string(graph.EcosystemPython)},
		},
		SessionQueueSize: 4,
		RebuildRateLimit: RateLimitConfig{PerSecond: 1, Burst: 3},
		Telemetry:        telemetry.DefaultConfig(),
	}
}

// Enabled returns the analyzers that are not disabled, in order.
func (c Config) Enabled() []AnalyzerConfig {
	out := make([]AnalyzerConfig, 0, len(c.Analyzers))
	for _, a := range c.Analyzers {
		if !a.Disabled {
			out = append(out, a)
		}
	}
	return out
}

// Palette builds the node palette from the defaults and per-analyzer colors.
func (c Config) Palette() graph.Palette {
	p := graph.DefaultPalette()
	for _, a := range c.Analyzers {
		if a.Color != "" {
			p.Colors[graph.Ecosystem(a.Ecosystem)] = a.Color
		}
	}
	if c.OrphanColor != "" {
		p.Orphan = c.OrphanColor
	}
	return p
}
