// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
root: ./project
host: 127.0.0.1
port: 8080
debounce: 750ms
ignore:
  - "generated/"
orphan_color: "#cccccc"
max_concurrent_analyzers: 2
analyzers:
  - name: ts
    kind: builtin
    ecosystem: typescript
    color: "#123456"
  - name: cargo
    kind: process
    ecosystem: rust
    command: cargo-deps-json
    args: ["--format", "json"]
    timeout: 30s
    extensions: [".rs"]
  - name: py
    kind: builtin
    ecosystem: python
    disabled: true
rebuild_rate_limit:
  per_second: 0.5
  burst: 2
telemetry:
  trace_exporter: stdout
  metric_exporter: none
`

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, time.Second, cfg.Debounce)
	require.Len(t, cfg.Analyzers, 2)
	assert.Equal(t, "typescript", cfg.Analyzers[0].Ecosystem)
	assert.Equal(t, "python", cfg.Analyzers[1].Ecosystem)
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	require.NoError(t, err)

	assert.Equal(t, "./project", cfg.Root)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Debounce)
	assert.Equal(t, []string{"generated/"}, cfg.Ignore)
	assert.Equal(t, 2, cfg.MaxConcurrentAnalyzers)

	require.Len(t, cfg.Analyzers, 3, "file analyzers replace the defaults")
	cargo := cfg.Analyzers[1]
	assert.Equal(t, KindProcess, cargo.Kind)
	assert.Equal(t, "cargo-deps-json", cargo.Command)
	assert.Equal(t, []string{"--format", "json"}, cargo.Args)
	assert.Equal(t, 30*time.Second, cargo.Timeout)
	assert.Equal(t, []string{".rs"}, cargo.Extensions)

	assert.Equal(t, 0.5, cfg.RebuildRateLimit.PerSecond)
	assert.Equal(t, 2, cfg.RebuildRateLimit.Burst)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "none", cfg.Telemetry.MetricExporter)
	assert.Equal(t, "livegraph", cfg.Telemetry.ServiceName, "unset telemetry fields keep defaults")

	enabled := cfg.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "ts", enabled[0].Name)
	assert.Equal(t, "cargo", enabled[1].Name)
}

func TestConfig_Palette(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	require.NoError(t, err)

	p := cfg.Palette()
	assert.Equal(t, "#123456", p.ColorFor(graph.EcosystemTypeScript))
	assert.Equal(t, graph.DefaultPalette().ColorFor(graph.EcosystemPython), p.ColorFor(graph.EcosystemPython))
	assert.Equal(t, graph.DefaultFallbackColor, p.ColorFor("rust"))
	assert.Equal(t, "#cccccc", p.OrphanColor())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "port zero", mutate: func(c *Config) { c.Port = 0 }, want: "port"},
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, want: "port"},
		{name: "empty root", mutate: func(c *Config) { c.Root = "" }, want: "root"},
		{name: "tiny debounce", mutate: func(c *Config) { c.Debounce = time.Millisecond }, want: "debounce"},
		{name: "no analyzers", mutate: func(c *Config) { c.Analyzers = nil }, want: "analyzers"},
		{name: "bad orphan color", mutate: func(c *Config) { c.OrphanColor = "grey" }, want: "orphan_color"},
		{name: "unknown kind", mutate: func(c *Config) { c.Analyzers[0].Kind = "plugin" }, want: "kind"},
		{name: "process without command", mutate: func(c *Config) {
			c.Analyzers[0].Kind = KindProcess
		}, want: "command"},
		{name: "malformed ecosystem", mutate: func(c *Config) { c.Analyzers[0].Ecosystem = "Type Script" }, want: "ecosystem"},
		{name: "builtin without analyzer", mutate: func(c *Config) { c.Analyzers[0].Ecosystem = "rust" }, want: "no builtin analyzer"},
		{name: "extension without dot", mutate: func(c *Config) { c.Analyzers[0].Extensions = []string{"ts"} }, want: "extensions"},
		{name: "duplicate names", mutate: func(c *Config) { c.Analyzers[1].Name = c.Analyzers[0].Name }, want: "duplicate"},
		{name: "all disabled", mutate: func(c *Config) {
			c.Analyzers[0].Disabled = true
			c.Analyzers[1].Disabled = true
		}, want: "disabled"},
		{name: "negative rate", mutate: func(c *Config) { c.RebuildRateLimit.PerSecond = -1 }, want: "per_second"},
		{name: "bad trace exporter", mutate: func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }, want: "trace_exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("port: [not a number"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)

	wantRoot, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, wantRoot, cfg.Root)
	assert.Equal(t, 3000, cfg.Port)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoad_FileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(DefaultFileName, []byte("port: 9000\nroot: sub\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, filepath.Join(dir, "sub"), cfg.Root)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	root := t.TempDir()
	t.Setenv(EnvRoot, root)
	t.Setenv(EnvPort, ":8081")
	t.Setenv(EnvDebounce, "250")
	t.Setenv(EnvHost, "localhost")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "localhost", cfg.Host)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("port", func(t *testing.T) {
		t.Setenv(EnvPort, "eighty")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
	t.Run("debounce", func(t *testing.T) {
		t.Setenv(EnvDebounce, "soon")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("LIVEGRAPH_PORT=4000\n"), 0o644))

	// Registers cleanup that restores the variable to its prior state.
	t.Setenv(EnvPort, "")
	require.NoError(t, os.Unsetenv(EnvPort))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("1500")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = parseDuration("2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = parseDuration("later")
	assert.Error(t, err)
}
