// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	root := t.TempDir()

	cfg, err := loadConfig(&cliFlags{root: root, port: 8181})
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, 8181, cfg.Port)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	_, err := loadConfig(&cliFlags{root: t.TempDir(), port: 70000})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSnapshotCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte(`import "./b";`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.ts"), []byte(``), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"snapshot", "--root", root})
	require.NoError(t, cmd.Execute())

	var snap graph.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Len(t, snap.Nodes, 2)
	assert.Equal(t, []graph.Edge{{From: "a.ts", To: "b.ts"}}, snap.Edges)
}

func TestSnapshotCommand_MissingRoot(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"snapshot", "--root", filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, cmd.Execute())
}

func TestRenderBanner(t *testing.T) {
	cfg := config.Default()
	cfg.Root = "/srv/app"
	cfg.Port = 4000

	banner := renderBanner(cfg)
	assert.Contains(t, banner, "http://localhost:4000/")
	assert.Contains(t, banner, "/srv/app")
	assert.True(t, strings.Contains(banner, "typescript, python"))
}

func TestNewLogger_NonTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, false).Info("hello")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))

	buf.Reset()
	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())
}
