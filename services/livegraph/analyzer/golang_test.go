// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoAdapter_Analyze(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"go.mod": "module example.com/app\n\ngo 1.22\n",
		"main.go": `package main

import (
	"fmt"

	api "example.com/app/api"
	"example.com/app/internal/store"
)

func main() { fmt.Println(api.Version, store.Open()) }
`,
		"api/api.go": `package api

const Version = "1"
`,
		"internal/store/store.go": `package store

import "example.com/app/internal/db"

func Open() any { return db.Conn{} }
`,
		"internal/store/cache.go": `package store

import (
	"example.com/app/internal/db"
	"example.com/app/api"
)

var _ = db.Conn{}
var _ = api.Version
`,
		"internal/db/db.go": `package db

type Conn struct{}
`,
		"internal/store/store_test.go": `package store

import "example.com/app/main"
`,
		"internal/db/testdata/fixture.go": `package fixture

import "example.com/app/api"
`,
		"tools/go.mod": "module example.com/app/tools\n",
		"tools/gen.go": `package tools

import "example.com/app/api"
`,
	})

	got := NewGoAdapter(Options{}).Analyze(context.Background(), root)

	assert.Equal(t, graph.Result{
		"example.com/app":                {"example.com/app/api", "example.com/app/internal/store"},
		"example.com/app/api":            {},
		"example.com/app/internal/db":    {},
		"example.com/app/internal/store": {"example.com/app/internal/db", "example.com/app/api"},
	}, got)
}

func TestGoAdapter_NoGoModFailsEmpty(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"main.go": "package main\n"})

	got := NewGoAdapter(Options{}).Analyze(context.Background(), root)

	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGoAdapter_Extensions(t *testing.T) {
	assert.Equal(t, []string{".go", ".mod"}, NewGoAdapter(Options{}).Extensions())
}

func TestReadModulePath(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"go.mod": "module github.com/acme/widget\n\ngo 1.22\n\nrequire golang.org/x/mod v0.31.0\n"})

		got, err := ReadModulePath(root)
		require.NoError(t, err)
		assert.Equal(t, "github.com/acme/widget", got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadModulePath(t.TempDir())
		assert.True(t, errors.Is(err, ErrNoGoModule))
	})

	t.Run("no module directive", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"go.mod": "go 1.22\n"})

		_, err := ReadModulePath(root)
		assert.True(t, errors.Is(err, ErrNoGoModule))
	})
}
