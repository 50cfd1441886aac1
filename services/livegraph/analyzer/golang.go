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
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/ignore"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/mod/modfile"
)

// GoExtensions is the default extension set for the Go adapter.
var GoExtensions = []string{".go"}

var golangLang = golang.GetLanguage()

// GoAdapter builds a package-level import graph for one Go module.
//
// # Description
//
// Go imports name packages, not files, so module ids are package import
// paths ("example.com/app/internal/store"). The module path is read from the
// root go.mod with golang.org/x/mod/modfile; only imports inside that module
// become edges. _test.go files, testdata directories and nested modules
// (subdirectories with their own go.mod) are left out. Without a root go.mod
// the result is empty.
//
// Because ids are packages, a Go node's label is the last import path
// element ("store"), not a file basename, and its title is the full path.
//
// # Thread Safety
//
// Safe for concurrent use.
type GoAdapter struct {
	opts Options
}

// NewGoAdapter returns a GoAdapter.
func NewGoAdapter(opts Options) *GoAdapter {
	return &GoAdapter{opts: opts.withDefaults(graph.EcosystemGo, GoExtensions)}
}

// Name implements Adapter.
func (a *GoAdapter) Name() string { return a.opts.Name }

// Ecosystem implements Adapter.
func (a *GoAdapter) Ecosystem() graph.Ecosystem { return graph.EcosystemGo }

// Extensions implements Adapter. go.mod is included so that a module
// rename triggers a rebuild.
func (a *GoAdapter) Extensions() []string {
	return append(append([]string{}, a.opts.Extensions...), ".mod")
}

// Analyze implements Adapter.
func (a *GoAdapter) Analyze(ctx context.Context, root string) graph.Result {
	return failEmpty(ctx, a.opts.Logger, a.opts.Name, graph.EcosystemGo, root, a.analyze)
}

func (a *GoAdapter) analyze(ctx context.Context, root string) (graph.Result, error) {
	modPath, err := ReadModulePath(root)
	if err != nil {
		return nil, err
	}

	patterns := append(append([]string{}, a.opts.IgnorePatterns...), "*_test.go", "testdata/")
	matcher := ignore.New(root, patterns)

	files, err := treeSitterScan(ctx, a.opts.Logger, graph.EcosystemGo, matcher, root, a.opts.Extensions,
		func(string) *sitter.Language { return golangLang },
		func(f sourceFile) []graph.ModuleID {
			var deps []graph.ModuleID
			for _, imp := range goImports(f.root, f.content) {
				if imp == modPath || strings.HasPrefix(imp, modPath+"/") {
					deps = append(deps, imp)
				}
			}
			return deps
		})
	if err != nil {
		return nil, err
	}

	return foldPackages(root, modPath, files), nil
}

// ReadModulePath returns the module path declared in root/go.mod.
func ReadModulePath(root string) (string, error) {
	gomod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomod)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoGoModule
		}
		return "", fmt.Errorf("read go.mod: %w", err)
	}

	f, err := modfile.ParseLax(gomod, data, nil)
	if err != nil {
		return "", fmt.Errorf("parse go.mod: %w", err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("%w: missing module directive", ErrNoGoModule)
	}
	return f.Module.Mod.Path, nil
}

// goImports returns the import paths of a Go file in source order.
func goImports(root *sitter.Node, content []byte) []string {
	var paths []string
	walkNodes(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "source_file", "import_declaration", "import_spec_list":
			return true
		case "import_spec":
			if p := n.ChildByFieldName("path"); p != nil {
				paths = append(paths, unquote(p.Content(content)))
			}
		}
		return false
	})
	return paths
}

// foldPackages merges per-file imports into per-package imports.
func foldPackages(root, modPath string, files graph.Result) graph.Result {
	names := make([]string, 0, len(files))
	for f := range files {
		names = append(names, f)
	}
	sort.Strings(names)

	nested := make(map[string]bool)
	pkgs := make(graph.Result)
	seen := make(map[graph.ModuleID]map[graph.ModuleID]struct{})

	for _, file := range names {
		dir := path.Dir(file)
		if inNestedModule(root, dir, nested) {
			continue
		}

		pkg := modPath
		if dir != "." {
			pkg = modPath + "/" + dir
		}
		if _, ok := pkgs[pkg]; !ok {
			pkgs[pkg] = []graph.ModuleID{}
			seen[pkg] = make(map[graph.ModuleID]struct{})
		}
		for _, dep := range files[file] {
			pkgs[pkg] = appendUnique(pkgs[pkg], seen[pkg], dep)
		}
	}
	return pkgs
}

// inNestedModule reports whether dir or any ancestor below root has its own
// go.mod. Results are memoized in cache.
func inNestedModule(root, dir string, cache map[string]bool) bool {
	if dir == "." || dir == "" {
		return false
	}
	if v, ok := cache[dir]; ok {
		return v
	}
	v := existsFile(root, dir+"/go.mod") || inNestedModule(root, path.Dir(dir), cache)
	cache[dir] = v
	return v
}
