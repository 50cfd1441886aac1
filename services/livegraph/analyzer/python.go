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
	"path"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/ignore"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtensions is the default extension set for the Python adapter.
var PythonExtensions = []string{".py"}

var pythonLang = python.GetLanguage()

// pyImport is one import statement before resolution.
type pyImport struct {
	// level is the number of leading dots; 0 for absolute imports.
	level int

	// module is the dotted module name; empty for "from . import x".
	module string

	// names are the imported names of a from-import, without aliases.
	names []string
}

// PythonAdapter extracts module imports from Python sources.
//
// # Description
//
// Handles `import a.b`, `from a.b import c`, and relative forms
// `from . import c`, `from ..pkg import d`. Resolution, in order:
//
//   - absolute `a.b`: a/b.py then a/b/__init__.py under the root, then the
//     same two relative to the importing file's directory;
//   - `from a.b import c` additionally tries the submodule a/b/c;
//   - relative imports start from the importing file's package, going up
//     one directory per extra dot.
//
// Imports that do not resolve to a file under the root (standard library,
// third-party packages) are dropped.
//
// # Thread Safety
//
// Safe for concurrent use.
type PythonAdapter struct {
	opts Options
}

// NewPythonAdapter returns a PythonAdapter.
func NewPythonAdapter(opts Options) *PythonAdapter {
	return &PythonAdapter{opts: opts.withDefaults(graph.EcosystemPython, PythonExtensions)}
}

// Name implements Adapter.
func (a *PythonAdapter) Name() string { return a.opts.Name }

// Ecosystem implements Adapter.
func (a *PythonAdapter) Ecosystem() graph.Ecosystem { return graph.EcosystemPython }

// Extensions implements Adapter.
func (a *PythonAdapter) Extensions() []string { return a.opts.Extensions }

// Analyze implements Adapter.
func (a *PythonAdapter) Analyze(ctx context.Context, root string) graph.Result {
	return failEmpty(ctx, a.opts.Logger, a.opts.Name, graph.EcosystemPython, root, func(ctx context.Context, root string) (graph.Result, error) {
		matcher := ignore.New(root, a.opts.IgnorePatterns)
		return treeSitterScan(ctx, a.opts.Logger, graph.EcosystemPython, matcher, root, a.opts.Extensions,
			func(string) *sitter.Language { return pythonLang },
			func(f sourceFile) []graph.ModuleID {
				var deps []graph.ModuleID
				for _, imp := range pythonImports(f.root, f.content) {
					deps = append(deps, resolvePython(root, f.rel, imp)...)
				}
				return deps
			})
	})
}

// pythonImports returns the import statements of a module in source order.
func pythonImports(root *sitter.Node, content []byte) []pyImport {
	var imports []pyImport
	walkNodes(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if name := importedName(n.NamedChild(i), content); name != "" {
					imports = append(imports, pyImport{module: name})
				}
			}
			return false

		case "import_from_statement":
			imp := pyImport{}
			mod := n.ChildByFieldName("module_name")
			if mod != nil {
				switch mod.Type() {
				case "dotted_name":
					imp.module = mod.Content(content)
				case "relative_import":
					imp.level, imp.module = relativeImport(mod, content)
				}
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if mod != nil && child.StartByte() == mod.StartByte() {
					continue
				}
				if name := importedName(child, content); name != "" {
					imp.names = append(imp.names, name)
				}
			}
			imports = append(imports, imp)
			return false
		}
		return true
	})
	return imports
}

// importedName returns the dotted name of a dotted_name or aliased_import.
func importedName(n *sitter.Node, content []byte) string {
	switch n.Type() {
	case "dotted_name":
		return n.Content(content)
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(content)
		}
	}
	return ""
}

// relativeImport splits a relative_import node into dot count and module.
func relativeImport(n *sitter.Node, content []byte) (int, string) {
	level, module := 0, ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(child.Content(content), ".")
		case "dotted_name":
			module = child.Content(content)
		}
	}
	return level, module
}

// resolvePython maps one import statement of importer to files under root.
func resolvePython(root, importer string, imp pyImport) []graph.ModuleID {
	var deps []graph.ModuleID
	modPath := strings.ReplaceAll(imp.module, ".", "/")

	if imp.level == 0 {
		if imp.module == "" {
			return nil
		}
		bases := []string{".", path.Dir(importer)}
		for _, base := range bases {
			if dep, ok := resolvePyPath(root, path.Join(base, modPath)); ok {
				deps = append(deps, dep)
				break
			}
		}
		for _, name := range imp.names {
			for _, base := range bases {
				if dep, ok := resolvePyPath(root, path.Join(base, modPath, name)); ok {
					deps = append(deps, dep)
					break
				}
			}
		}
		return deps
	}

	base := path.Clean(path.Join(path.Dir(importer), strings.Repeat("../", imp.level-1)))
	if !insideRoot(base) {
		return nil
	}

	pkg := base
	if modPath != "" {
		pkg = path.Join(base, modPath)
		if dep, ok := resolvePyPath(root, pkg); ok {
			deps = append(deps, dep)
		}
	}
	for _, name := range imp.names {
		if dep, ok := resolvePyPath(root, path.Join(pkg, name)); ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// resolvePyPath tries rel.py then rel/__init__.py.
func resolvePyPath(root, rel string) (graph.ModuleID, bool) {
	rel = path.Clean(rel)
	if !insideRoot(rel) || rel == "." {
		return "", false
	}
	if existsFile(root, rel+".py") {
		return rel + ".py", true
	}
	if init := rel + "/__init__.py"; existsFile(root, init) {
		return init, true
	}
	return "", false
}
