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
	"log/slog"
	"path"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/ignore"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Default extension sets for the script adapters.
var (
	TypeScriptExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}
	JavaScriptExtensions = []string{".js", ".jsx", ".mjs", ".cjs"}
)

// scriptResolveExts is the probe order for extensionless relative specifiers.
var scriptResolveExts = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs"}

// ESM-style TypeScript imports name the emitted file ("./x.js") rather than
// the source; these are the source extensions to try instead.
var emittedToSource = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

var (
	typescriptLang = typescript.GetLanguage()
	tsxLang        = tsx.GetLanguage()
	javascriptLang = javascript.GetLanguage()
)

// Options configures a built-in adapter.
type Options struct {
	// Name identifies the adapter. Defaults to the ecosystem tag.
	Name string

	// Extensions overrides the adapter's default extension set.
	Extensions []string

	// IgnorePatterns are extra gitignore-style exclusions.
	IgnorePatterns []string

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults(eco graph.Ecosystem, exts []string) Options {
	if o.Name == "" {
		o.Name = eco.String()
	}
	if len(o.Extensions) == 0 {
		o.Extensions = exts
	}
	return o
}

// ScriptAdapter extracts module imports from TypeScript and JavaScript.
//
// # Description
//
// Recognized forms:
//
//	import x from "./a"          export { y } from "./b"
//	import "./side-effect"       export * from "./c"
//	import z = require("./d")    const w = require("./e")
//	const m = await import("./f")
//
// Only relative specifiers are kept. A specifier resolves to the first
// existing file among: the exact path; the path with each of
// .ts .tsx .d.ts .js .jsx .mjs .cjs appended; index.<ext> inside the path
// as a directory. Bare package specifiers ("react") are dropped.
//
// # Thread Safety
//
// Safe for concurrent use; parsers are created per Analyze call.
type ScriptAdapter struct {
	eco  graph.Ecosystem
	opts Options
}

// NewTypeScriptAdapter returns a ScriptAdapter tagging nodes "typescript"
// and reading both TypeScript and JavaScript sources.
func NewTypeScriptAdapter(opts Options) *ScriptAdapter {
	return &ScriptAdapter{
		eco:  graph.EcosystemTypeScript,
		opts: opts.withDefaults(graph.EcosystemTypeScript, TypeScriptExtensions),
	}
}

// NewJavaScriptAdapter returns a ScriptAdapter tagging nodes "javascript"
// and reading only JavaScript sources.
func NewJavaScriptAdapter(opts Options) *ScriptAdapter {
	return &ScriptAdapter{
		eco:  graph.EcosystemJavaScript,
		opts: opts.withDefaults(graph.EcosystemJavaScript, JavaScriptExtensions),
	}
}

// Name implements Adapter.
func (a *ScriptAdapter) Name() string { return a.opts.Name }

// Ecosystem implements Adapter.
func (a *ScriptAdapter) Ecosystem() graph.Ecosystem { return a.eco }

// Extensions implements Adapter.
func (a *ScriptAdapter) Extensions() []string { return a.opts.Extensions }

// Analyze implements Adapter.
func (a *ScriptAdapter) Analyze(ctx context.Context, root string) graph.Result {
	return failEmpty(ctx, a.opts.Logger, a.opts.Name, a.eco, root, func(ctx context.Context, root string) (graph.Result, error) {
		matcher := ignore.New(root, a.opts.IgnorePatterns)
		return treeSitterScan(ctx, a.opts.Logger, a.eco, matcher, root, a.opts.Extensions, scriptLanguage,
			func(f sourceFile) []graph.ModuleID {
				var deps []graph.ModuleID
				for _, spec := range scriptSpecifiers(f.root, f.content) {
					if dep, ok := resolveScript(root, f.rel, spec); ok {
						deps = append(deps, dep)
					}
				}
				return deps
			})
	})
}

func scriptLanguage(ext string) *sitter.Language {
	switch ext {
	case ".ts", ".mts", ".cts":
		return typescriptLang
	case ".tsx":
		return tsxLang
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascriptLang
	default:
		return nil
	}
}

// scriptSpecifiers returns every module specifier in source order.
func scriptSpecifiers(root *sitter.Node, content []byte) []string {
	var specs []string
	walkNodes(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement", "export_statement", "import_require_clause":
			src := n.ChildByFieldName("source")
			if src == nil && n.Type() != "export_statement" {
				src = firstNamedOfType(n, "string")
			}
			if s, ok := stringLiteral(src, content); ok {
				specs = append(specs, s)
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			isRequire := fn.Type() == "identifier" && fn.Content(content) == "require"
			if !isRequire && fn.Type() != "import" {
				return true
			}
			args := n.ChildByFieldName("arguments")
			if args == nil || args.NamedChildCount() == 0 {
				return true
			}
			if s, ok := stringLiteral(args.NamedChild(0), content); ok {
				specs = append(specs, s)
			}
		}
		return true
	})
	return specs
}

func firstNamedOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// stringLiteral returns the value of a plain string or substitution-free
// template literal.
func stringLiteral(n *sitter.Node, content []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		return unquote(n.Content(content)), true
	case "template_string":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if n.NamedChild(i).Type() == "template_substitution" {
				return "", false
			}
		}
		return unquote(n.Content(content)), true
	default:
		return "", false
	}
}

// resolveScript maps a relative specifier in importer to an existing file
// under root.
func resolveScript(root, importer, spec string) (graph.ModuleID, bool) {
	if !isRelativeSpecifier(spec) {
		return "", false
	}
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		spec = spec[:i]
	}

	target := path.Clean(path.Join(path.Dir(importer), spec))
	if !insideRoot(target) {
		return "", false
	}
	if target == "." {
		return resolveIndex(root, "")
	}

	if existsFile(root, target) {
		return target, true
	}

	ext := path.Ext(target)
	if alts, ok := emittedToSource[ext]; ok {
		stem := strings.TrimSuffix(target, ext)
		for _, alt := range alts {
			if existsFile(root, stem+alt) {
				return stem + alt, true
			}
		}
	}

	for _, e := range scriptResolveExts {
		if existsFile(root, target+e) {
			return target + e, true
		}
	}

	if existsDir(root, target) {
		return resolveIndex(root, target+"/")
	}
	return "", false
}

func resolveIndex(root, dir string) (graph.ModuleID, bool) {
	for _, e := range scriptResolveExts {
		if idx := dir + "index" + e; existsFile(root, idx) {
			return idx, true
		}
	}
	return "", false
}

func isRelativeSpecifier(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}
