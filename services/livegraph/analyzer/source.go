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
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/AleutianAI/livegraph/services/livegraph/ignore"
	sitter "github.com/smacker/go-tree-sitter"
)

// MaxSourceFileSize is the largest source file the built-in adapters parse.
// Larger files are listed with no dependencies.
const MaxSourceFileSize = 2 << 20

// sourceFile is one parsed file handed to an import extractor.
type sourceFile struct {
	rel     string
	content []byte
	root    *sitter.Node
}

// extractFunc returns the resolved dependencies of one parsed file, in
// source order. Duplicates are removed by the caller.
type extractFunc func(f sourceFile) []graph.ModuleID

// languageFor picks the grammar for a file extension.
type languageFor func(ext string) *sitter.Language

// treeSitterScan walks root with the shared exclusion rules, parses every
// file with a matching extension and collects extractor output per file.
//
// Every visited file becomes a key, even when it cannot be read or parsed.
// Parse failures on individual files are logged at debug level and counted;
// they never fail the scan. Cancellation stops the walk and is returned.
func treeSitterScan(
	ctx context.Context,
	logger *slog.Logger,
	eco graph.Ecosystem,
	matcher *ignore.Matcher,
	root string,
	exts []string,
	lang languageFor,
	extract extractFunc,
) (graph.Result, error) {
	parsers := make(map[*sitter.Language]*sitter.Parser)
	defer func() {
		for _, p := range parsers {
			p.Close()
		}
	}()

	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = ignore.New(root, nil)
	}

	result := make(graph.Result)
	err := matcher.Walk(ctx, root, exts, func(rel string) error {
		result[rel] = []graph.ModuleID{}

		content, err := readSource(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			recordFileSkipped(ctx, eco)
			logger.Debug("skipping unreadable source",
				slog.String("file", rel),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if content == nil {
			return nil
		}

		language := lang(strings.ToLower(path.Ext(rel)))
		if language == nil {
			return nil
		}
		parser, ok := parsers[language]
		if !ok {
			parser = sitter.NewParser()
			parser.SetLanguage(language)
			parsers[language] = parser
		}

		tree, err := parser.ParseCtx(ctx, nil, content)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			recordFileSkipped(ctx, eco)
			logger.Debug("skipping unparsable source",
				slog.String("file", rel),
				slog.String("error", err.Error()),
			)
			return nil
		}
		defer tree.Close()

		deps := extract(sourceFile{rel: rel, content: content, root: tree.RootNode()})
		seen := make(map[graph.ModuleID]struct{}, len(deps))
		clean := make([]graph.ModuleID, 0, len(deps))
		for _, d := range deps {
			clean = appendUnique(clean, seen, d)
		}
		result[rel] = clean
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readSource returns the file content, or nil for files over the size cap.
func readSource(abs string) ([]byte, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxSourceFileSize {
		return nil, nil
	}
	return os.ReadFile(abs)
}

// walkNodes visits n and all its descendants depth-first in source order.
func walkNodes(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walkNodes(n.Child(i), visit)
	}
}

// unquote strips one pair of matching quotes from a string literal.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// existsFile reports whether rel (forward-slash, relative to root) is a
// regular file.
func existsFile(root, rel string) bool {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil && info.Mode().IsRegular()
}

// existsDir reports whether rel (forward-slash, relative to root) is a
// directory.
func existsDir(root, rel string) bool {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil && info.IsDir()
}

// insideRoot reports whether a cleaned relative path stays within root.
func insideRoot(rel string) bool {
	return rel != ".." && !strings.HasPrefix(rel, "../") && !path.IsAbs(rel)
}
