// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ignore decides which paths under a project root are excluded from
// analysis and watching.
//
// Exclusion is the union of a fixed set of build, dependency and
// version-control directory names, any extra patterns from configuration, and
// the project's root .gitignore.
package ignore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultDirs are directory names that are never analyzed or watched.
var DefaultDirs = []string{
	".git",
	".hg",
	".svn",
	".idea",
	".vscode",
	"node_modules",
	".venv",
	"venv",
	"__pycache__",
	".mypy_cache",
	".pytest_cache",
	".tox",
	"dist",
	"build",
	"vendor",
	"coverage",
}

// Matcher reports whether project-relative paths are excluded.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type Matcher struct {
	dirs map[string]struct{}
	git  *gitignore.GitIgnore
}

// New builds a Matcher for root.
//
// # Inputs
//
//   - root: Absolute project root. Its .gitignore is honored when present.
//   - extra: Additional gitignore-style patterns from configuration.
//
// # Outputs
//
//   - *Matcher: Never nil. An unreadable .gitignore is skipped, not fatal.
func New(root string, extra []string) *Matcher {
	m := &Matcher{dirs: make(map[string]struct{}, len(DefaultDirs))}
	for _, d := range DefaultDirs {
		m.dirs[d] = struct{}{}
	}

	gitignorePath := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		if gi, err := gitignore.CompileIgnoreFileAndLines(gitignorePath, extra...); err == nil {
			m.git = gi
			return m
		}
	}
	if len(extra) > 0 {
		m.git = gitignore.CompileIgnoreLines(extra...)
	}
	return m
}

// SkipDir reports whether the directory at rel (relative to root) should be pruned.
func (m *Matcher) SkipDir(rel string) bool {
	rel = normalize(rel)
	if rel == "" || rel == "." {
		return false
	}
	if _, ok := m.dirs[filepath.Base(rel)]; ok {
		return true
	}
	return m.git != nil && (m.git.MatchesPath(rel) || m.git.MatchesPath(rel+"/"))
}

// SkipFile reports whether the file at rel (relative to root) is excluded.
func (m *Matcher) SkipFile(rel string) bool {
	rel = normalize(rel)
	for _, part := range strings.Split(rel, "/") {
		if _, ok := m.dirs[part]; ok {
			return true
		}
	}
	return m.git != nil && m.git.MatchesPath(rel)
}

// Walk visits every non-excluded regular file under root whose extension is
// in exts, calling fn with the forward-slash path relative to root.
//
// Unreadable subdirectories are skipped. Walk stops early when ctx is done or
// fn returns an error.
func (m *Matcher) Walk(ctx context.Context, root string, exts []string, fn func(rel string) error) error {
	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = struct{}{}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if path != root && m.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		if m.SkipFile(rel) {
			return nil
		}
		return fn(filepath.ToSlash(rel))
	})
}

// IsSkipWalk reports whether err ended a Walk early because of ctx.
func IsSkipWalk(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func normalize(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimPrefix(rel, "./")
}
