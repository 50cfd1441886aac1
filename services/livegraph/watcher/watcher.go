// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher turns filesystem activity under a project root into
// debounced rebuild triggers.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/ignore"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a trigger fires.
const DefaultDebounce = time.Second

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch recursively.
	Root string

	// Extensions limits qualifying file events, e.g. ".ts". Empty means all.
	Extensions []string

	// Debounce is the quiet period after the last qualifying event.
	// Default: DefaultDebounce.
	Debounce time.Duration

	// IgnorePatterns are extra gitignore-style exclusions.
	IgnorePatterns []string

	Logger *slog.Logger
}

// Watcher watches a project tree and fires a trigger after activity settles.
//
// # Description
//
// Every qualifying event resets a single debounce timer; the trigger fires
// once, on the trailing edge, when the timer expires. Events carry no
// payload to the trigger. Directories created after Start are watched as
// they appear. Excluded directories are never watched.
//
// # Thread Safety
//
// Safe for concurrent use. The trigger is called from a single goroutine.
type Watcher struct {
	root     string
	exts     map[string]struct{}
	matcher  *ignore.Matcher
	debounce time.Duration
	trigger  func()
	logger   *slog.Logger

	fsw *fsnotify.Watcher

	// dirs is the set of watched directories. Written by Start before the
	// event goroutine exists, then only by that goroutine.
	dirs map[string]struct{}

	// pulse carries "something changed" to the debounce loop.
	pulse    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	watching bool
	stopped  bool
}

// CheckRoot returns the absolute form of root after confirming it is an
// existing directory.
func CheckRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
		}
		return "", fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotDir, abs)
	}
	return abs, nil
}

// New validates the root and creates a Watcher. Call Start to begin.
//
// # Inputs
//
//   - cfg: Watch configuration. cfg.Root must be an existing directory.
//   - trigger: Called once per settled burst of changes.
//
// # Outputs
//
//   - *Watcher: Ready for Start.
//   - error: ErrRootNotFound, ErrRootNotDir, ErrNilTrigger, or an fsnotify
//     initialization error.
func New(cfg Config, trigger func()) (*Watcher, error) {
	if trigger == nil {
		return nil, ErrNilTrigger
	}

	root, err := CheckRoot(cfg.Root)
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	return &Watcher{
		root:     root,
		exts:     exts,
		matcher:  ignore.New(root, cfg.IgnorePatterns),
		dirs:     make(map[string]struct{}),
		debounce: cfg.Debounce,
		trigger:  trigger,
		logger:   cfg.Logger.With(slog.String("component", "watcher")),
		fsw:      fsw,
		pulse:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the tree and begins delivering triggers.
//
// # Description
//
// Registers the root and every non-excluded subdirectory, then spawns the
// event processor and the debounce loop. Both exit on Stop or when ctx ends.
// Calling Start again while watching is a no-op.
//
// # Outputs
//
//   - error: ErrWatcherClosed after Stop, or the error registering the root.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWatcherClosed
	}
	if w.watching {
		return nil
	}

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.watching = true
	dirs := len(w.dirs)

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching project", slog.String("root", w.root), slog.Int("dirs", dirs))
	return nil
}

// Stop ends watching. A pending trigger is discarded. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.watching = false
		w.mu.Unlock()

		close(w.done)
		_ = w.fsw.Close()
		w.wg.Wait()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// addRecursive registers dir and its non-excluded subdirectories. Only a
// failure on dir itself is returned.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.matcher.SkipDir(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("skipping unwatchable directory", slog.String("path", path), slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		w.dirs[path] = struct{}{}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// processEvents filters fsnotify events and pulses the debounce loop.
func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.qualifies(event) {
				continue
			}
			recordEvent(ctx, opName(event.Op))
			select {
			case w.pulse <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			recordWatchError(ctx)
			w.logger.Warn("filesystem watch error", slog.String("error", err.Error()))
		}
	}
}

// qualifies reports whether event should reset the debounce timer. New
// directories are registered here as a side effect.
func (w *Watcher) qualifies(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel := w.rel(event.Name)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.matcher.SkipDir(rel) {
				return false
			}
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Debug("failed to watch new directory", slog.String("path", event.Name), slog.String("error", err.Error()))
			}
			return w.containsSources(event.Name)
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if w.wasWatched(event.Name) {
			w.forget(event.Name)
			return !w.matcher.SkipDir(rel)
		}
	}

	if len(w.exts) > 0 {
		if _, ok := w.exts[strings.ToLower(filepath.Ext(event.Name))]; !ok {
			return false
		}
	}
	return !w.matcher.SkipFile(rel)
}

var errFound = errors.New("found")

// containsSources reports whether a freshly created directory already holds
// qualifying files, as when a tree is moved into the project.
func (w *Watcher) containsSources(dir string) bool {
	if len(w.exts) == 0 {
		return true
	}
	exts := make([]string, 0, len(w.exts))
	for e := range w.exts {
		exts = append(exts, e)
	}
	found := false
	_ = w.matcher.Walk(context.Background(), dir, exts, func(rel string) error {
		if w.matcher.SkipFile(w.rel(filepath.Join(dir, filepath.FromSlash(rel)))) {
			return nil
		}
		found = true
		return errFound
	})
	return found
}

func (w *Watcher) wasWatched(path string) bool {
	_, ok := w.dirs[path]
	return ok
}

// forget drops a removed directory and everything below it. fsnotify has
// already released the watches.
func (w *Watcher) forget(dir string) {
	prefix := dir + string(filepath.Separator)
	for p := range w.dirs {
		if p == dir || strings.HasPrefix(p, prefix) {
			delete(w.dirs, p)
		}
	}
}

// debounceLoop owns the timer and fires the trigger on the trailing edge.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.done:
			stop()
			return
		case <-w.pulse:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			recordTrigger(ctx)
			w.logger.Debug("changes settled, triggering rebuild")
			w.trigger()
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}
