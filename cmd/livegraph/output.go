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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorTeal  = lipgloss.Color("#20B9B4")
	colorSlate = lipgloss.Color("#2C4A54")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	mutedStyle = lipgloss.NewStyle().Foreground(colorSlate)
)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorTeal).
	Padding(0, 1)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger returns a text logger for terminals and a JSON logger otherwise.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// printBanner shows the viewer URL. Skipped when w is not a terminal.
func printBanner(w io.Writer, cfg config.Config) {
	if !isTerminal(w) {
		return
	}
	fmt.Fprintln(w, renderBanner(cfg))
}

func renderBanner(cfg config.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	names := make([]string, 0, len(cfg.Analyzers))
	for _, a := range cfg.Enabled() {
		names = append(names, a.Name)
	}
	body := titleStyle.Render("livegraph") + "\n" +
		"viewer    http://" + host + ":" + strconv.Itoa(cfg.Port) + "/\n" +
		"root      " + cfg.Root + "\n" +
		"analyzers " + strings.Join(names, ", ") + "\n" +
		mutedStyle.Render("Ctrl+C to stop")
	return boxStyle.Render(body)
}
