// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package livegraph

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/livegraph/services/livegraph/analyzer"
	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/AleutianAI/livegraph/services/livegraph/graph"
)

// BuildAdapters instantiates the enabled analyzers in configuration order.
//
// Description:
//
//	Builtin entries map to the in-process tree-sitter adapters; process
//	entries run an external command. Project-wide ignore patterns are passed
//	to every builtin adapter.
//
// Outputs:
//
//	[]analyzer.Adapter - One per enabled entry, never empty on success.
//	error - ErrUnknownBuiltin or ErrNoEnabledAnalyzers.
func BuildAdapters(cfg config.Config, logger *slog.Logger) ([]analyzer.Adapter, error) {
	enabled := cfg.Enabled()
	if len(enabled) == 0 {
		return nil, ErrNoEnabledAnalyzers
	}

	adapters := make([]analyzer.Adapter, 0, len(enabled))
	for _, a := range enabled {
		eco := graph.Ecosystem(a.Ecosystem)

		if a.Kind == config.KindProcess {
			adapters = append(adapters, analyzer.NewProcessAdapter(analyzer.ProcessConfig{
				Name:       a.Name,
				Ecosystem:  eco,
				Command:    a.Command,
				Args:       a.Args,
				Extensions: a.Extensions,
				Timeout:    a.Timeout,
				Logger:     logger,
			}))
			continue
		}

		opts := analyzer.Options{
			Name:           a.Name,
			Extensions:     a.Extensions,
			IgnorePatterns: cfg.Ignore,
			Logger:         logger,
		}
		switch eco {
		case graph.EcosystemTypeScript:
			adapters = append(adapters, analyzer.NewTypeScriptAdapter(opts))
		case graph.EcosystemJavaScript:
			adapters = append(adapters, analyzer.NewJavaScriptAdapter(opts))
		case graph.EcosystemPython:
			adapters = append(adapters, analyzer.NewPythonAdapter(opts))
		case graph.EcosystemGo:
			adapters = append(adapters, analyzer.NewGoAdapter(opts))
		default:
			return nil, fmt.Errorf("analyzer %q: %w %q", a.Name, ErrUnknownBuiltin, a.Ecosystem)
		}
	}
	return adapters, nil
}
