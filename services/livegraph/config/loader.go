// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvRoot        = "LIVEGRAPH_ROOT"
	EnvHost        = "LIVEGRAPH_HOST"
	EnvPort        = "LIVEGRAPH_PORT"
	EnvDebounce    = "LIVEGRAPH_DEBOUNCE"
	EnvOrphanColor = "LIVEGRAPH_ORPHAN_COLOR"
)

// Load builds the configuration.
//
// # Description
//
// Starts from Default, overlays the YAML file at path, loads ./.env into the
// environment without overriding variables already set, applies LIVEGRAPH_*
// overrides, validates, and makes Root absolute.
//
// # Inputs
//
//   - path: Config file. Empty means DefaultFileName if it exists; an
//     explicit path that does not exist is an error.
//
// # Outputs
//
//   - Config: Validated configuration.
//   - error: Wraps ErrInvalidConfig for bad content; file errors otherwise.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve root %q: %w", cfg.Root, err)
	}
	cfg.Root = root
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates it. Root is left as
// written.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvRoot)); v != "" {
		cfg.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(strings.TrimPrefix(v, ":"))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, EnvPort, v)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(EnvDebounce)); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvDebounce, v, err)
		}
		cfg.Debounce = d
	}
	if v := strings.TrimSpace(os.Getenv(EnvOrphanColor)); v != "" {
		cfg.OrphanColor = v
	}
	return nil
}

// parseDuration accepts Go durations ("750ms") and bare milliseconds ("750").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
