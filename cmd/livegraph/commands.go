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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AleutianAI/livegraph/services/livegraph"
	"github.com/AleutianAI/livegraph/services/livegraph/config"
	"github.com/AleutianAI/livegraph/services/livegraph/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// cliFlags holds the persistent flags shared by every command.
type cliFlags struct {
	configPath string
	root       string
	port       int
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch the project and serve the live graph viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Analyze the project once and print the graph as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	rootCmd := &cobra.Command{
		Use:           "livegraph",
		Short:         "Live import graph of a source tree",
		Long:          "livegraph watches a project directory and streams its module import graph to a browser viewer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       livegraph.ServiceVersion,
		RunE:          serveCmd.RunE,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to the config file (default ./"+config.DefaultFileName+")")
	pf.StringVarP(&flags.root, "root", "r", "", "Project root to analyze (overrides config)")
	pf.IntVarP(&flags.port, "port", "p", 0, "HTTP port (overrides config)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, snapshotCmd)
	return rootCmd
}

// loadConfig reads the layered configuration and applies flag overrides.
func loadConfig(flags *cliFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.root != "" {
		abs, err := filepath.Abs(flags.root)
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve root: %w", err)
		}
		cfg.Root = abs
	}
	if flags.port != 0 {
		cfg.Port = flags.port
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, flags *cliFlags) error {
	logger := newLogger(os.Stderr, flags.debug)
	slog.SetDefault(logger)

	cfg, err := loadConfig(flags)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	if flags.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry init failed", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	svc, err := livegraph.NewService(cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		return err
	}

	printBanner(os.Stderr, cfg)

	if err := svc.Run(ctx); err != nil {
		logger.Error("livegraph exited", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runSnapshot(ctx context.Context, flags *cliFlags, out io.Writer) error {
	logger := newLogger(os.Stderr, flags.debug)

	cfg, err := loadConfig(flags)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap, err := livegraph.BuildSnapshot(ctx, cfg, logger)
	if err != nil {
		logger.Error("snapshot failed", slog.String("error", err.Error()))
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
