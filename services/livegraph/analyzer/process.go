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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
)

const (
	// DefaultProcessTimeout bounds one external analysis run.
	DefaultProcessTimeout = 60 * time.Second

	// MaxProcessOutput caps captured stdout.
	MaxProcessOutput = 64 << 20

	stderrTail = 4 << 10
	waitDelay  = 2 * time.Second
)

// ProcessConfig configures a ProcessAdapter.
type ProcessConfig struct {
	// Name identifies the adapter. Defaults to Command.
	Name string

	// Ecosystem tags the nodes this adapter introduces.
	Ecosystem graph.Ecosystem

	// Command is the executable, resolved on PATH when not absolute.
	Command string

	// Args precede the project root on the command line.
	Args []string

	// Extensions are the source file extensions this tool reads.
	Extensions []string

	// Timeout bounds one run. Zero means DefaultProcessTimeout.
	Timeout time.Duration

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// ProcessAdapter runs an external analysis command.
//
// # Description
//
// The command is invoked as `Command Args... <root>`. Its stdout may carry
// any number of log lines; the last non-empty line must be a JSON object
// mapping module ids to arrays of module ids. The process is killed when the
// timeout elapses or the caller's context is canceled.
//
// # Thread Safety
//
// Safe for concurrent use; each Analyze starts its own process.
type ProcessAdapter struct {
	cfg ProcessConfig
}

// NewProcessAdapter creates a ProcessAdapter, filling defaults.
func NewProcessAdapter(cfg ProcessConfig) *ProcessAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProcessTimeout
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	return &ProcessAdapter{cfg: cfg}
}

// Name implements Adapter.
func (p *ProcessAdapter) Name() string { return p.cfg.Name }

// Ecosystem implements Adapter.
func (p *ProcessAdapter) Ecosystem() graph.Ecosystem { return p.cfg.Ecosystem }

// Extensions implements Adapter.
func (p *ProcessAdapter) Extensions() []string { return p.cfg.Extensions }

// Analyze implements Adapter.
func (p *ProcessAdapter) Analyze(ctx context.Context, root string) graph.Result {
	return failEmpty(ctx, p.cfg.Logger, p.cfg.Name, p.cfg.Ecosystem, root, p.run)
}

func (p *ProcessAdapter) run(ctx context.Context, root string) (graph.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	args := make([]string, 0, len(p.cfg.Args)+1)
	args = append(args, p.cfg.Args...)
	args = append(args, root)

	cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
	// Children that inherit stdout must not keep Wait blocked after a kill.
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: MaxProcessOutput}
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	switch {
	case err == nil:
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s: %v", ErrToolNotInstalled, p.cfg.Command, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w after %s", ErrToolTimeout, p.cfg.Timeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: exit code %d: %s", ErrToolFailed, exitErr.ExitCode(), stderr.String())
		}
		return nil, fmt.Errorf("%w: %v", ErrToolFailed, err)
	}

	if stdout.overflow {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOutputTooLarge, MaxProcessOutput)
	}
	return DecodeResult(stdout.Bytes())
}

// DecodeResult parses tool output: the last non-empty line must be a JSON
// object of string arrays. Earlier lines are ignored. Null arrays decode as
// empty; duplicate dependencies within one file are collapsed in order.
func DecodeResult(out []byte) (graph.Result, error) {
	line := lastNonEmptyLine(out)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: no output", ErrMalformedOutput)
	}

	var raw map[string][]string
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	result := make(graph.Result, len(raw))
	for file, deps := range raw {
		seen := make(map[graph.ModuleID]struct{}, len(deps))
		clean := make([]graph.ModuleID, 0, len(deps))
		for _, d := range deps {
			clean = appendUnique(clean, seen, d)
		}
		result[file] = clean
	}
	return result, nil
}

func lastNonEmptyLine(out []byte) []byte {
	out = bytes.TrimRight(out, " \t\r\n")
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		out = out[i+1:]
	}
	return bytes.TrimSpace(out)
}

// cappedBuffer keeps the first limit bytes and flags anything beyond.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room < len(p) {
		b.overflow = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

// tailBuffer keeps the last limit bytes written.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.buf))
}
