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

import "errors"

// Sentinel errors describing why an analysis produced no result.
//
// Adapters never return these to callers; they are logged and recorded on
// the analysis span so operators can tell a broken tool from an empty
// project.
var (
	// ErrToolNotInstalled indicates the external analysis command could not
	// be found on PATH or at its configured location.
	ErrToolNotInstalled = errors.New("analysis tool not installed")

	// ErrToolFailed indicates the external command exited non-zero.
	ErrToolFailed = errors.New("analysis tool failed")

	// ErrToolTimeout indicates the external command exceeded its timeout and
	// was killed.
	ErrToolTimeout = errors.New("analysis tool timed out")

	// ErrMalformedOutput indicates the command's final output line was not a
	// JSON object of string arrays.
	ErrMalformedOutput = errors.New("malformed analysis output")

	// ErrOutputTooLarge indicates the command wrote more than the allowed
	// amount of stdout.
	ErrOutputTooLarge = errors.New("analysis output too large")

	// ErrNoGoModule indicates the Go analyzer found no go.mod at the root.
	ErrNoGoModule = errors.New("no go.mod at project root")

	// ErrAnalyzerPanic indicates an adapter panicked; the panic is recovered.
	ErrAnalyzerPanic = errors.New("analyzer panicked")
)
