// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watcher

import "errors"

var (
	// ErrRootNotFound is returned when the watch root does not exist.
	ErrRootNotFound = errors.New("watcher: root not found")

	// ErrRootNotDir is returned when the watch root is not a directory.
	ErrRootNotDir = errors.New("watcher: root is not a directory")

	// ErrWatcherClosed is returned by Start after Stop.
	ErrWatcherClosed = errors.New("watcher: closed")

	// ErrNilTrigger is returned by New without a trigger callback.
	ErrNilTrigger = errors.New("watcher: trigger callback is nil")
)
