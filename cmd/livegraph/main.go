// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command livegraph serves a live import graph of a source tree.
//
// It watches the project directory, re-analyzes it when source files change
// and pushes each new graph to every open browser tab.
//
// Usage:
//
//	livegraph                       # serve the current directory on :3000
//	livegraph serve --root ./app --port 8080
//	livegraph snapshot --root ./app | jq '.nodes | length'
//
// Configuration is read from livegraph.yaml (or --config), then LIVEGRAPH_*
// environment variables and a .env file, then command-line flags.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
