/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of breakplan.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/breakplan/internal/version.Version=X.Y.Z
var Version = "0.3.0"

// Commit is the VCS revision, set at build time.
var Commit = "unknown"

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("breakplan %s (commit %s, %s)", Version, Commit, runtime.Version())
}
