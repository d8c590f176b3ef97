// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which build of projfs is running.
//
// Release builds inject [Version], [GitCommit], and [BuildTime] with
// -ldflags -X. Builds that skip the flags (go install, go run, tests)
// fall back to the VCS stamp the Go toolchain embeds in the binary,
// and to "unknown" when there is none.
package version
