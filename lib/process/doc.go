// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler. It is
// the one place raw output goes to stderr: errors returned from run()
// may predate the structured logger, and usage errors are for a human.
//
// An error carrying an exit code (an ExitCode() int method) exits with
// that code; every other error exits with 1.
package process
