// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for projfs packages.
//
// [WriteTree] lays out a source directory from a path -> content map,
// and [Files] reads a tree back the same way, so tests can state a
// whole directory layout as a literal and compare against one.
//
// [RequireReceive] bounds a channel receive so that concurrency tests
// synchronize on channels and a hang becomes a failure instead.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no projfs-internal dependencies.
package testutil
