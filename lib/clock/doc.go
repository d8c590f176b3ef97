// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Production code takes a Clock instead of calling time.Now directly.
// In production, Real() provides the standard library behavior. In
// tests, Fake() provides a clock that moves only when Advance is
// called, so durations that appear in logs and results are exact.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := projection.NewManager(source, cache, rules, c, logger)
//	// ... inside a fake transformation ...
//	c.Advance(2 * time.Second)
package clock
