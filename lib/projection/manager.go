// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/projfs/lib/clock"
	"github.com/bureau-foundation/projfs/lib/osfile"
	"github.com/bureau-foundation/projfs/lib/policy"
)

// Manager owns the source <-> cache mapping and runs transformations.
// Each source path moves from unmapped, through materializing, to
// mapped; mapped is terminal. A failed transformation returns the path
// to unmapped so that a later access tries again.
type Manager struct {
	sourceRoot string
	cacheRoot  string
	policy     policy.Policy
	clock      clock.Clock
	logger     *slog.Logger

	mu      sync.Mutex
	mapping *Mapping
	// pending holds the completion token of every source path being
	// materialized, keyed by source-relative path.
	pending map[string]*materialization
	// reserved maps the destination of every pending materialization
	// back to its source so that two sources cannot race for one name.
	reserved map[string]string
}

// materialization is the completion token shared by every caller
// waiting on one transformation. cacheRelative and err are written
// before done is closed and never after.
type materialization struct {
	done          chan struct{}
	cacheRelative string
	err           error
}

// NewManager returns a manager projecting files under sourceRoot into
// cacheRoot.
func NewManager(sourceRoot, cacheRoot string, projectionPolicy policy.Policy, clock clock.Clock, logger *slog.Logger) *Manager {
	return &Manager{
		sourceRoot: sourceRoot,
		cacheRoot:  cacheRoot,
		policy:     projectionPolicy,
		clock:      clock,
		logger:     logger,
		mapping:    NewMapping(),
		pending:    make(map[string]*materialization),
		reserved:   make(map[string]string),
	}
}

// Classify asks the policy about an absolute source path.
func (m *Manager) Classify(sourcePath string) policy.AccessType {
	return m.policy.Classify(sourcePath)
}

// Destination returns the cache-relative path sourceRelative would be
// materialized at.
func (m *Manager) Destination(sourceRelative string) string {
	return m.policy.RenameForDestination(sourceRelative)
}

// LookupBySource returns the cache path of an already materialized
// source path.
func (m *Manager) LookupBySource(sourceRelative string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapping.BySource(sourceRelative)
}

// LookupByCache returns the source path whose projection lives at
// cacheRelative.
func (m *Manager) LookupByCache(cacheRelative string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapping.ByCache(cacheRelative)
}

// Len returns the number of materialized projections.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapping.Len()
}

// Materialize returns the cache-relative path of sourceRelative's
// projection, running the transformation if this is the first request
// for it. Concurrent calls for the same path share one transformation
// and its outcome, success or failure.
//
// The transformation itself is not cancelled with ctx: it runs to
// completion on behalf of every waiter. A caller whose ctx ends while
// waiting on another caller's transformation returns ctx.Err().
//
// Returns [ErrDestinationConflict] when the destination name belongs to
// another file, and a *policy.TransformError when the transformation
// fails.
func (m *Manager) Materialize(ctx context.Context, sourceRelative string) (string, error) {
	cacheRelative := m.policy.RenameForDestination(sourceRelative)
	if cacheRelative != sourceRelative {
		// A real file already using the destination name would be
		// shadowed by the projection.
		_, err := osfile.Lstat(join(m.sourceRoot, cacheRelative))
		if err == nil {
			if _, mapped := m.LookupBySource(sourceRelative); !mapped {
				return "", m.conflict(sourceRelative, cacheRelative, "source tree")
			}
		}
	}

	m.mu.Lock()
	if mapped, ok := m.mapping.BySource(sourceRelative); ok {
		m.mu.Unlock()
		return mapped, nil
	}
	if inFlight, ok := m.pending[sourceRelative]; ok {
		m.mu.Unlock()
		select {
		case <-inFlight.done:
			return inFlight.cacheRelative, inFlight.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if owner, ok := m.mapping.ByCache(cacheRelative); ok && owner != sourceRelative {
		m.mu.Unlock()
		return "", m.conflict(sourceRelative, cacheRelative, owner)
	}
	if owner, ok := m.reserved[cacheRelative]; ok && owner != sourceRelative {
		m.mu.Unlock()
		return "", m.conflict(sourceRelative, cacheRelative, owner)
	}

	inFlight := &materialization{done: make(chan struct{})}
	m.pending[sourceRelative] = inFlight
	m.reserved[cacheRelative] = sourceRelative
	m.mu.Unlock()

	err := m.transform(context.WithoutCancel(ctx), sourceRelative, cacheRelative)

	m.mu.Lock()
	delete(m.pending, sourceRelative)
	delete(m.reserved, cacheRelative)
	if err == nil {
		if insertErr := m.mapping.Insert(sourceRelative, cacheRelative); insertErr != nil {
			inFlight.err = insertErr
			close(inFlight.done)
			m.mu.Unlock()
			panic(insertErr)
		}
		inFlight.cacheRelative = cacheRelative
	} else {
		inFlight.err = err
	}
	close(inFlight.done)
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	return cacheRelative, nil
}

func (m *Manager) conflict(sourceRelative, cacheRelative, owner string) error {
	m.logger.Warn("projection destination taken, serving source unprojected",
		"source", sourceRelative,
		"destination", cacheRelative,
		"owner", owner,
	)
	return fmt.Errorf("projecting %s to %s: %w", sourceRelative, cacheRelative, ErrDestinationConflict)
}

// transform produces the cache file for one source file. Any existing
// file at the destination is a leftover from an earlier process (the
// mapping is not persisted) and is replaced. On failure nothing is left
// at the destination.
func (m *Manager) transform(ctx context.Context, sourceRelative, cacheRelative string) error {
	input := join(m.sourceRoot, sourceRelative)
	output := join(m.cacheRoot, cacheRelative)
	fail := func(err error) error {
		return &policy.TransformError{Input: input, Output: output, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fail(fmt.Errorf("creating cache directory: %w", err))
	}
	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fail(fmt.Errorf("removing stale cache entry: %w", err))
	}

	m.logger.Info("materializing projection", "source", sourceRelative, "destination", cacheRelative)
	start := m.clock.Now()

	if err := m.policy.Transform(ctx, input, output); err != nil {
		os.Remove(output)
		m.logger.Error("projection failed", "source", sourceRelative, "error", err)
		var transformError *policy.TransformError
		if errors.As(err, &transformError) {
			return err
		}
		return fail(err)
	}

	attr, err := osfile.Lstat(output)
	if err != nil {
		m.logger.Error("projection produced no output", "source", sourceRelative, "output", output)
		return fail(fmt.Errorf("command produced no output: %w", err))
	}
	if attr.Kind() != osfile.KindRegular {
		os.RemoveAll(output)
		return fail(fmt.Errorf("command produced a %s instead of a regular file", attr.Kind()))
	}

	m.logger.Info("projection materialized",
		"source", sourceRelative,
		"destination", cacheRelative,
		"size", humanize.IBytes(uint64(attr.Size)),
		"duration", m.clock.Since(start),
	)
	return nil
}
