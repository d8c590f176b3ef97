// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/bureau-foundation/projfs/lib/policy"
)

// ErrDestinationConflict is returned by [Manager.Materialize] when the
// destination name of a projected file already belongs to another file:
// either another source file projects to it, or a file of that name
// exists in the source tree. Callers serve the file unprojected.
var ErrDestinationConflict = errors.New("projection destination is already taken")

// MappingInvariantError reports an attempt to register a mapping whose
// source or cache side is already mapped. The manager reserves both
// sides before transforming, so this is a logic defect and the manager
// panics with it.
type MappingInvariantError struct {
	Source string
	Cache  string

	// ExistingCache is the cache path Source is already mapped to, if
	// any.
	ExistingCache string
	// ExistingSource is the source path Cache is already mapped from,
	// if any.
	ExistingSource string
}

func (e *MappingInvariantError) Error() string {
	return fmt.Sprintf("mapping %q -> %q conflicts with existing mapping (source mapped to %q, cache mapped from %q)",
		e.Source, e.Cache, e.ExistingCache, e.ExistingSource)
}

// Errno converts an error from this package into the errno reported to
// the kernel. Transformation failures are I/O errors; OS errors keep
// their errno; interrupted waits are EINTR. Anything else is EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var transformError *policy.TransformError
	if errors.As(err, &transformError) {
		return syscall.EIO
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return syscall.EINTR
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
