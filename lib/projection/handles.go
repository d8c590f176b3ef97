// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import "sync"

// Handle identifies an open file or directory across protocol calls.
// Handles are never reused within a [Filesystem].
type Handle uint64

// NoHandle is passed to [Filesystem.Getattr] when the caller has no open
// handle for the path.
const NoHandle Handle = 0

// handleTable owns the resources behind handles. A resource leaves the
// table exactly once, through remove or drain, and whoever takes it out
// closes it.
type handleTable[T any] struct {
	mu      sync.Mutex
	last    Handle
	entries map[Handle]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{entries: make(map[Handle]T)}
}

func (t *handleTable[T]) insert(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last++
	t.entries[t.last] = value
	return t.last
}

func (t *handleTable[T]) get(handle Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.entries[handle]
	return value, ok
}

func (t *handleTable[T]) remove(handle Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	return value, ok
}

// drain removes and returns every remaining entry.
func (t *handleTable[T]) drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := make([]T, 0, len(t.entries))
	for handle, value := range t.entries {
		values = append(values, value)
		delete(t.entries, handle)
	}
	return values
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
