// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse mounts a [projection.Filesystem] through go-fuse.
//
// Every node is addressed by its virtual path ("/" plus its path from
// the mount root); all decisions about what a path means are made by
// the projection filesystem. The mount is read-only: write-intent opens
// fail with EROFS, and operations the nodes do not implement (create,
// mkdir, unlink, rename, setattr) are rejected by go-fuse.
package fuse
