// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package projection implements the read-only overlay behind projfs.
// A source directory tree is exposed unchanged, except that files a
// [policy.Policy] classifies as projected are shown under their renamed
// destination name and serve the output of a transformation command
// instead of their own bytes.
//
// Transformations run lazily, the first time a projected file is
// listed, looked up, or opened, and their outputs live in a separate
// cache directory that mirrors the source layout. The [Manager] owns the
// one-to-one association between source-relative and cache-relative
// paths and guarantees at most one transformation per source path no
// matter how many operations race on it.
//
// [Filesystem] translates protocol operations (getattr, opendir,
// readdir, open, read, release, readlink, statfs) addressed by virtual
// path into operations on the source or cache tree. It is independent
// of any particular kernel protocol; package fuse adapts it to go-fuse.
//
// A virtual path resolves, in order:
//
//  1. to the cache file, when the path is a registered cache path;
//  2. to the cache file, when the source path is a regular file the
//     policy projects (the original name is an alias of the projected
//     content);
//  3. to the cache file of a sibling, when the source path does not
//     exist but a projected sibling's destination has that name;
//  4. to the source file otherwise.
//
// Projected attributes are those of the source file with the size and
// block count of the cache file.
//
// Cache entries are never invalidated: a source file modified after its
// projection was materialized keeps serving the old output until the
// process restarts.
package projection
