// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package osfile is the thin OS file layer underneath the projection
// filesystem: lstat/fstat, open, positioned read, close, readlink,
// statfs, and directory enumeration, all expressed in terms of raw
// descriptors and a portable attribute record.
//
// Every call is a direct syscall through golang.org/x/sys/unix. Errors
// are returned as *fs.PathError wrapping the raw unix.Errno so that
// callers can both log a readable message and recover the errno with
// errors.As. Nothing here retries or masks a failure.
//
// Key exports:
//
//   - [Attr] -- portable stat record, built from unix.Stat_t
//   - [Kind] -- file type, translated from st_mode or a directory entry
//   - [Dir] -- an open directory handle yielding [Entry] values
//
// The package targets Linux, which is the only platform the FUSE
// adapter mounts on.
package osfile
