// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osfile

import (
	"errors"
	"io/fs"
	"strconv"

	"golang.org/x/sys/unix"
)

// Lstat returns the attributes of path without following a trailing
// symlink.
func Lstat(path string) (Attr, error) {
	var stat unix.Stat_t
	if err := ignoringEINTR(func() error { return unix.Lstat(path, &stat) }); err != nil {
		return Attr{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return attrFromStat(&stat), nil
}

// Fstat returns the attributes of the object behind an open descriptor.
func Fstat(fd int) (Attr, error) {
	var stat unix.Stat_t
	if err := ignoringEINTR(func() error { return unix.Fstat(fd, &stat) }); err != nil {
		return Attr{}, &fs.PathError{Op: "fstat", Path: descriptorName(fd), Err: err}
	}
	return attrFromStat(&stat), nil
}

// Open opens path with the given flags and returns the raw descriptor.
// O_CLOEXEC is always added so transformation subprocesses never
// inherit client descriptors. The caller owns the descriptor and must
// release it with Close.
func Open(path string, flags int) (int, error) {
	var fd int
	err := ignoringEINTR(func() error {
		var openErr error
		fd, openErr = unix.Open(path, flags|unix.O_CLOEXEC, 0)
		return openErr
	})
	if err != nil {
		return -1, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return fd, nil
}

// ReadAt fills dest from the descriptor starting at offset. It returns
// fewer bytes than len(dest) only at end of file, which is not an
// error. The descriptor's file position is not used or changed, so
// concurrent reads on one descriptor do not interfere.
func ReadAt(fd int, dest []byte, offset int64) (int, error) {
	total := 0
	for total < len(dest) {
		n, err := unix.Pread(fd, dest[total:], offset+int64(total))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, &fs.PathError{Op: "pread", Path: descriptorName(fd), Err: err}
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// Close closes a descriptor obtained from Open. EINTR is not retried:
// on Linux the descriptor is released even when close is interrupted.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil && !errors.Is(err, unix.EINTR) {
		return &fs.PathError{Op: "close", Path: descriptorName(fd), Err: err}
	}
	return nil
}

// Readlink returns the target of the symlink at path.
func Readlink(path string) (string, error) {
	for size := 256; ; size *= 2 {
		buffer := make([]byte, size)
		n, err := unix.Readlink(path, buffer)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return "", &fs.PathError{Op: "readlink", Path: path, Err: err}
		}
		if n < size {
			return string(buffer[:n]), nil
		}
	}
}

// FSStat is the portable subset of statfs the FUSE adapter reports.
type FSStat struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
}

// Statfs returns filesystem statistics for the filesystem holding path.
func Statfs(path string) (FSStat, error) {
	var stat unix.Statfs_t
	if err := ignoringEINTR(func() error { return unix.Statfs(path, &stat) }); err != nil {
		return FSStat{}, &fs.PathError{Op: "statfs", Path: path, Err: err}
	}
	return FSStat{
		Blocks:  stat.Blocks,
		Bfree:   stat.Bfree,
		Bavail:  stat.Bavail,
		Files:   stat.Files,
		Ffree:   stat.Ffree,
		Bsize:   uint32(stat.Bsize),
		NameLen: uint32(stat.Namelen),
		Frsize:  uint32(stat.Frsize),
	}, nil
}

func ignoringEINTR(call func() error) error {
	for {
		err := call()
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func descriptorName(fd int) string {
	return "fd:" + strconv.Itoa(fd)
}
