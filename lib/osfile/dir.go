// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osfile

import (
	"io"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Entry is one name in a directory listing.
type Entry struct {
	Name string
	Kind Kind
}

// Dir is an open directory descriptor. A Dir is owned by exactly one
// caller between OpenDir and Close.
type Dir struct {
	path string
	file *os.File
}

// OpenDir opens the directory at path for enumeration. Opening a
// non-directory fails with ENOTDIR.
func OpenDir(path string) (*Dir, error) {
	fd, err := Open(path, unix.O_RDONLY|unix.O_DIRECTORY)
	if err != nil {
		return nil, err
	}
	return &Dir{path: path, file: os.NewFile(uintptr(fd), path)}, nil
}

// Path returns the directory path given to OpenDir.
func (d *Dir) Path() string {
	return d.path
}

// ReadAll returns every entry in the directory except "." and "..",
// in the order the kernel yields them. Each call rewinds the
// descriptor, so repeated calls list the directory afresh. Entries
// whose type the filesystem does not report in the dirent are resolved
// with lstat.
func (d *Dir) ReadAll() ([]Entry, error) {
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dirEntries, err := d.file.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		entries = append(entries, Entry{
			Name: dirEntry.Name(),
			Kind: kindFromFileMode(dirEntry.Type()),
		})
	}
	return entries, nil
}

// Close releases the directory descriptor.
func (d *Dir) Close() error {
	return d.file.Close()
}

func kindFromFileMode(mode fs.FileMode) Kind {
	switch {
	case mode&fs.ModeDir != 0:
		return KindDirectory
	case mode&fs.ModeSymlink != 0:
		return KindSymlink
	case mode&fs.ModeNamedPipe != 0:
		return KindNamedPipe
	case mode&fs.ModeSocket != 0:
		return KindSocket
	case mode&fs.ModeCharDevice != 0:
		return KindCharDevice
	case mode&fs.ModeDevice != 0:
		return KindBlockDevice
	case mode&fs.ModeType == 0:
		return KindRegular
	default:
		return KindUnknown
	}
}
