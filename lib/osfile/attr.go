// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package osfile

import (
	"time"

	"golang.org/x/sys/unix"
)

// Kind is the type of a filesystem object.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDirectory
	KindRegular
	KindSymlink
	KindBlockDevice
	KindCharDevice
	KindNamedPipe
	KindSocket
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "regular"
	case KindSymlink:
		return "symlink"
	case KindBlockDevice:
		return "block-device"
	case KindCharDevice:
		return "char-device"
	case KindNamedPipe:
		return "named-pipe"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Mode returns the S_IFMT bits for the kind, or zero for KindUnknown.
func (k Kind) Mode() uint32 {
	switch k {
	case KindDirectory:
		return unix.S_IFDIR
	case KindRegular:
		return unix.S_IFREG
	case KindSymlink:
		return unix.S_IFLNK
	case KindBlockDevice:
		return unix.S_IFBLK
	case KindCharDevice:
		return unix.S_IFCHR
	case KindNamedPipe:
		return unix.S_IFIFO
	case KindSocket:
		return unix.S_IFSOCK
	default:
		return 0
	}
}

// KindFromMode extracts the kind from a raw st_mode value.
func KindFromMode(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return KindDirectory
	case unix.S_IFREG:
		return KindRegular
	case unix.S_IFLNK:
		return KindSymlink
	case unix.S_IFBLK:
		return KindBlockDevice
	case unix.S_IFCHR:
		return KindCharDevice
	case unix.S_IFIFO:
		return KindNamedPipe
	case unix.S_IFSOCK:
		return KindSocket
	default:
		return KindUnknown
	}
}

// Attr is the portable attribute record for one filesystem object. It
// carries every field the FUSE attribute reply needs.
type Attr struct {
	Dev  uint64
	Ino  uint64
	Mode uint32 // type and permission bits, as in st_mode

	Nlink uint64
	Uid   uint32
	Gid   uint32
	Rdev  uint64

	Size    int64
	Blocks  int64 // 512-byte units
	Blksize int64

	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// Kind returns the file type encoded in Mode.
func (a Attr) Kind() Kind {
	return KindFromMode(a.Mode)
}

// Perm returns the permission bits, including setuid, setgid and
// sticky.
func (a Attr) Perm() uint32 {
	return a.Mode & 0o7777
}

func attrFromStat(stat *unix.Stat_t) Attr {
	return Attr{
		Dev:     uint64(stat.Dev),
		Ino:     stat.Ino,
		Mode:    stat.Mode,
		Nlink:   uint64(stat.Nlink),
		Uid:     stat.Uid,
		Gid:     stat.Gid,
		Rdev:    uint64(stat.Rdev),
		Size:    stat.Size,
		Blocks:  stat.Blocks,
		Blksize: int64(stat.Blksize),
		Atime:   time.Unix(stat.Atim.Unix()),
		Mtime:   time.Unix(stat.Mtim.Unix()),
		Ctime:   time.Unix(stat.Ctim.Unix()),
	}
}
