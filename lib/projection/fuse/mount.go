// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/projfs/lib/osfile"
	"github.com/bureau-foundation/projfs/lib/projection"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Filesystem serves every operation.
	Filesystem *projection.Filesystem

	// AllowOther permits other users (including root) to access
	// the mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// AutoUnmount asks fusermount to unmount the filesystem when the
	// process exits, including when it is killed.
	AutoUnmount bool

	// Debug logs every FUSE request and response to stderr.
	Debug bool

	// Logger receives diagnostic messages. If nil, errors are logged
	// to stderr.
	Logger *slog.Logger
}

// Mount mounts the projection filesystem at the configured mountpoint.
// The caller must call Unmount on the returned Server when done and
// then Destroy on the filesystem. The mountpoint directory is created
// if it does not exist.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Filesystem == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	rootAttr, err := options.Filesystem.Getattr(context.Background(), "/", projection.NoHandle)
	if err != nil {
		return nil, fmt.Errorf("reading source root: %w", err)
	}

	root := &node{mount: &mount{
		filesystem: options.Filesystem,
		logger:     options.Logger,
		rootDevice: rootAttr.Dev,
	}}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	mountOptions := []string{"ro"}
	if options.AutoUnmount {
		mountOptions = append(mountOptions, "auto_unmount")
	}

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "projfs",
			Name:       "projfs",
			AllowOther: options.AllowOther,
			Debug:      options.Debug,
			Options:    mountOptions,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("projection filesystem mounted",
		"mountpoint", options.Mountpoint,
		"source", options.Filesystem.SourceRoot(),
		"cache", options.Filesystem.CacheRoot(),
	)
	return server, nil
}

// mount is the state shared by every node of one mount.
type mount struct {
	filesystem *projection.Filesystem
	logger     *slog.Logger
	rootDevice uint64
}

// errno converts an operation error for the kernel. I/O errors carry
// the root cause only in the log.
func (m *mount) errno(operation, virtualPath string, err error) syscall.Errno {
	errno := projection.Errno(err)
	if errno == syscall.EIO {
		m.logger.Error(operation+" failed", "path", virtualPath, "error", err)
	} else {
		m.logger.Debug(operation+" failed", "path", virtualPath, "error", err)
	}
	return errno
}

// stableAttr derives the inode identity of a file. Inode numbers are
// only unique per device, so the device is folded in the way go-fuse's
// loopback filesystem does it.
func (m *mount) stableAttr(attr osfile.Attr) gofuse.StableAttr {
	swapped := (attr.Dev << 32) | (attr.Dev >> 32)
	swappedRoot := (m.rootDevice << 32) | (m.rootDevice >> 32)
	return gofuse.StableAttr{
		Mode: attr.Kind().Mode(),
		Gen:  1,
		Ino:  (swapped ^ swappedRoot) ^ attr.Ino,
	}
}

func (m *mount) fillAttr(attr osfile.Attr, out *fuse.Attr) {
	stable := m.stableAttr(attr)
	out.Ino = stable.Ino
	out.Mode = attr.Mode
	out.Nlink = uint32(attr.Nlink)
	out.Owner = fuse.Owner{Uid: attr.Uid, Gid: attr.Gid}
	out.Rdev = uint32(attr.Rdev)
	out.Size = uint64(attr.Size)
	out.Blocks = uint64(attr.Blocks)
	out.Blksize = uint32(attr.Blksize)
	out.SetTimes(&attr.Atime, &attr.Mtime, &attr.Ctime)
}

// node is every file, directory and symlink in the mount.
type node struct {
	gofuse.Inode
	mount *mount
}

var _ gofuse.InodeEmbedder = (*node)(nil)
var _ gofuse.NodeOnAdder = (*node)(nil)
var _ gofuse.NodeLookuper = (*node)(nil)
var _ gofuse.NodeGetattrer = (*node)(nil)
var _ gofuse.NodeReaddirer = (*node)(nil)
var _ gofuse.NodeOpener = (*node)(nil)
var _ gofuse.NodeReadlinker = (*node)(nil)
var _ gofuse.NodeStatfser = (*node)(nil)

func (n *node) virtualPath() string {
	return "/" + n.Path(nil)
}

// OnAdd is called for the root node when the filesystem is mounted.
func (n *node) OnAdd(ctx context.Context) {
	n.mount.filesystem.Init()
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := projection.JoinVirtual(n.virtualPath(), name)
	attr, err := n.mount.filesystem.Getattr(ctx, childPath, projection.NoHandle)
	if err != nil {
		return nil, n.mount.errno("lookup", childPath, err)
	}
	n.mount.fillAttr(attr, &out.Attr)
	child := n.NewInode(ctx, &node{mount: n.mount}, n.mount.stableAttr(attr))
	return child, 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	handle := projection.NoHandle
	if opened, ok := f.(*fileHandle); ok {
		handle = opened.handle
	}
	virtualPath := n.virtualPath()
	attr, err := n.mount.filesystem.Getattr(ctx, virtualPath, handle)
	if err != nil {
		return n.mount.errno("getattr", virtualPath, err)
	}
	n.mount.fillAttr(attr, &out.Attr)
	return 0
}

// Readdir lists the directory in one pass: the source directory is
// opened, read and released before the stream is returned.
func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	virtualPath := n.virtualPath()
	handle, err := n.mount.filesystem.OpenDir(ctx, virtualPath)
	if err != nil {
		return nil, n.mount.errno("opendir", virtualPath, err)
	}
	defer n.mount.filesystem.ReleaseDir(handle)

	listing, err := n.mount.filesystem.ReadDir(ctx, handle)
	if err != nil {
		return nil, n.mount.errno("readdir", virtualPath, err)
	}

	entries := make([]fuse.DirEntry, 0, len(listing))
	for _, entry := range listing {
		entries = append(entries, fuse.DirEntry{
			Name: entry.Name,
			Mode: entry.Kind.Mode(),
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	virtualPath := n.virtualPath()
	handle, err := n.mount.filesystem.Open(ctx, virtualPath, int(flags))
	if err != nil {
		return nil, 0, n.mount.errno("open", virtualPath, err)
	}
	return &fileHandle{mount: n.mount, virtualPath: virtualPath, handle: handle}, 0, 0
}

func (n *node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	virtualPath := n.virtualPath()
	target, err := n.mount.filesystem.Readlink(ctx, virtualPath)
	if err != nil {
		return nil, n.mount.errno("readlink", virtualPath, err)
	}
	return []byte(target), 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stat, err := n.mount.filesystem.Statfs()
	if err != nil {
		return n.mount.errno("statfs", n.virtualPath(), err)
	}
	out.Blocks = stat.Blocks
	out.Bfree = stat.Bfree
	out.Bavail = stat.Bavail
	out.Files = stat.Files
	out.Ffree = stat.Ffree
	out.Bsize = stat.Bsize
	out.NameLen = stat.NameLen
	out.Frsize = stat.Frsize
	return 0
}

// fileHandle is an open file. The kernel releases it exactly once.
type fileHandle struct {
	mount       *mount
	virtualPath string
	handle      projection.Handle
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)
var _ gofuse.FileGetattrer = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := h.mount.filesystem.Read(h.handle, dest, off)
	if err != nil {
		return nil, h.mount.errno("read", h.virtualPath, err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.mount.filesystem.Release(h.handle); err != nil {
		return h.mount.errno("release", h.virtualPath, err)
	}
	return 0
}

func (h *fileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	attr, err := h.mount.filesystem.Getattr(ctx, h.virtualPath, h.handle)
	if err != nil {
		return h.mount.errno("getattr", h.virtualPath, err)
	}
	h.mount.fillAttr(attr, &out.Attr)
	return 0
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
