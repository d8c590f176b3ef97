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
	"path"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/projfs/lib/clock"
	"github.com/bureau-foundation/projfs/lib/osfile"
	"github.com/bureau-foundation/projfs/lib/policy"
)

// writeFlags are the open flags that would modify the file. The
// filesystem is read-only.
const writeFlags = unix.O_WRONLY | unix.O_RDWR | unix.O_CREAT | unix.O_TRUNC | unix.O_APPEND

// Options configures a [Filesystem].
type Options struct {
	// SourceRoot is the directory tree being projected. It must
	// exist.
	SourceRoot string

	// CacheRoot holds transformation outputs. It is created if it
	// does not exist. It must not be inside SourceRoot.
	CacheRoot string

	// Policy decides what is projected and how.
	Policy policy.Policy

	// Parallelism bounds how many projections one directory listing
	// materializes at once. Zero or negative means one at a time.
	Parallelism int

	// Clock times transformations. If nil, defaults to clock.Real().
	Clock clock.Clock

	// Logger receives diagnostic messages. If nil, errors are logged
	// to stderr.
	Logger *slog.Logger
}

// Filesystem serves protocol operations addressed by virtual path.
// All methods are safe for concurrent use.
type Filesystem struct {
	sourceRoot  string
	cacheRoot   string
	manager     *Manager
	parallelism int
	logger      *slog.Logger

	files *handleTable[*openFile]
	dirs  *handleTable[*openDir]
}

// DirEntry is one entry of a directory listing, with projected files
// already renamed.
type DirEntry struct {
	Name string
	Kind osfile.Kind
}

type openFile struct {
	fd     int
	access policy.AccessType
	// sourcePath is the absolute path of the source file. For a
	// projected file it supplies every attribute but the size.
	sourcePath string
}

type openDir struct {
	relative string
	dir      *osfile.Dir
}

// target is the outcome of resolving a virtual path.
type target struct {
	access     policy.AccessType
	sourcePath string
	// cachePath is set only for projected targets.
	cachePath string
}

// path returns the file that serves the target's content.
func (t target) path() string {
	if t.access == policy.Projected {
		return t.cachePath
	}
	return t.sourcePath
}

// New validates options and returns a filesystem with an empty
// mapping.
func New(options Options) (*Filesystem, error) {
	if options.SourceRoot == "" {
		return nil, fmt.Errorf("source root is required")
	}
	if options.CacheRoot == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if options.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if options.Parallelism < 1 {
		options.Parallelism = 1
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	sourceRoot, err := filepath.Abs(options.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	cacheRoot, err := filepath.Abs(options.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving cache root: %w", err)
	}

	info, err := os.Stat(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", sourceRoot)
	}
	if relative, err := filepath.Rel(sourceRoot, cacheRoot); err == nil && filepath.IsLocal(relative) {
		return nil, fmt.Errorf("cache root %s is inside source root %s", cacheRoot, sourceRoot)
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root: %w", err)
	}

	return &Filesystem{
		sourceRoot:  sourceRoot,
		cacheRoot:   cacheRoot,
		manager:     NewManager(sourceRoot, cacheRoot, options.Policy, options.Clock, options.Logger),
		parallelism: options.Parallelism,
		logger:      options.Logger,
		files:       newHandleTable[*openFile](),
		dirs:        newHandleTable[*openDir](),
	}, nil
}

// SourceRoot returns the absolute source root.
func (f *Filesystem) SourceRoot() string { return f.sourceRoot }

// CacheRoot returns the absolute cache root.
func (f *Filesystem) CacheRoot() string { return f.cacheRoot }

// Manager returns the projection manager.
func (f *Filesystem) Manager() *Manager { return f.manager }

// Init is called once the filesystem is mounted.
func (f *Filesystem) Init() {
	f.logger.Info("projection filesystem started",
		"source", f.sourceRoot,
		"cache", f.cacheRoot,
		"parallelism", f.parallelism,
	)
}

// Destroy closes every file and directory handle that was never
// released. The filesystem must not be used afterwards.
func (f *Filesystem) Destroy() {
	files := f.files.drain()
	for _, file := range files {
		osfile.Close(file.fd)
	}
	dirs := f.dirs.drain()
	for _, dir := range dirs {
		dir.dir.Close()
	}
	f.logger.Info("projection filesystem stopped",
		"projections", f.manager.Len(),
		"leaked_files", len(files),
		"leaked_dirs", len(dirs),
	)
}

// Getattr returns the attributes of the file at virtualPath. With an
// open handle the attributes come from its descriptor.
func (f *Filesystem) Getattr(ctx context.Context, virtualPath string, handle Handle) (osfile.Attr, error) {
	if handle != NoHandle {
		file, ok := f.files.get(handle)
		if !ok {
			return osfile.Attr{}, syscall.EBADF
		}
		content, err := osfile.Fstat(file.fd)
		if err != nil {
			return osfile.Attr{}, err
		}
		if file.access == policy.PassThrough {
			return content, nil
		}
		source, err := osfile.Lstat(file.sourcePath)
		if err != nil {
			return osfile.Attr{}, err
		}
		return mergeAttr(source, content), nil
	}

	resolved, err := f.resolve(ctx, virtualPath)
	if err != nil {
		return osfile.Attr{}, err
	}
	source, err := osfile.Lstat(resolved.sourcePath)
	if err != nil {
		return osfile.Attr{}, err
	}
	if resolved.access == policy.PassThrough {
		return source, nil
	}
	content, err := osfile.Lstat(resolved.cachePath)
	if err != nil {
		return osfile.Attr{}, err
	}
	return mergeAttr(source, content), nil
}

// mergeAttr is the attribute record of a projected file: everything
// from the source file except the size and block count, which describe
// the transformed content.
func mergeAttr(source, content osfile.Attr) osfile.Attr {
	merged := source
	merged.Size = content.Size
	merged.Blocks = content.Blocks
	return merged
}

// OpenDir opens the source directory at virtualPath.
func (f *Filesystem) OpenDir(ctx context.Context, virtualPath string) (Handle, error) {
	relative, err := Relative(virtualPath)
	if err != nil {
		return NoHandle, err
	}
	dir, err := osfile.OpenDir(join(f.sourceRoot, relative))
	if err != nil {
		return NoHandle, err
	}
	return f.dirs.insert(&openDir{relative: relative, dir: dir}), nil
}

// ReadDir lists an open directory. Regular files the policy projects
// are materialized (if they are not yet) and listed under their
// destination name; everything else is listed as-is. A file whose
// destination name is taken is listed under its own name.
func (f *Filesystem) ReadDir(ctx context.Context, handle Handle) ([]DirEntry, error) {
	opened, ok := f.dirs.get(handle)
	if !ok {
		return nil, syscall.EBADF
	}
	entries, err := opened.dir.ReadAll()
	if err != nil {
		return nil, err
	}

	listing := make([]DirEntry, len(entries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.parallelism)
	for index, entry := range entries {
		listing[index] = DirEntry{Name: entry.Name, Kind: entry.Kind}
		if entry.Kind != osfile.KindRegular {
			continue
		}
		childRelative := childOf(opened.relative, entry.Name)
		if f.manager.Classify(join(f.sourceRoot, childRelative)) != policy.Projected {
			continue
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			cacheRelative, projected, err := f.project(groupCtx, childRelative)
			if err != nil {
				return err
			}
			if projected {
				listing[index].Name = path.Base(cacheRelative)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return listing, nil
}

// ReleaseDir closes a directory handle.
func (f *Filesystem) ReleaseDir(handle Handle) error {
	opened, ok := f.dirs.remove(handle)
	if !ok {
		return syscall.EBADF
	}
	return opened.dir.Close()
}

// Open opens the file at virtualPath for reading. Projected files open
// their cache file; everything else opens the source file. Any flag
// that would modify the file fails with EROFS.
func (f *Filesystem) Open(ctx context.Context, virtualPath string, flags int) (Handle, error) {
	if flags&writeFlags != 0 {
		return NoHandle, syscall.EROFS
	}
	resolved, err := f.resolve(ctx, virtualPath)
	if err != nil {
		return NoHandle, err
	}
	fd, err := osfile.Open(resolved.path(), unix.O_RDONLY)
	if err != nil {
		return NoHandle, err
	}
	handle := f.files.insert(&openFile{
		fd:         fd,
		access:     resolved.access,
		sourcePath: resolved.sourcePath,
	})
	f.logger.Debug("opened", "path", virtualPath, "access", resolved.access, "handle", handle)
	return handle, nil
}

// Read fills dest from the open file starting at offset. A short count
// means end of file.
func (f *Filesystem) Read(handle Handle, dest []byte, offset int64) (int, error) {
	file, ok := f.files.get(handle)
	if !ok {
		return 0, syscall.EBADF
	}
	return osfile.ReadAt(file.fd, dest, offset)
}

// Release closes a file handle. Releasing a handle twice fails with
// EBADF and has no other effect.
func (f *Filesystem) Release(handle Handle) error {
	file, ok := f.files.remove(handle)
	if !ok {
		return syscall.EBADF
	}
	return osfile.Close(file.fd)
}

// Readlink returns the target of the source symlink at virtualPath.
func (f *Filesystem) Readlink(ctx context.Context, virtualPath string) (string, error) {
	relative, err := Relative(virtualPath)
	if err != nil {
		return "", err
	}
	return osfile.Readlink(join(f.sourceRoot, relative))
}

// Statfs reports the statistics of the filesystem holding the source
// tree.
func (f *Filesystem) Statfs() (osfile.FSStat, error) {
	return osfile.Statfs(f.sourceRoot)
}

// OpenFiles returns the number of unreleased file handles.
func (f *Filesystem) OpenFiles() int { return f.files.len() }

// OpenDirs returns the number of unreleased directory handles.
func (f *Filesystem) OpenDirs() int { return f.dirs.len() }

func (f *Filesystem) resolve(ctx context.Context, virtualPath string) (target, error) {
	relative, err := Relative(virtualPath)
	if err != nil {
		return target{}, err
	}

	if sourceRelative, ok := f.manager.LookupByCache(relative); ok {
		return f.projectedTarget(sourceRelative, relative), nil
	}

	sourcePath := join(f.sourceRoot, relative)
	passThrough := target{access: policy.PassThrough, sourcePath: sourcePath}

	attr, err := osfile.Lstat(sourcePath)
	switch {
	case err == nil:
		if attr.Kind() != osfile.KindRegular || f.manager.Classify(sourcePath) != policy.Projected {
			return passThrough, nil
		}
		cacheRelative, projected, err := f.project(ctx, relative)
		if err != nil {
			return target{}, err
		}
		if !projected {
			return passThrough, nil
		}
		return f.projectedTarget(relative, cacheRelative), nil

	case errors.Is(err, fs.ErrNotExist):
		sourceRelative, found, err := f.discover(ctx, relative)
		if err != nil {
			return target{}, err
		}
		if found {
			return f.projectedTarget(sourceRelative, relative), nil
		}
		return passThrough, nil

	default:
		return target{}, err
	}
}

func (f *Filesystem) projectedTarget(sourceRelative, cacheRelative string) target {
	return target{
		access:     policy.Projected,
		sourcePath: join(f.sourceRoot, sourceRelative),
		cachePath:  join(f.cacheRoot, cacheRelative),
	}
}

// project materializes sourceRelative. A destination conflict is not an
// error: the file is reported as not projected.
func (f *Filesystem) project(ctx context.Context, sourceRelative string) (string, bool, error) {
	cacheRelative, err := f.manager.Materialize(ctx, sourceRelative)
	if errors.Is(err, ErrDestinationConflict) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cacheRelative, true, nil
}

// discover finds the source file whose projection is named relative
// when that name has not been materialized yet, which happens when a
// projected name is looked up without its directory having been listed.
func (f *Filesystem) discover(ctx context.Context, relative string) (string, bool, error) {
	if relative == "" {
		return "", false, nil
	}
	parent := parentOf(relative)
	dir, err := osfile.OpenDir(join(f.sourceRoot, parent))
	if err != nil {
		return "", false, nil
	}
	entries, err := dir.ReadAll()
	dir.Close()
	if err != nil {
		return "", false, nil
	}

	for _, entry := range entries {
		if entry.Kind != osfile.KindRegular {
			continue
		}
		candidate := childOf(parent, entry.Name)
		if candidate == relative || f.manager.Destination(candidate) != relative {
			continue
		}
		if f.manager.Classify(join(f.sourceRoot, candidate)) != policy.Projected {
			continue
		}
		cacheRelative, projected, err := f.project(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if projected && cacheRelative == relative {
			return candidate, true, nil
		}
	}
	return "", false, nil
}
