// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/projfs/lib/osfile"
	"github.com/bureau-foundation/projfs/lib/policy"
	"github.com/bureau-foundation/projfs/lib/testutil"
)

// testTimestamp is a fixed modification time for source files, so that
// attribute tests can tell source times from cache times.
var testTimestamp = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestFilesystem(t *testing.T, projectionPolicy policy.Policy, files map[string]string) (*Filesystem, string, string) {
	t.Helper()
	source := t.TempDir()
	cache := filepath.Join(t.TempDir(), "cache")
	testutil.WriteTree(t, source, files)
	logger, _ := testLogger(t)

	filesystem, err := New(Options{
		SourceRoot: source,
		CacheRoot:  cache,
		Policy:     projectionPolicy,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	filesystem.Init()
	t.Cleanup(filesystem.Destroy)
	return filesystem, source, cache
}

// listDir opens, reads and releases a directory, returning its entries
// sorted by name.
func listDir(t *testing.T, filesystem *Filesystem, virtualPath string) []DirEntry {
	t.Helper()
	handle, err := filesystem.OpenDir(context.Background(), virtualPath)
	if err != nil {
		t.Fatalf("OpenDir(%q): %v", virtualPath, err)
	}
	entries, err := filesystem.ReadDir(context.Background(), handle)
	if err != nil {
		t.Fatalf("ReadDir(%q): %v", virtualPath, err)
	}
	if err := filesystem.ReleaseDir(handle); err != nil {
		t.Fatalf("ReleaseDir(%q): %v", virtualPath, err)
	}
	slices.SortFunc(entries, func(a, b DirEntry) int { return strings.Compare(a.Name, b.Name) })
	return entries
}

// readFile opens virtualPath, reads it to the end in small chunks, and
// releases it.
func readFile(t *testing.T, filesystem *Filesystem, virtualPath string) string {
	t.Helper()
	handle, err := filesystem.Open(context.Background(), virtualPath, unix.O_RDONLY)
	if err != nil {
		t.Fatalf("Open(%q): %v", virtualPath, err)
	}
	defer func() {
		if err := filesystem.Release(handle); err != nil {
			t.Errorf("Release(%q): %v", virtualPath, err)
		}
	}()

	var content []byte
	buffer := make([]byte, 3)
	for offset := int64(0); ; {
		count, err := filesystem.Read(handle, buffer, offset)
		if err != nil {
			t.Fatalf("Read(%q, %d): %v", virtualPath, offset, err)
		}
		content = append(content, buffer[:count]...)
		offset += int64(count)
		if count < len(buffer) {
			return string(content)
		}
	}
}

func TestReadDirProjectsNames(t *testing.T) {
	fake := newFakePolicy()
	filesystem, source, cache := newTestFilesystem(t, fake, map[string]string{
		"media/clip.wav":  "RIFF",
		"media/notes.txt": "hello",
		"media/sub/":      "",
	})
	if err := os.Symlink("notes.txt", filepath.Join(source, "media", "link")); err != nil {
		t.Fatal(err)
	}
	if err := unix.Mkfifo(filepath.Join(source, "media", "pipe"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := listDir(t, filesystem, "/media")
	want := []DirEntry{
		{Name: "clip.ogg", Kind: osfile.KindRegular},
		{Name: "link", Kind: osfile.KindSymlink},
		{Name: "notes.txt", Kind: osfile.KindRegular},
		{Name: "pipe", Kind: osfile.KindNamedPipe},
		{Name: "sub", Kind: osfile.KindDirectory},
	}
	if !slices.Equal(got, want) {
		t.Errorf("listing = %v, want %v", got, want)
	}

	// Only the projected file reaches the cache.
	cached := testutil.Files(t, cache)
	if len(cached) != 1 || cached["media/clip.ogg"] != "projected:RIFF" {
		t.Errorf("cache contents = %v", cached)
	}

	// A second listing reuses the mapping.
	listDir(t, filesystem, "/media")
	if calls := fake.calls.Load(); calls != 1 {
		t.Errorf("transformations = %d, want 1", calls)
	}

	root := listDir(t, filesystem, "/")
	if len(root) != 1 || root[0] != (DirEntry{Name: "media", Kind: osfile.KindDirectory}) {
		t.Errorf("root listing = %v", root)
	}
}

func TestReadDirParallel(t *testing.T) {
	fake := newFakePolicy()
	files := make(map[string]string)
	for i := range 8 {
		files[fmt.Sprintf("track%02d.wav", i)] = fmt.Sprintf("audio %d", i)
	}
	source := t.TempDir()
	testutil.WriteTree(t, source, files)
	logger, _ := testLogger(t)
	filesystem, err := New(Options{
		SourceRoot:  source,
		CacheRoot:   filepath.Join(t.TempDir(), "cache"),
		Policy:      fake,
		Parallelism: 4,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer filesystem.Destroy()

	entries := listDir(t, filesystem, "/")
	if len(entries) != 8 {
		t.Fatalf("listing has %d entries, want 8", len(entries))
	}
	for i, entry := range entries {
		if want := fmt.Sprintf("track%02d.ogg", i); entry.Name != want {
			t.Errorf("entry %d = %q, want %q", i, entry.Name, want)
		}
	}
	if calls := fake.calls.Load(); calls != 8 {
		t.Errorf("transformations = %d, want 8", calls)
	}
	if got := filesystem.Manager().Len(); got != 8 {
		t.Errorf("mapping size = %d, want 8", got)
	}
}

func TestReadDirTransformFailure(t *testing.T) {
	fake := newFakePolicy()
	fake.failNext(1)
	filesystem, _, _ := newTestFilesystem(t, fake, map[string]string{
		"clip.wav": "RIFF",
	})

	handle, err := filesystem.OpenDir(context.Background(), "/")
	if err != nil {
		t.Fatal(err)
	}
	defer filesystem.ReleaseDir(handle)

	if _, err := filesystem.ReadDir(context.Background(), handle); Errno(err) != syscall.EIO {
		t.Fatalf("ReadDir error = %v, want EIO", err)
	}
	entries, err := filesystem.ReadDir(context.Background(), handle)
	if err != nil {
		t.Fatalf("second ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "clip.ogg" {
		t.Errorf("second listing = %v", entries)
	}
}

func TestGetattrMergesProjectedAttributes(t *testing.T) {
	fake := newFakePolicy()
	filesystem, source, cache := newTestFilesystem(t, fake, map[string]string{
		"media/clip.wav": "RIFF",
	})
	// Materialize first: the transformation reads the source, which
	// would move its access time.
	listDir(t, filesystem, "/media")

	sourcePath := filepath.Join(source, "media", "clip.wav")
	if err := os.Chmod(sourcePath, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(sourcePath, testTimestamp, testTimestamp); err != nil {
		t.Fatal(err)
	}

	sourceAttr, err := osfile.Lstat(sourcePath)
	if err != nil {
		t.Fatal(err)
	}
	cacheAttr, err := osfile.Lstat(filepath.Join(cache, "media", "clip.ogg"))
	if err != nil {
		t.Fatal(err)
	}

	for _, virtualPath := range []string{"/media/clip.ogg", "/media/clip.wav"} {
		attr, err := filesystem.Getattr(context.Background(), virtualPath, NoHandle)
		if err != nil {
			t.Fatalf("Getattr(%q): %v", virtualPath, err)
		}

		// Content fields come from the cache file.
		if attr.Size != int64(len("projected:RIFF")) || attr.Size != cacheAttr.Size {
			t.Errorf("%s: Size = %d, want %d", virtualPath, attr.Size, cacheAttr.Size)
		}
		if attr.Blocks != cacheAttr.Blocks {
			t.Errorf("%s: Blocks = %d, want %d", virtualPath, attr.Blocks, cacheAttr.Blocks)
		}

		// Everything else comes from the source file.
		if attr.Mode != sourceAttr.Mode || attr.Perm() != 0o640 {
			t.Errorf("%s: Mode = %o, want %o", virtualPath, attr.Mode, sourceAttr.Mode)
		}
		if !attr.Mtime.Equal(testTimestamp) || !attr.Atime.Equal(testTimestamp) {
			t.Errorf("%s: times = %v/%v, want %v", virtualPath, attr.Atime, attr.Mtime, testTimestamp)
		}
		if !attr.Ctime.Equal(sourceAttr.Ctime) {
			t.Errorf("%s: Ctime = %v, want %v", virtualPath, attr.Ctime, sourceAttr.Ctime)
		}
		if attr.Ino != sourceAttr.Ino || attr.Dev != sourceAttr.Dev {
			t.Errorf("%s: identity = %d/%d, want %d/%d", virtualPath, attr.Dev, attr.Ino, sourceAttr.Dev, sourceAttr.Ino)
		}
		if attr.Nlink != sourceAttr.Nlink || attr.Uid != sourceAttr.Uid || attr.Gid != sourceAttr.Gid {
			t.Errorf("%s: ownership fields differ from source", virtualPath)
		}
		if attr.Blksize != sourceAttr.Blksize || attr.Rdev != sourceAttr.Rdev {
			t.Errorf("%s: block size or rdev differ from source", virtualPath)
		}
	}
}

func TestGetattrPassThrough(t *testing.T) {
	filesystem, source, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"notes.txt": "hello",
		"dir/":      "",
	})

	attr, err := filesystem.Getattr(context.Background(), "/notes.txt", NoHandle)
	if err != nil {
		t.Fatal(err)
	}
	want, err := osfile.Lstat(filepath.Join(source, "notes.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if attr != want {
		t.Errorf("Getattr = %+v, want source attributes %+v", attr, want)
	}

	dirAttr, err := filesystem.Getattr(context.Background(), "/dir", NoHandle)
	if err != nil {
		t.Fatal(err)
	}
	if dirAttr.Kind() != osfile.KindDirectory {
		t.Errorf("dir kind = %v", dirAttr.Kind())
	}

	rootAttr, err := filesystem.Getattr(context.Background(), "/", NoHandle)
	if err != nil {
		t.Fatal(err)
	}
	if rootAttr.Kind() != osfile.KindDirectory {
		t.Errorf("root kind = %v", rootAttr.Kind())
	}
}

func TestGetattrErrors(t *testing.T) {
	filesystem, _, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"clip.wav": "RIFF",
	})

	tests := []struct {
		virtualPath string
		want        syscall.Errno
	}{
		{"/missing.txt", syscall.ENOENT},
		{"/missing.wav", syscall.ENOENT},
		{"/missing.ogg", syscall.ENOENT},
		{"/clip.wav/child", syscall.ENOTDIR},
		{"relative", syscall.EINVAL},
	}
	for _, tt := range tests {
		_, err := filesystem.Getattr(context.Background(), tt.virtualPath, NoHandle)
		if Errno(err) != tt.want {
			t.Errorf("Getattr(%q) error = %v, want %v", tt.virtualPath, err, tt.want)
		}
	}

	if _, err := filesystem.Getattr(context.Background(), "/clip.wav", Handle(999)); Errno(err) != syscall.EBADF {
		t.Errorf("Getattr with unknown handle = %v, want EBADF", err)
	}
}

func TestGetattrTransformFailure(t *testing.T) {
	fake := newFakePolicy()
	fake.failNext(1)
	filesystem, _, _ := newTestFilesystem(t, fake, map[string]string{
		"clip.wav": "RIFF",
	})

	if _, err := filesystem.Getattr(context.Background(), "/clip.wav", NoHandle); Errno(err) != syscall.EIO {
		t.Fatalf("Getattr error = %v, want EIO", err)
	}
	attr, err := filesystem.Getattr(context.Background(), "/clip.wav", NoHandle)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attr.Size != int64(len("projected:RIFF")) {
		t.Errorf("Size = %d after retry", attr.Size)
	}
}

func TestLookupWithoutListing(t *testing.T) {
	fake := newFakePolicy()
	filesystem, _, _ := newTestFilesystem(t, fake, map[string]string{
		"media/clip.wav": "RIFF",
	})

	// The projected name is requested before the directory was ever
	// listed.
	attr, err := filesystem.Getattr(context.Background(), "/media/clip.ogg", NoHandle)
	if err != nil {
		t.Fatalf("Getattr: %v", err)
	}
	if attr.Size != int64(len("projected:RIFF")) {
		t.Errorf("Size = %d", attr.Size)
	}
	if got := readFile(t, filesystem, "/media/clip.ogg"); got != "projected:RIFF" {
		t.Errorf("content = %q", got)
	}
	if calls := fake.calls.Load(); calls != 1 {
		t.Errorf("transformations = %d, want 1", calls)
	}
}

func TestOpenAndRead(t *testing.T) {
	filesystem, _, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"media/clip.wav":  "RIFF-data",
		"media/notes.txt": "plain text, served as-is",
		"media/empty.txt": "",
	})

	tests := []struct {
		virtualPath string
		want        string
	}{
		{"/media/clip.ogg", "projected:RIFF-data"},
		{"/media/clip.wav", "projected:RIFF-data"},
		{"/media/notes.txt", "plain text, served as-is"},
		{"/media/empty.txt", ""},
	}
	for _, tt := range tests {
		if got := readFile(t, filesystem, tt.virtualPath); got != tt.want {
			t.Errorf("content of %s = %q, want %q", tt.virtualPath, got, tt.want)
		}
	}
	if filesystem.OpenFiles() != 0 {
		t.Errorf("%d handles left open", filesystem.OpenFiles())
	}
}

func TestReadAtOffsets(t *testing.T) {
	filesystem, _, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"notes.txt": "0123456789",
	})
	handle, err := filesystem.Open(context.Background(), "/notes.txt", unix.O_RDONLY)
	if err != nil {
		t.Fatal(err)
	}
	defer filesystem.Release(handle)

	tests := []struct {
		offset int64
		size   int
		want   string
	}{
		{0, 4, "0123"},
		{6, 4, "6789"},
		{8, 4, "89"},
		{10, 4, ""},
		{100, 4, ""},
	}
	for _, tt := range tests {
		buffer := make([]byte, tt.size)
		count, err := filesystem.Read(handle, buffer, tt.offset)
		if err != nil {
			t.Errorf("Read at %d: %v", tt.offset, err)
			continue
		}
		if got := string(buffer[:count]); got != tt.want {
			t.Errorf("Read at %d = %q, want %q", tt.offset, got, tt.want)
		}
	}
}

func TestGetattrByHandle(t *testing.T) {
	filesystem, source, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"clip.wav":  "RIFF",
		"notes.txt": "hello",
	})

	projected, err := filesystem.Open(context.Background(), "/clip.ogg", unix.O_RDONLY)
	if err != nil {
		t.Fatal(err)
	}
	defer filesystem.Release(projected)
	attr, err := filesystem.Getattr(context.Background(), "/clip.ogg", projected)
	if err != nil {
		t.Fatal(err)
	}
	sourceAttr, err := osfile.Lstat(filepath.Join(source, "clip.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if attr.Size != int64(len("projected:RIFF")) {
		t.Errorf("projected Size = %d", attr.Size)
	}
	if attr.Ino != sourceAttr.Ino || attr.Mode != sourceAttr.Mode {
		t.Errorf("projected handle attributes not taken from source")
	}

	passThrough, err := filesystem.Open(context.Background(), "/notes.txt", unix.O_RDONLY)
	if err != nil {
		t.Fatal(err)
	}
	defer filesystem.Release(passThrough)
	attr, err = filesystem.Getattr(context.Background(), "/notes.txt", passThrough)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Size != 5 {
		t.Errorf("pass-through Size = %d, want 5", attr.Size)
	}
}

func TestOpenRejectsWrites(t *testing.T) {
	filesystem, _, cache := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"clip.wav":  "RIFF",
		"notes.txt": "hello",
	})

	flags := []int{
		unix.O_WRONLY,
		unix.O_RDWR,
		unix.O_RDONLY | unix.O_CREAT,
		unix.O_RDONLY | unix.O_TRUNC,
		unix.O_RDONLY | unix.O_APPEND,
	}
	for _, virtualPath := range []string{"/clip.wav", "/notes.txt", "/new.txt"} {
		for _, flag := range flags {
			_, err := filesystem.Open(context.Background(), virtualPath, flag)
			if Errno(err) != syscall.EROFS {
				t.Errorf("Open(%q, %#o) error = %v, want EROFS", virtualPath, flag, err)
			}
		}
	}
	if got := testutil.Files(t, cache); len(got) != 0 {
		t.Errorf("rejected opens materialized %v", got)
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	filesystem, _, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"notes.txt": "hello",
	})

	handle, err := filesystem.Open(context.Background(), "/notes.txt", unix.O_RDONLY)
	if err != nil {
		t.Fatal(err)
	}
	if err := filesystem.Release(handle); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := filesystem.Release(handle); Errno(err) != syscall.EBADF {
		t.Errorf("second Release = %v, want EBADF", err)
	}
	if _, err := filesystem.Read(handle, make([]byte, 1), 0); Errno(err) != syscall.EBADF {
		t.Errorf("Read after Release = %v, want EBADF", err)
	}

	dir, err := filesystem.OpenDir(context.Background(), "/")
	if err != nil {
		t.Fatal(err)
	}
	if err := filesystem.ReleaseDir(dir); err != nil {
		t.Fatalf("ReleaseDir: %v", err)
	}
	if err := filesystem.ReleaseDir(dir); Errno(err) != syscall.EBADF {
		t.Errorf("second ReleaseDir = %v, want EBADF", err)
	}
	if _, err := filesystem.ReadDir(context.Background(), dir); Errno(err) != syscall.EBADF {
		t.Errorf("ReadDir after ReleaseDir = %v, want EBADF", err)
	}
}

func TestOpenDirErrors(t *testing.T) {
	filesystem, _, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"notes.txt": "hello",
	})
	if _, err := filesystem.OpenDir(context.Background(), "/notes.txt"); Errno(err) != syscall.ENOTDIR {
		t.Errorf("OpenDir(file) = %v, want ENOTDIR", err)
	}
	if _, err := filesystem.OpenDir(context.Background(), "/absent"); Errno(err) != syscall.ENOENT {
		t.Errorf("OpenDir(absent) = %v, want ENOENT", err)
	}
}

func TestDestroyClosesLeakedHandles(t *testing.T) {
	source := t.TempDir()
	testutil.WriteTree(t, source, map[string]string{"notes.txt": "hello"})
	filesystem, err := New(Options{
		SourceRoot: source,
		CacheRoot:  filepath.Join(t.TempDir(), "cache"),
		Policy:     newFakePolicy(),
	})
	if err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if _, err := filesystem.Open(context.Background(), "/notes.txt", unix.O_RDONLY); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := filesystem.OpenDir(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}

	filesystem.Destroy()
	if filesystem.OpenFiles() != 0 || filesystem.OpenDirs() != 0 {
		t.Errorf("handles after Destroy: %d files, %d dirs", filesystem.OpenFiles(), filesystem.OpenDirs())
	}
}

func TestDestinationConflictDegradesToPassThrough(t *testing.T) {
	fake := newFakePolicy()
	filesystem, _, cache := newTestFilesystem(t, fake, map[string]string{
		"song.wav": "RIFF",
		"song.ogg": "OggS",
	})

	entries := listDir(t, filesystem, "/")
	if len(entries) != 2 || entries[0].Name != "song.ogg" || entries[1].Name != "song.wav" {
		t.Errorf("listing = %v, want both original names", entries)
	}
	if got := readFile(t, filesystem, "/song.wav"); got != "RIFF" {
		t.Errorf("song.wav = %q, want source bytes", got)
	}
	if got := readFile(t, filesystem, "/song.ogg"); got != "OggS" {
		t.Errorf("song.ogg = %q, want source bytes", got)
	}
	if calls := fake.calls.Load(); calls != 0 {
		t.Errorf("transformations = %d, want 0", calls)
	}
	if got := testutil.Files(t, cache); len(got) != 0 {
		t.Errorf("cache contents = %v", got)
	}
}

func TestReadlinkAndStatfs(t *testing.T) {
	filesystem, source, _ := newTestFilesystem(t, newFakePolicy(), map[string]string{
		"notes.txt": "hello",
	})
	if err := os.Symlink("notes.txt", filepath.Join(source, "link")); err != nil {
		t.Fatal(err)
	}

	target, err := filesystem.Readlink(context.Background(), "/link")
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "notes.txt" {
		t.Errorf("Readlink = %q, want notes.txt", target)
	}
	if _, err := filesystem.Readlink(context.Background(), "/notes.txt"); Errno(err) != syscall.EINVAL {
		t.Errorf("Readlink(regular file) = %v, want EINVAL", err)
	}

	attr, err := filesystem.Getattr(context.Background(), "/link", NoHandle)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Kind() != osfile.KindSymlink {
		t.Errorf("link kind = %v, want symlink", attr.Kind())
	}

	stat, err := filesystem.Statfs()
	if err != nil {
		t.Fatalf("Statfs: %v", err)
	}
	if stat.Bsize == 0 || stat.Blocks == 0 {
		t.Errorf("Statfs = %+v", stat)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	source := t.TempDir()
	testutil.WriteTree(t, source, map[string]string{"notes.txt": "hello"})

	tests := []struct {
		name    string
		options Options
	}{
		{"no source", Options{CacheRoot: t.TempDir(), Policy: newFakePolicy()}},
		{"no cache", Options{SourceRoot: source, Policy: newFakePolicy()}},
		{"no policy", Options{SourceRoot: source, CacheRoot: t.TempDir()}},
		{"missing source", Options{SourceRoot: filepath.Join(source, "absent"), CacheRoot: t.TempDir(), Policy: newFakePolicy()}},
		{"source is a file", Options{SourceRoot: filepath.Join(source, "notes.txt"), CacheRoot: t.TempDir(), Policy: newFakePolicy()}},
		{"cache inside source", Options{SourceRoot: source, CacheRoot: filepath.Join(source, ".cache"), Policy: newFakePolicy()}},
		{"cache is source", Options{SourceRoot: source, CacheRoot: source, Policy: newFakePolicy()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.options); err == nil {
				t.Error("New succeeded, want error")
			}
		})
	}
}

// TestEndToEndWithCommand drives the real policy implementation and an
// external command through the filesystem.
func TestEndToEndWithCommand(t *testing.T) {
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skipf("cp not available: %v", err)
	}
	rules, err := policy.NewRules(policy.Definition{
		MimeTypes:         []string{"audio"},
		IgnoredMimeTypes:  []string{"audio/ogg"},
		NameMapping:       ".ogg",
		ProjectionCommand: "cp {input} {output}",
	})
	if err != nil {
		t.Fatal(err)
	}

	audio := "RIFF\x24\x00\x00\x00WAVEfmt "
	filesystem, _, cache := newTestFilesystem(t, rules, map[string]string{
		"media/clip.wav":    audio,
		"media/cover.png":   "\x89PNG",
		"media/already.ogg": "OggS",
	})

	entries := listDir(t, filesystem, "/media")
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	if want := []string{"already.ogg", "clip.ogg", "cover.png"}; !slices.Equal(names, want) {
		t.Errorf("listing = %v, want %v", names, want)
	}

	if got := readFile(t, filesystem, "/media/clip.ogg"); got != audio {
		t.Errorf("projected content = %q, want %q", got, audio)
	}
	if got := readFile(t, filesystem, "/media/cover.png"); got != "\x89PNG" {
		t.Errorf("pass-through content = %q", got)
	}

	cached := testutil.Files(t, cache)
	if len(cached) != 1 || cached["media/clip.ogg"] != audio {
		t.Errorf("cache contents = %v", cached)
	}
}
