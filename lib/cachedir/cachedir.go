// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachedir chooses the default cache root for a source
// directory when none is given on the command line.
//
// Each source directory gets its own subdirectory of the user cache
// directory, named by a keyed BLAKE3 hash of the source's canonical
// path. Mounting the same source again reuses the same cache root (the
// filesystem replaces any stale entries it finds there); mounting a
// different source never shares one.
package cachedir

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// namespaceLength is the number of hash bytes used in the directory
// name. 128 bits is far beyond any realistic number of sources.
const namespaceLength = 16

// namespaceDomainKey is the ASCII domain name zero-padded to 32 bytes,
// so that the hash cannot collide with hashes of the same path taken
// in another context.
var namespaceDomainKey = [32]byte{
	'b', 'u', 'r', 'e', 'a', 'u', '.', 'p', 'r', 'o', 'j', 'f', 's', '.',
	's', 'o', 'u', 'r', 'c', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Namespace returns the directory name for a canonical source path.
func Namespace(canonicalSource string) string {
	hasher, err := blake3.NewKeyed(namespaceDomainKey[:])
	if err != nil {
		panic("cachedir: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(canonicalSource))
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:namespaceLength])
}

// Canonical returns the absolute, symlink-free form of source.
func Canonical(source string) (string, error) {
	absolute, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", source, err)
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", source, err)
	}
	return resolved, nil
}

// DeriveUnder returns the cache root for source inside cacheHome.
func DeriveUnder(cacheHome, source string) (string, error) {
	canonical, err := Canonical(source)
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheHome, "projfs", Namespace(canonical)), nil
}

// Derive returns the cache root for source inside the user cache
// directory ($XDG_CACHE_HOME or ~/.cache on Linux).
func Derive(source string) (string, error) {
	cacheHome, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache directory: %w", err)
	}
	return DeriveUnder(cacheHome, source)
}
