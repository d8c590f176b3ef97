// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// Relative converts a virtual path to a slash-separated path relative to
// a root. Virtual paths must be absolute; the root itself is "".
// The path is cleaned lexically, so ".." never climbs above the root.
//
//	Relative("/media/clip.wav") = "media/clip.wav"
//	Relative("/")               = ""
func Relative(virtualPath string) (string, error) {
	if !strings.HasPrefix(virtualPath, "/") {
		return "", &fs.PathError{Op: "resolve", Path: virtualPath, Err: syscall.EINVAL}
	}
	return strings.TrimPrefix(path.Clean(virtualPath), "/"), nil
}

// Resolve maps a virtual path onto root.
func Resolve(root, virtualPath string) (string, error) {
	relative, err := Relative(virtualPath)
	if err != nil {
		return "", err
	}
	return join(root, relative), nil
}

// JoinVirtual returns the virtual path of name inside the directory at
// virtualPath.
func JoinVirtual(virtualPath, name string) string {
	return path.Join(virtualPath, name)
}

// join appends a relative path produced by [Relative] to an OS root.
func join(root, relative string) string {
	if relative == "" {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(relative))
}

// childOf returns the relative path of name inside the directory at
// relative.
func childOf(relative, name string) string {
	if relative == "" {
		return name
	}
	return relative + "/" + name
}

// parentOf returns the relative path of the directory containing
// relative. The parent of a top-level entry is the root, "".
func parentOf(relative string) string {
	parent := path.Dir(relative)
	if parent == "." || parent == "/" {
		return ""
	}
	return parent
}
