// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"path"
	"strings"
)

// ReplaceExtension replaces the extension of the final component of
// filePath with extension, or appends it when there is none. A leading
// dot on extension is optional: "ogg" and ".ogg" give the same result.
//
//	ReplaceExtension("media/song.wav", "ogg")  = "media/song.ogg"
//	ReplaceExtension("media/song", ".ogg")     = "media/song.ogg"
//	ReplaceExtension(".profile", "ogg")        = ".profile.ogg"
//
// An empty extension strips the existing one.
func ReplaceExtension(filePath, extension string) string {
	extension = normalizeExtension(extension)
	directory, base := path.Split(filePath)
	if base == "" {
		return filePath
	}

	stem := base
	if index := strings.LastIndexByte(base, '.'); index > 0 {
		stem = base[:index]
	}
	if extension == "" {
		return directory + stem
	}
	return directory + stem + "." + extension
}

func normalizeExtension(extension string) string {
	return strings.TrimPrefix(strings.TrimSpace(extension), ".")
}
