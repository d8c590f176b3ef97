// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"mime"
	"path"
	"strings"
)

// builtinContentTypes covers the media formats the projection
// filesystem exists for. The standard library's table only knows a
// handful of web types, and the system mime.types file is not present
// on every host, so classification of audio and video must not depend
// on it.
var builtinContentTypes = map[string]string{
	// Audio.
	"aac":  "audio/aac",
	"aif":  "audio/aiff",
	"aifc": "audio/aiff",
	"aiff": "audio/aiff",
	"alac": "audio/alac",
	"amr":  "audio/amr",
	"ape":  "audio/ape",
	"au":   "audio/basic",
	"flac": "audio/flac",
	"m4a":  "audio/m4a",
	"mid":  "audio/midi",
	"midi": "audio/midi",
	"mka":  "audio/x-matroska",
	"mp2":  "audio/mpeg",
	"mp3":  "audio/mpeg",
	"oga":  "audio/ogg",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"spx":  "audio/ogg",
	"wav":  "audio/wav",
	"wma":  "audio/x-ms-wma",
	"wv":   "audio/wavpack",

	// Video.
	"3g2":  "video/3gpp2",
	"3gp":  "video/3gpp",
	"avi":  "video/x-msvideo",
	"flv":  "video/x-flv",
	"m2ts": "video/mp2t",
	"m4v":  "video/x-m4v",
	"mkv":  "video/x-matroska",
	"mov":  "video/quicktime",
	"mp4":  "video/mp4",
	"mpeg": "video/mpeg",
	"mpg":  "video/mpeg",
	"ogv":  "video/ogg",
	"ts":   "video/mp2t",
	"vob":  "video/dvd",
	"webm": "video/webm",
	"wmv":  "video/x-ms-wmv",

	// Common documents, so that pass-through classification of plain
	// files is stable across hosts.
	"csv":  "text/csv",
	"md":   "text/markdown",
	"txt":  "text/plain",
	"yaml": "application/yaml",
	"yml":  "application/yaml",
}

// fileExtension returns the lower-cased extension of the final path
// component without its dot. Dot-files such as ".profile" and names
// ending in a dot have no extension.
func fileExtension(filePath string) (string, bool) {
	base := path.Base(filePath)
	index := strings.LastIndexByte(base, '.')
	if index <= 0 || index == len(base)-1 {
		return "", false
	}
	return strings.ToLower(base[index+1:]), true
}

func guessContentType(extension string) (string, bool) {
	if contentType, ok := builtinContentTypes[extension]; ok {
		return contentType, true
	}
	contentType := mime.TypeByExtension("." + extension)
	if contentType == "" {
		return "", false
	}
	return contentType, true
}
