// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides which files the projection filesystem
// transforms, what the transformed files are called, and how they are
// produced.
//
// The filesystem consumes a policy only through the [Policy] interface
// (Classify, RenameForDestination, Transform), so the built-in default
// and a policy loaded from a file are interchangeable values. Both are
// [Rules]: an allow-list and a deny-list of content-type [Pattern]s, a
// target extension, and a [Command] template.
//
// # Classification
//
// The content type is guessed from the file name alone (never from
// file contents): an optional per-policy extension table first, then a
// built-in audio/video table, then the standard library's mime table.
// A name with no guess is never projected. Otherwise a file is
// projected when its type matches the allow-list and no entry of the
// deny-list; the deny-list always wins.
//
// # Configuration
//
// Policies are authored as YAML or JSONC files:
//
//	mime_types: [audio, video/*]
//	ignored_mime_types: [audio/ogg]
//	name_mapping: .ogg
//	projection_command: ffmpeg -i {input} -vn {output}
//
// [LoadOrDefault] never fails: an unreadable or malformed file is
// logged and replaced by [Default].
package policy
