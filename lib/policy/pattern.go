// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"mime"
	"strings"
)

// Pattern matches content types. Type must match exactly; an empty
// Subtype matches every subtype of Type.
type Pattern struct {
	Type    string
	Subtype string
}

// ParsePattern parses one of the three accepted spellings:
//
//	audio        every audio subtype
//	audio/*      every audio subtype
//	audio/ogg    only audio/ogg
//
// Matching is case-insensitive.
func ParsePattern(text string) (Pattern, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Pattern{}, fmt.Errorf("empty content-type pattern")
	}

	primary, subtype, hasSlash := strings.Cut(normalized, "/")
	if primary == "" {
		return Pattern{}, fmt.Errorf("content-type pattern %q has no primary type", text)
	}
	if primary == "*" {
		return Pattern{}, fmt.Errorf("content-type pattern %q: wildcard primary types are not supported", text)
	}
	if hasSlash && strings.Contains(subtype, "/") {
		return Pattern{}, fmt.Errorf("content-type pattern %q has more than one '/'", text)
	}
	if subtype == "*" {
		subtype = ""
	}
	return Pattern{Type: primary, Subtype: subtype}, nil
}

// ParsePatterns parses every entry, failing on the first invalid one.
func ParsePatterns(texts []string) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(texts))
	for _, text := range texts {
		pattern, err := ParsePattern(text)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func (p Pattern) String() string {
	if p.Subtype == "" {
		return p.Type + "/*"
	}
	return p.Type + "/" + p.Subtype
}

// Matches reports whether contentType (parameters allowed, as in
// "audio/ogg; codecs=opus") falls under the pattern.
func (p Pattern) Matches(contentType string) bool {
	primary, subtype, ok := splitContentType(contentType)
	if !ok || primary != p.Type {
		return false
	}
	return p.Subtype == "" || p.Subtype == subtype
}

func matchesAny(patterns []Pattern, contentType string) bool {
	for _, pattern := range patterns {
		if pattern.Matches(contentType) {
			return true
		}
	}
	return false
}

// splitContentType strips parameters and returns the lower-cased
// primary type and subtype.
func splitContentType(contentType string) (string, string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", false
	}
	primary, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || primary == "" || subtype == "" {
		return "", "", false
	}
	return primary, subtype, true
}
