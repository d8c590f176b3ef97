// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"fmt"
	"strings"
)

// AccessType is the per-path decision of whether a file is served
// as-is or through its transformed counterpart.
type AccessType int

const (
	// PassThrough serves the source file unmodified.
	PassThrough AccessType = iota
	// Projected serves the cached output of the transformation.
	Projected
)

func (a AccessType) String() string {
	switch a {
	case PassThrough:
		return "pass-through"
	case Projected:
		return "projected"
	default:
		return fmt.Sprintf("AccessType(%d)", int(a))
	}
}

// Policy is the capability the projection engine consumes.
// Implementations must be safe for concurrent use.
type Policy interface {
	// Classify decides from the name of path alone whether the file
	// is projected. The caller is responsible for only asking about
	// regular files.
	Classify(path string) AccessType

	// RenameForDestination returns path with its final component
	// renamed to the projected name. Directory components are kept.
	RenameForDestination(path string) string

	// Transform produces output from input and blocks until done. A
	// failure to start or a failing exit is returned as a
	// *TransformError.
	Transform(ctx context.Context, input, output string) error
}

// Rules is the Policy implementation behind both the default policy
// and file-loaded policies. A Rules value is immutable after
// construction.
type Rules struct {
	allow        []Pattern
	deny         []Pattern
	extension    string
	command      Command
	contentTypes map[string]string
}

var _ Policy = (*Rules)(nil)

// NewRules validates a definition and builds the policy it describes.
func NewRules(definition Definition) (*Rules, error) {
	if len(definition.MimeTypes) == 0 {
		return nil, fmt.Errorf("mime_types must list at least one content type")
	}

	allow, err := ParsePatterns(definition.MimeTypes)
	if err != nil {
		return nil, fmt.Errorf("mime_types: %w", err)
	}
	deny, err := ParsePatterns(definition.IgnoredMimeTypes)
	if err != nil {
		return nil, fmt.Errorf("ignored_mime_types: %w", err)
	}

	extension := normalizeExtension(definition.NameMapping)
	if extension == "" {
		return nil, fmt.Errorf("name_mapping must name a target extension")
	}

	command, err := ParseCommand(definition.ProjectionCommand)
	if err != nil {
		return nil, fmt.Errorf("projection_command: %w", err)
	}

	contentTypes := make(map[string]string, len(definition.ContentTypes))
	for name, contentType := range definition.ContentTypes {
		key := strings.ToLower(normalizeExtension(name))
		if key == "" {
			return nil, fmt.Errorf("content_types: empty extension")
		}
		if _, _, ok := splitContentType(contentType); !ok {
			return nil, fmt.Errorf("content_types: %q is not a content type", contentType)
		}
		contentTypes[key] = contentType
	}

	return &Rules{
		allow:        allow,
		deny:         deny,
		extension:    extension,
		command:      command,
		contentTypes: contentTypes,
	}, nil
}

// ContentType returns the guessed content type of path, or false when
// the name gives no hint.
func (r *Rules) ContentType(path string) (string, bool) {
	extension, ok := fileExtension(path)
	if !ok {
		return "", false
	}
	if contentType, ok := r.contentTypes[extension]; ok {
		return contentType, true
	}
	return guessContentType(extension)
}

func (r *Rules) Classify(path string) AccessType {
	contentType, ok := r.ContentType(path)
	if !ok {
		return PassThrough
	}
	if matchesAny(r.deny, contentType) {
		return PassThrough
	}
	if matchesAny(r.allow, contentType) {
		return Projected
	}
	return PassThrough
}

func (r *Rules) RenameForDestination(path string) string {
	return ReplaceExtension(path, r.extension)
}

func (r *Rules) Transform(ctx context.Context, input, output string) error {
	return r.command.Run(ctx, input, output)
}

// Extension returns the target extension without a leading dot.
func (r *Rules) Extension() string {
	return r.extension
}

// Command returns the transformation command template.
func (r *Rules) Command() Command {
	return r.command
}

// Allow returns a copy of the allow-list.
func (r *Rules) Allow() []Pattern {
	return append([]Pattern(nil), r.allow...)
}

// Deny returns a copy of the deny-list.
func (r *Rules) Deny() []Pattern {
	return append([]Pattern(nil), r.deny...)
}
