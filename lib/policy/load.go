// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Definition is the on-disk form of a policy.
type Definition struct {
	// MimeTypes is the allow-list of content-type patterns.
	MimeTypes []string `yaml:"mime_types" json:"mime_types"`

	// IgnoredMimeTypes is the deny-list. A file matching both lists
	// is passed through.
	IgnoredMimeTypes []string `yaml:"ignored_mime_types,omitempty" json:"ignored_mime_types,omitempty"`

	// NameMapping is the extension projected files are renamed to,
	// with or without a leading dot.
	NameMapping string `yaml:"name_mapping" json:"name_mapping"`

	// ProjectionCommand is the command template run once per
	// projected file, e.g. "ffmpeg -i {input} -vn {output}".
	ProjectionCommand string `yaml:"projection_command" json:"projection_command"`

	// ContentTypes maps extensions to content types, taking
	// precedence over the built-in guess table.
	ContentTypes map[string]string `yaml:"content_types,omitempty" json:"content_types,omitempty"`
}

// DefaultDefinition projects audio and video to Ogg through ffmpeg,
// leaving audio that is already Ogg alone.
func DefaultDefinition() Definition {
	return Definition{
		MimeTypes:         []string{"audio", "video"},
		IgnoredMimeTypes:  []string{"audio/ogg"},
		NameMapping:       "ogg",
		ProjectionCommand: "ffmpeg -i {input} -vn {output}",
	}
}

// Default returns the built-in policy.
func Default() *Rules {
	rules, err := NewRules(DefaultDefinition())
	if err != nil {
		panic("policy: built-in default policy is invalid: " + err.Error())
	}
	return rules
}

// DefaultPath returns the policy file consulted when none is given on
// the command line: $XDG_CONFIG_HOME/projfs/policy.yaml, or the
// platform equivalent.
func DefaultPath() (string, error) {
	configDirectory, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(configDirectory, "projfs", "policy.yaml"), nil
}

// Format selects the policy file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatJSONC
)

// FormatForPath picks JSONC for .json and .jsonc files and YAML for
// everything else.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Parse decodes a policy definition. Unknown keys are rejected so that
// a misspelled key is reported instead of silently ignored.
func Parse(data []byte, format Format) (Definition, error) {
	var definition Definition
	switch format {
	case FormatJSONC:
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&definition); err != nil {
			return Definition{}, fmt.Errorf("parsing JSONC policy: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&definition); err != nil {
			if errors.Is(err, io.EOF) {
				return Definition{}, fmt.Errorf("parsing YAML policy: document is empty")
			}
			return Definition{}, fmt.Errorf("parsing YAML policy: %w", err)
		}
	}
	return definition, nil
}

// ConfigError reports a policy file that could not be read, parsed, or
// validated.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadFile reads, parses and validates the policy at path. Every
// failure is a *ConfigError.
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	definition, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	rules, err := NewRules(definition)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return rules, nil
}

// LoadOrDefault loads the policy at path, falling back to Default when
// the file is missing, unreadable, or invalid. The fallback is logged
// at warn level; it is the only error the filesystem downgrades.
func LoadOrDefault(path string, logger *slog.Logger) *Rules {
	rules, err := LoadFile(path)
	if err == nil {
		logger.Info("projection policy loaded",
			"path", path,
			"allow", rules.Allow(),
			"deny", rules.Deny(),
			"extension", rules.Extension(),
			"command", rules.Command().String(),
		)
		return rules
	}
	logger.Warn("using default projection policy", "error", err)
	return Default()
}
