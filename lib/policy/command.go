// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Placeholders substituted into command templates.
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

// stderrTailSize bounds how much of a failing command's stderr is kept
// for the error message. Media tools print progress to stderr, so the
// useful diagnostic is at the end.
const stderrTailSize = 2048

// Command is a transformation command template: a whitespace-separated
// command line in which every occurrence of {input} and {output} is
// replaced with the absolute source and destination paths. No shell is
// involved, so paths containing spaces or shell metacharacters are
// passed through as single arguments.
type Command struct {
	tokens []string
}

// ParseCommand splits a template into tokens.
func ParseCommand(template string) (Command, error) {
	tokens := strings.Fields(template)
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("empty command template")
	}
	if strings.Contains(tokens[0], InputPlaceholder) || strings.Contains(tokens[0], OutputPlaceholder) {
		return Command{}, fmt.Errorf("command template %q: the program name cannot be a placeholder", template)
	}
	return Command{tokens: tokens}, nil
}

// Expand returns the argument vector for one transformation.
func (c Command) Expand(input, output string) []string {
	argv := make([]string, len(c.tokens))
	for i, token := range c.tokens {
		token = strings.ReplaceAll(token, InputPlaceholder, input)
		token = strings.ReplaceAll(token, OutputPlaceholder, output)
		argv[i] = token
	}
	return argv
}

func (c Command) String() string {
	return strings.Join(c.tokens, " ")
}

// Run spawns the expanded command and waits for it. Standard input is
// /dev/null so interactive prompts (ffmpeg's overwrite question, for
// instance) fail fast instead of hanging.
func (c Command) Run(ctx context.Context, input, output string) error {
	if len(c.tokens) == 0 {
		return &TransformError{Input: input, Output: output, Err: fmt.Errorf("empty command template")}
	}
	argv := c.Expand(input, output)

	stderr := &tailBuffer{limit: stderrTailSize}
	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	command.Stderr = stderr

	if err := command.Run(); err != nil {
		return &TransformError{
			Input:   input,
			Output:  output,
			Command: argv,
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

// TransformError reports a transformation that could not be started or
// exited with a failure status.
type TransformError struct {
	Input   string
	Output  string
	Command []string

	// Stderr is the tail of the command's standard error, if any.
	Stderr string

	Err error
}

func (e *TransformError) Error() string {
	var message strings.Builder
	fmt.Fprintf(&message, "transforming %s to %s", e.Input, e.Output)
	if len(e.Command) > 0 {
		fmt.Fprintf(&message, " (%s)", e.Command[0])
	}
	fmt.Fprintf(&message, ": %v", e.Err)
	if e.Stderr != "" {
		fmt.Fprintf(&message, ": %s", e.Stderr)
	}
	return message.String()
}

func (e *TransformError) Unwrap() error { return e.Err }

// Started reports whether the command ran at all. False means the
// program could not be found or executed.
func (e *TransformError) Started() bool {
	var exitError *exec.ExitError
	return errors.As(e.Err, &exitError)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if overflow := len(b.data) - b.limit; overflow > 0 {
		b.data = append(b.data[:0], b.data[overflow:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
