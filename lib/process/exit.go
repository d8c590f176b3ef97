// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that choose the process exit
// status.
type exitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. Use it in main() for
// errors from run().
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w and returns the exit status for it.
func Report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	return ExitCode(err)
}

// ExitCode returns the exit status an error asks for, or 1.
func ExitCode(err error) int {
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
