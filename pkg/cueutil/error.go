// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrValidation is the sentinel error wrapped by ValidationError.
	ErrValidation = errors.New("document validation failed")
	// ErrFileTooLarge is returned by CheckFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

type (
	// Issue is one problem found in a document.
	Issue struct {
		// Path is the JSON-style path to the value, such as "invocations[0].anchor".
		Path    string
		Message string
	}

	// ValidationError lists every issue CUE reported for one document.
	ValidationError struct {
		File   string
		Issues []Issue
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		lines[i] = is.Message
		if is.Path != "" {
			lines[i] = is.Path + ": " + is.Message
		}
	}
	if len(lines) == 1 {
		return fmt.Sprintf("%s: %s", e.File, lines[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation so callers can use errors.Is for programmatic detection.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// FormatError converts a CUE error into a *ValidationError whose issues
// carry JSON-style paths. Non-CUE errors are wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	ve := &ValidationError{File: file}
	for _, e := range errs {
		path := formatPath(e.Path())
		msg := e.Error()
		// CUE sometimes repeats the path at the start of the message.
		if path != "" && strings.HasPrefix(msg, path) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		ve.Issues = append(ve.Issues, Issue{Path: path, Message: msg})
	}
	return ve
}

// formatPath converts a CUE path such as ["invocations", "0", "anchor"] into
// "invocations[0].anchor".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error wrapping ErrFileTooLarge when data exceeds maxSize.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes: %w",
			file, len(data), maxSize, ErrFileTooLarge)
	}
	return nil
}
