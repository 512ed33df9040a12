// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
	ErrInvalidFilesystemPath = errors.New("invalid filesystem path")
	// ErrRelativeFilesystemPath is returned by ValidateAbsolute for relative paths.
	ErrRelativeFilesystemPath = errors.New("filesystem path is not absolute")
)

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// A valid path must be non-empty and not whitespace-only.
	// The zero value ("") is invalid: a path must always point somewhere.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty or whitespace-only.
	InvalidFilesystemPathError struct {
		Value FilesystemPath
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns nil if the path is non-empty and not whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// ValidateAbsolute is Validate plus a check that the path is absolute on the
// host platform.
func (p FilesystemPath) ValidateAbsolute() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !filepath.IsAbs(string(p)) {
		return fmt.Errorf("%q: %w", string(p), ErrRelativeFilesystemPath)
	}
	return nil
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility.
func (e *InvalidFilesystemPathError) Unwrap() error { return ErrInvalidFilesystemPath }
