// SPDX-License-Identifier: MPL-2.0

package step

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	// SeverityError marks a diagnostic that fails the invocation.
	SeverityError Severity = "error"
	// SeverityWarning marks a diagnostic that does not fail the invocation.
	SeverityWarning Severity = "warning"
	// SeverityMessage marks an informational diagnostic.
	SeverityMessage Severity = "message"
)

var (
	// ErrInvalidType is the sentinel error wrapped by InvalidTypeError.
	ErrInvalidType = errors.New("invalid step type")
	// ErrInvalidSeverity is the sentinel error wrapped by InvalidSeverityError.
	ErrInvalidSeverity = errors.New("invalid diagnostic severity")

	typePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
)

type (
	// Type names a kind of step, such as "write-manifest".
	Type string

	// InvalidTypeError is returned when a Type is not kebab-case.
	InvalidTypeError struct {
		Value Type
	}

	// Severity classifies a diagnostic.
	Severity string

	// InvalidSeverityError is returned when a Severity is not recognized.
	InvalidSeverityError struct {
		Value Severity
	}
)

// Error implements the error interface.
func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid step type %q: must be lowercase kebab-case", string(e.Value))
}

// Unwrap returns ErrInvalidType so callers can use errors.Is for programmatic detection.
func (e *InvalidTypeError) Unwrap() error { return ErrInvalidType }

// Error implements the error interface.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid diagnostic severity %q (valid: error, warning, message)", string(e.Value))
}

// Unwrap returns ErrInvalidSeverity so callers can use errors.Is for programmatic detection.
func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// String returns the string representation of the Type.
func (t Type) String() string { return string(t) }

// Validate returns nil if the Type is lowercase kebab-case.
func (t Type) Validate() error {
	if !typePattern.MatchString(string(t)) {
		return &InvalidTypeError{Value: t}
	}
	return nil
}

// String returns the string representation of the Severity.
func (s Severity) String() string { return string(s) }

// Validate returns nil if the Severity is one of the defined severities.
func (s Severity) Validate() error {
	switch s {
	case SeverityError, SeverityWarning, SeverityMessage:
		return nil
	default:
		return &InvalidSeverityError{Value: s}
	}
}
