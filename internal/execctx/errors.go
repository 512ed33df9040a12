// SPDX-License-Identifier: MPL-2.0

package execctx

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrResolution is the sentinel error wrapped by ResolutionError.
	ErrResolution = errors.New("resolution error")
)

type (
	// ConfigurationError reports a malformed or missing anchor directory, a
	// missing required input, or an unbound execution context. It is fatal to
	// the single invocation that produced it.
	ConfigurationError struct {
		// Subject names what was misconfigured ("anchor directory", "input").
		Subject string
		// Value is the offending value or input name.
		Value string
		// Reason is a fixed, deterministic explanation.
		Reason string
	}

	// ResolutionError reports an empty or whitespace-only path reference
	// where a concrete path is required. Absent inputs surface as Path == "".
	ResolutionError struct {
		Path string
	}
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Subject, e.Value, e.Reason)
}

// Unwrap returns ErrConfiguration so callers can use errors.Is for programmatic detection.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve path %q: a non-empty path is required", e.Path)
}

// Unwrap returns ErrResolution so callers can use errors.Is for programmatic detection.
func (e *ResolutionError) Unwrap() error { return ErrResolution }

// MissingInputError returns the ConfigurationError used when a step's
// required input is absent.
func MissingInputError(name string) error {
	return &ConfigurationError{Subject: "input", Value: name, Reason: "required input is missing"}
}

// InvalidInputError returns the ConfigurationError used when a step's input
// is present but malformed (for example a non-boolean flag value).
func InvalidInputError(name, reason string) error {
	return &ConfigurationError{Subject: "input", Value: name, Reason: reason}
}
