// SPDX-License-Identifier: MPL-2.0

package execctx

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// Environment inherit modes.
const (
	// InheritAll copies every host variable.
	InheritAll InheritMode = "all"
	// InheritNone starts from an empty environment.
	InheritNone InheritMode = "none"
	// InheritAllow copies only the names listed in EnvSource.Allow.
	InheritAllow InheritMode = "allow"
)

type (
	// InheritMode controls host environment inheritance.
	InheritMode string

	// EnvSource produces environment snapshots for invocations.
	//
	// Precedence, lowest first:
	//
	//  1. Host environment, filtered by Inherit
	//  2. Dotenv overlay files, in order, resolved against the anchor
	//  3. Explicit overrides supplied by the caller
	EnvSource struct {
		// Environ returns the host environment as "KEY=VALUE" strings.
		// When nil, os.Environ is used.
		Environ func() []string
		// Inherit defaults to InheritAll when empty.
		Inherit InheritMode
		// Allow lists the inherited names when Inherit is InheritAllow.
		Allow []string
	}

	// InvalidInheritModeError is returned when an InheritMode is not recognized.
	InvalidInheritModeError struct {
		Value InheritMode
	}
)

// Error implements the error interface.
func (e *InvalidInheritModeError) Error() string {
	return fmt.Sprintf("invalid environment inherit mode %q (valid: all, none, allow)", string(e.Value))
}

// Unwrap returns ErrConfiguration so callers can use errors.Is for programmatic detection.
func (e *InvalidInheritModeError) Unwrap() error { return ErrConfiguration }

// Validate returns nil for a known mode or the empty string.
func (m InheritMode) Validate() error {
	switch m {
	case "", InheritAll, InheritNone, InheritAllow:
		return nil
	default:
		return &InvalidInheritModeError{Value: m}
	}
}

// String returns the string representation of the InheritMode.
func (m InheritMode) String() string { return string(m) }

// CaptureEnvironment converts an os.Environ-style slice into a map. Entries
// without '=' are ignored; for duplicate names the last entry wins, matching
// how the process environment resolves them. On Windows the hidden
// "=C:=C:\dir" entries are skipped.
func CaptureEnvironment(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		// Skip a leading '=' so drive-letter entries never become "" keys.
		idx := strings.IndexByte(entry, '=')
		if idx <= 0 {
			continue
		}
		env[entry[:idx]] = entry[idx+1:]
	}
	return env
}

// Host captures the host environment once, filtered by the inherit mode.
// The returned map is owned by the caller.
func (s EnvSource) Host() (map[string]string, error) {
	if err := s.Inherit.Validate(); err != nil {
		return nil, err
	}
	if s.Inherit == InheritNone {
		return map[string]string{}, nil
	}

	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := CaptureEnvironment(environ())
	if s.Inherit == InheritAllow {
		maps.DeleteFunc(env, func(name, _ string) bool {
			return !slices.Contains(s.Allow, name)
		})
	}
	return env, nil
}

// Build returns the ExecutionContext for one invocation anchored at anchor.
// base is the host snapshot to start from (see Host); it is not modified.
// Overlay file references are resolved against anchor.
func Build(anchor string, base map[string]string, files []string, overrides map[string]string) (*ExecutionContext, error) {
	// The bare context anchors overlay resolution before the final snapshot exists.
	resolver, err := New(anchor, nil)
	if err != nil {
		return nil, err
	}

	env := make(map[string]string, len(base)+len(overrides))
	maps.Copy(env, base)
	for _, ref := range files {
		if err := loadOverlay(resolver, env, ref); err != nil {
			return nil, err
		}
	}
	maps.Copy(env, overrides)

	return New(anchor, env)
}
