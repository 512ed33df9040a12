// SPDX-License-Identifier: MPL-2.0

package execctx

import (
	"maps"
	"slices"
	"strings"

	"github.com/parastep/parastep/pkg/fspath"
	"github.com/parastep/parastep/pkg/types"
)

// ExecutionContext binds one step invocation to an anchor directory and an
// environment snapshot. It is never mutated after New returns, so it needs
// no locking; it must still never be shared between concurrently running
// invocations.
type ExecutionContext struct {
	anchor types.FilesystemPath
	env    map[string]string
}

// New builds an ExecutionContext. The anchor must be a non-empty absolute
// path; otherwise a *ConfigurationError is returned. The env map is copied,
// so later changes by the caller are not observed.
func New(anchor string, env map[string]string) (*ExecutionContext, error) {
	dir := types.FilesystemPath(anchor)
	if err := dir.Validate(); err != nil {
		return nil, &ConfigurationError{Subject: "anchor directory", Value: anchor, Reason: "must be non-empty"}
	}
	if !fspath.IsAbs(dir) {
		return nil, &ConfigurationError{Subject: "anchor directory", Value: anchor, Reason: "must be an absolute path"}
	}

	snapshot := make(map[string]string, len(env))
	maps.Copy(snapshot, env)

	return &ExecutionContext{
		anchor: fspath.FromSlash(dir),
		env:    snapshot,
	}, nil
}

// AnchorDirectory returns the absolute directory relative paths resolve against.
func (c *ExecutionContext) AnchorDirectory() string {
	if c == nil {
		return ""
	}
	return string(c.anchor)
}

// GetAbsolutePath resolves path against the anchor directory.
//
// Empty and whitespace-only paths fail with *ResolutionError. Absolute paths
// are returned byte-for-byte unchanged. Relative paths are joined to the
// anchor after separator normalization only: "." and ".." segments and
// doubled separators are kept as written, and symlinks are not evaluated.
// The result depends only on (anchor, path).
func (c *ExecutionContext) GetAbsolutePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &ResolutionError{Path: path}
	}
	if c == nil {
		return "", &ConfigurationError{Subject: "execution context", Value: path, Reason: "no execution context is bound to the step"}
	}
	if fspath.IsAbs(types.FilesystemPath(path)) {
		return path, nil
	}
	return string(fspath.Append(c.anchor, string(fspath.FromSlash(types.FilesystemPath(path))))), nil
}

// GetEnvironmentVariable reads name from the snapshot. ok is false when the
// variable was not present at capture time; an empty value with ok == true
// means the variable was set to the empty string.
func (c *ExecutionContext) GetEnvironmentVariable(name string) (value string, ok bool) {
	if c == nil {
		return "", false
	}
	value, ok = c.env[name]
	return value, ok
}

// Environ returns the snapshot as KEY=VALUE pairs sorted by key, suitable
// for handing to an interpreter or child process.
func (c *ExecutionContext) Environ() []string {
	if c == nil {
		return nil
	}
	keys := slices.Sorted(maps.Keys(c.env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.env[k])
	}
	return out
}

// Len returns the number of variables in the snapshot.
func (c *ExecutionContext) Len() int {
	if c == nil {
		return 0
	}
	return len(c.env)
}
