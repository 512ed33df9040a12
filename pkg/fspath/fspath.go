// SPDX-License-Identifier: MPL-2.0

// Package fspath provides typed wrappers around path/filepath functions that
// accept and return types.FilesystemPath. None of the wrappers consult the
// process working directory except Abs, which exists for host glue only.
package fspath

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/parastep/parastep/pkg/types"
)

// Append joins rel onto base with exactly one separator between them and no
// cleaning: "." and ".." segments and doubled separators in rel survive.
// Unlike filepath.Join, the result names what the caller wrote.
func Append(base types.FilesystemPath, rel string) types.FilesystemPath {
	sep := string(filepath.Separator)
	return types.FilesystemPath(strings.TrimSuffix(string(base), sep) + sep + rel)
}

// Dir wraps filepath.Dir for FilesystemPath.
func Dir(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Dir(string(p)))
}

// Base wraps filepath.Base for FilesystemPath.
func Base(p types.FilesystemPath) string {
	return filepath.Base(string(p))
}

// Abs wraps filepath.Abs for FilesystemPath. Relative inputs are resolved
// against the process working directory, so steps must never call it.
func Abs(p types.FilesystemPath) (types.FilesystemPath, error) {
	abs, err := filepath.Abs(string(p))
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return types.FilesystemPath(abs), nil
}

// Clean wraps filepath.Clean for FilesystemPath.
func Clean(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Clean(string(p)))
}

// FromSlash wraps filepath.FromSlash for FilesystemPath. Converts forward
// slashes to the OS-specific path separator.
func FromSlash(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.FromSlash(string(p)))
}

// IsAbs wraps filepath.IsAbs for FilesystemPath.
func IsAbs(p types.FilesystemPath) bool {
	return filepath.IsAbs(string(p))
}

// Rel wraps filepath.Rel for FilesystemPath.
func Rel(base, target types.FilesystemPath) (types.FilesystemPath, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", fmt.Errorf("computing relative path: %w", err)
	}
	return types.FilesystemPath(rel), nil
}
