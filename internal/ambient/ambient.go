// SPDX-License-Identifier: MPL-2.0

// Package ambient owns every mutation of process-wide state in parastep.
//
// The working directory is a property of the process, not of a goroutine, so
// any code that changes it must hold the package lock for the whole time the
// changed value is observable. Migrated steps never call into this package;
// only the dispatcher's exclusive lane (for unmigrated step types) and the
// dual-mode harness do.
package ambient

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// mu serializes working directory changes across the whole process.
var mu sync.Mutex

// WithWorkingDir runs fn with the process working directory set to dir and
// restores the previous directory before returning, even if fn panics.
// Calls are serialized; fn must not call WithWorkingDir itself.
func WithWorkingDir(dir string, fn func() error) (err error) {
	mu.Lock()
	defer mu.Unlock()

	original, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("reading working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("changing working directory to %s: %w", dir, err)
	}
	defer func() {
		if restoreErr := os.Chdir(original); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restoring working directory to %s: %w", original, restoreErr))
		}
	}()

	return fn()
}

// WorkingDir returns the current process working directory under the
// package lock, so it never observes a directory borrowed by WithWorkingDir.
func WorkingDir() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	return os.Getwd()
}
