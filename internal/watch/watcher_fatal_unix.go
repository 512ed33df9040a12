// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// fatalErrnos are inotify resource-exhaustion errors: the per-user watch
// limit and the descriptor limits. Retrying cannot help once one is hit.
var fatalErrnos = []error{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
