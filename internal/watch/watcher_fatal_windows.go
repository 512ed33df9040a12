// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// fatalErrnos are ReadDirectoryChangesW failures: handle exhaustion
// (ERROR_TOO_MANY_OPEN_FILES), a watched directory that went away
// (ERROR_INVALID_HANDLE) and no memory for the buffer (ERROR_NOT_ENOUGH_MEMORY).
var fatalErrnos = []error{syscall.Errno(4), syscall.Errno(6), syscall.Errno(8)}
