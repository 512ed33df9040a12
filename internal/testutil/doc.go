// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Helpers that touch process-global state (MustChdir, MustSetenv,
// MustUnsetenv) must only be used from tests that do not call t.Parallel.
// The filesystem helpers (MustMkdirAll, MustWriteFile, MustReadFile) are
// safe anywhere.
package testutil
