// SPDX-License-Identifier: MPL-2.0

// Package uroot serves common file utilities to the embedded shell from the
// u-root project (github.com/u-root/u-root/pkg/core), so run-script steps do
// not depend on binaries installed on the host.
//
// Every utility runs in-process with the interpreter's current directory,
// standard streams and environment, never the process working directory or
// environment. Commands that are not built in fall through to the next exec
// handler.
//
// Provided utilities: base64, cat, chmod, cp, find, gzip, ls, mkdir, mktemp,
// mv, rm, shasum, tar, touch.
//
// Errors are prefixed with "[uroot] <name>:" so they are distinguishable from
// failures of host binaries in a script's stderr.
package uroot
