// SPDX-License-Identifier: MPL-2.0

// Package execctx provides ExecutionContext, the immutable per-invocation
// replacement for the process working directory and environment.
//
// A step receives exactly one ExecutionContext for the lifetime of one
// invocation. Every relative path the step touches is resolved with
// GetAbsolutePath against the context's anchor directory, and every
// environment variable is read from the snapshot captured when the context
// was built. Nothing in this package reads the live working directory or
// the live process environment after construction.
//
// Errors fall into two documented categories: ConfigurationError for a
// missing or malformed anchor (or a missing required input), and
// ResolutionError for an empty or whitespace-only path reference.
package execctx
