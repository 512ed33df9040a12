// SPDX-License-Identifier: MPL-2.0

// Package steps is the library of built-in step types.
//
// Every type except touch-files embeds step.Base and resolves paths and
// environment variables only through its ExecutionContext. touch-files is
// kept unmigrated: it resolves paths against the process working directory
// and the dispatcher runs it in the exclusive lane.
package steps
