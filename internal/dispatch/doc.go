// SPDX-License-Identifier: MPL-2.0

// Package dispatch runs batches of step invocations on a bounded worker pool.
//
// Each invocation gets a fresh step instance and a fresh ExecutionContext
// anchored at its own directory. Outcomes are collected into a slice indexed
// by submission position, so the returned Batch never depends on which
// worker ran what or in which order invocations finished.
//
// Step types that the registry does not mark as migrated run in an
// exclusive lane: the dispatcher waits for every other running invocation,
// holds the lane alone, and temporarily points the process working
// directory at the invocation's anchor.
package dispatch
