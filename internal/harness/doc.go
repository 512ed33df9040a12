// SPDX-License-Identifier: MPL-2.0

// Package harness verifies that a step type behaves the same no matter
// where the process working directory points and no matter how many
// invocations run at once.
//
// CompareModes runs one case twice: first with the working directory set to
// the case's anchor (the legacy arrangement), then from an empty scratch
// directory (the isolated arrangement). CheckBoundaries repeats that for an
// absent, empty and whitespace-only path input. CheckConcurrent runs a set of
// cases one after another and then all at once behind a barrier. Every
// comparison yields a ParityRecord.
package harness
