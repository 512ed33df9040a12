// SPDX-License-Identifier: MPL-2.0

// Package step defines the contract between the dispatcher and a build step.
//
// Every step implements Runner. A step that has been migrated away from the
// process working directory and the process environment also implements
// Contract, usually by embedding Base, and routes every path and variable
// lookup through the ExecutionContext it is handed. Run executes one
// invocation, turning the step's outputs, diagnostics, escaping errors and
// panics into an Outcome that is safe to compare across runs.
package step
