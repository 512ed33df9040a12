// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitSuccess means every invocation in a batch succeeded.
	ExitSuccess ExitCode = 0
	// ExitStepFailed means at least one invocation reported failure.
	ExitStepFailed ExitCode = 1
	// ExitUsage means the command line or a plan file was malformed.
	ExitUsage ExitCode = 2
	// ExitParityMismatch means the dual-mode harness found a divergence.
	ExitParityMismatch ExitCode = 3
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

var exitReasons = map[ExitCode]string{
	ExitSuccess:        "success",
	ExitStepFailed:     "invocation failed",
	ExitUsage:          "usage error",
	ExitParityMismatch: "parity mismatch",
}

type (
	// ExitCode is a process exit status. POSIX limits it to 0-255.
	ExitCode int

	// InvalidExitCodeError reports an ExitCode outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d outside 0-255", e.Value)
}

// Unwrap returns ErrInvalidExitCode.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate rejects codes the operating system would truncate.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// Reason names the codes parastep exits with; other codes have no reason.
func (c ExitCode) Reason() string { return exitReasons[c] }

// String returns the decimal form.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
