// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/parastep/parastep/pkg/types"
)

// ExitError carries the process exit code out of a RunE handler. A nil Err
// means the command already reported the failure on its output.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the cause's message, or the exit status and its reason.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if reason := e.Code.Reason(); reason != "" {
		return fmt.Sprintf("exit status %d (%s)", e.Code, reason)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the cause.
func (e *ExitError) Unwrap() error { return e.Err }
