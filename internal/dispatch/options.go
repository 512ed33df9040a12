// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/parastep/parastep/internal/execctx"
)

const (
	// SnapshotPerInvocation captures the host environment immediately
	// before each invocation runs.
	SnapshotPerInvocation SnapshotMode = "invocation"
	// SnapshotPerBatch captures the host environment once when Dispatch
	// is called and shares the (copied) result with every invocation.
	SnapshotPerBatch SnapshotMode = "batch"
)

// ErrInvalidSnapshotMode is the sentinel error wrapped by InvalidSnapshotModeError.
var ErrInvalidSnapshotMode = errors.New("invalid snapshot mode")

type (
	// SnapshotMode selects when host environment snapshots are taken.
	SnapshotMode string

	// InvalidSnapshotModeError is returned when a SnapshotMode is not recognized.
	InvalidSnapshotModeError struct {
		Value SnapshotMode
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)
)

// Error implements the error interface.
func (e *InvalidSnapshotModeError) Error() string {
	return fmt.Sprintf("invalid snapshot mode %q (valid: invocation, batch)", string(e.Value))
}

// Unwrap returns ErrInvalidSnapshotMode so callers can use errors.Is for programmatic detection.
func (e *InvalidSnapshotModeError) Unwrap() error { return ErrInvalidSnapshotMode }

// String returns the string representation of the SnapshotMode.
func (m SnapshotMode) String() string { return string(m) }

// Validate returns nil if the SnapshotMode is one of the defined modes.
func (m SnapshotMode) Validate() error {
	switch m {
	case SnapshotPerInvocation, SnapshotPerBatch:
		return nil
	default:
		return &InvalidSnapshotModeError{Value: m}
	}
}

// WithWorkers sets the pool size. Values below 1 are treated as 1.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		d.workers = max(n, 1)
	}
}

// WithLogger sets the logger. Default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithEnvSource sets how host environment snapshots are produced.
func WithEnvSource(src execctx.EnvSource) Option {
	return func(d *Dispatcher) {
		d.env = src
	}
}

// WithSnapshotMode selects per-invocation or per-batch snapshots.
// Default is SnapshotPerInvocation.
func WithSnapshotMode(m SnapshotMode) Option {
	return func(d *Dispatcher) {
		d.snapshot = m
	}
}
