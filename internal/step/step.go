// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"

	"github.com/parastep/parastep/internal/execctx"
)

type (
	// Runner is implemented by every step.
	//
	// Execute receives a private copy of the invocation inputs and a
	// diagnostic sink owned by the invocation. Domain failures are recorded
	// with Fail and reported as success false; an error returned from
	// Execute escapes the step and is classified by Classify.
	Runner interface {
		Execute(ctx context.Context, in Inputs, diags *Diagnostics) (Outputs, error)
	}

	// Contract is implemented by steps that resolve every path and
	// environment variable through an ExecutionContext. The context is set
	// once, before Execute, and never changes during the invocation.
	Contract interface {
		Runner
		ExecutionContext() *execctx.ExecutionContext
		SetExecutionContext(ec *execctx.ExecutionContext)
	}

	// Base provides the ExecutionContext property for steps to embed.
	Base struct {
		ec *execctx.ExecutionContext
	}
)

// ExecutionContext returns the bound context, or nil before binding.
func (b *Base) ExecutionContext() *execctx.ExecutionContext { return b.ec }

// SetExecutionContext binds ec to the step.
func (b *Base) SetExecutionContext(ec *execctx.ExecutionContext) { b.ec = ec }

// Path returns the absolute form of the named scalar input. An absent input
// is treated as the empty string and fails with a resolution error.
func (b *Base) Path(in Inputs, name string) (string, error) {
	raw, _ := in.Scalar(name)
	return b.ec.GetAbsolutePath(raw)
}

// Getenv reads name from the bound environment snapshot.
func (b *Base) Getenv(name string) (string, bool) {
	return b.ec.GetEnvironmentVariable(name)
}
