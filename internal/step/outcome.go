// SPDX-License-Identifier: MPL-2.0

package step

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/parastep/parastep/internal/execctx"
)

const (
	// CategoryNone is reported for successful invocations.
	CategoryNone Category = ""
	// CategoryConfiguration covers a malformed anchor or a missing required input.
	CategoryConfiguration Category = "configuration"
	// CategoryResolution covers empty, whitespace-only or absent path references.
	CategoryResolution Category = "resolution"
	// CategoryDomain covers failures of the step's own logic.
	CategoryDomain Category = "domain"
	// CategoryInternal covers panics and any unclassified escaping error.
	CategoryInternal Category = "internal"
)

type (
	// Category is the error category of an invocation outcome.
	Category string

	// DomainError is a failure of the step's own logic (bad lock file,
	// placeholder not found). Record it with Fail; do not return it.
	DomainError struct {
		Message string
	}

	// PanicError wraps a value recovered from a panicking step. Its message
	// omits the stack so outcomes stay comparable.
	PanicError struct {
		Value any
		Stack []byte
	}

	// Outcome is the comparable result of one invocation.
	Outcome struct {
		Success     bool         `json:"success"`
		Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
		Outputs     Outputs      `json:"outputs,omitempty"`
		Category    Category     `json:"category,omitempty"`
		// Error is the message of the escaping error, if any.
		Error string `json:"error,omitempty"`
	}
)

// String returns the string representation of the Category.
func (c Category) String() string { return string(c) }

// Categories returns every failure category in a fixed order.
func Categories() []Category {
	return []Category{CategoryConfiguration, CategoryResolution, CategoryDomain, CategoryInternal}
}

// Error implements the error interface.
func (e *DomainError) Error() string { return e.Message }

// Domainf returns a *DomainError with a formatted message.
func Domainf(format string, args ...any) *DomainError {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *PanicError) Error() string { return fmt.Sprintf("step panicked: %v", e.Value) }

// Fail records err as an error diagnostic. It returns nil so a step can
// write `return nil, step.Fail(diags, err)`.
func Fail(diags *Diagnostics, err error) error {
	diags.Errorf("%s", err.Error())
	return nil
}

// Classify maps an escaping error to its category. nil maps to CategoryNone.
func Classify(err error) Category {
	var domainErr *DomainError
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, execctx.ErrResolution):
		return CategoryResolution
	case errors.Is(err, execctx.ErrConfiguration):
		return CategoryConfiguration
	case errors.As(err, &domainErr):
		return CategoryDomain
	default:
		return CategoryInternal
	}
}

// Run executes one invocation of r. When r implements Contract it is bound
// to ec first. Inputs are cloned, panics are recovered into *PanicError, and
// the returned error is the escaping error (if any) for logging; the Outcome
// already carries its message and category.
func Run(ctx context.Context, r Runner, ec *execctx.ExecutionContext, in Inputs) (out Outcome, err error) {
	if c, ok := r.(Contract); ok {
		c.SetExecutionContext(ec)
	}

	diags := &Diagnostics{}
	var outputs Outputs
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
			outputs = nil
		}
		out = NewOutcome(outputs, diags, err)
	}()

	outputs, err = r.Execute(ctx, in.Clone(), diags)
	return out, err
}

// NewOutcome assembles an Outcome. An escaping error discards the outputs.
func NewOutcome(outputs Outputs, diags *Diagnostics, err error) Outcome {
	out := Outcome{Diagnostics: diags.Entries()}
	switch {
	case err != nil:
		out.Category = Classify(err)
		out.Error = err.Error()
	case diags.HasErrors():
		out.Category = CategoryDomain
		out.Outputs = outputs
	default:
		out.Success = true
		out.Outputs = outputs
	}
	if len(out.Outputs) == 0 {
		out.Outputs = nil
	}
	return out
}
