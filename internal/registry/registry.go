// SPDX-License-Identifier: MPL-2.0

// Package registry records which step types exist and which of them have
// been verified safe to run concurrently.
//
// The migrated marker is a static fact about a step type. The dispatcher
// reads it to pick a lane; it is never checked against the step's behavior
// at runtime. Tests audit the registry exhaustively instead.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/parastep/parastep/internal/step"
)

var (
	// ErrDuplicateType is returned when a step type is registered twice.
	ErrDuplicateType = errors.New("step type already registered")
	// ErrUnknownType is returned when a step type is not registered.
	ErrUnknownType = errors.New("unknown step type")
	// ErrMissingFactory is returned when a definition has no constructor.
	ErrMissingFactory = errors.New("step definition has no constructor")
)

type (
	// Definition describes one step type.
	Definition struct {
		Type    step.Type
		Summary string
		// New returns a fresh, unbound step instance. It is called once per
		// invocation; instances are never reused.
		New func() step.Runner
		// Migrated marks the type as verified to resolve every path and
		// variable through its ExecutionContext.
		Migrated bool
	}

	// Catalog resolves step types to definitions.
	Catalog interface {
		Lookup(t step.Type) (Definition, bool)
	}

	// Registry is a Catalog populated at startup. It is read-only once
	// dispatching begins and needs no locking.
	Registry struct {
		defs map[step.Type]Definition
	}

	// UnknownTypeError reports a lookup of an unregistered step type.
	UnknownTypeError struct {
		Type step.Type
	}

	// AuditEntry reports the migration state of one step type.
	AuditEntry struct {
		Type step.Type
		// HasContract is true when a fresh instance implements step.Contract.
		HasContract bool
		// Marked is the registered Migrated flag.
		Marked bool
	}
)

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown step type %q", string(e.Type))
}

// Unwrap returns ErrUnknownType so callers can use errors.Is for programmatic detection.
func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[step.Type]Definition)}
}

// Register adds def to the registry.
func (r *Registry) Register(def Definition) error {
	if err := def.Type.Validate(); err != nil {
		return err
	}
	if def.New == nil {
		return fmt.Errorf("%s: %w", def.Type, ErrMissingFactory)
	}
	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("%s: %w", def.Type, ErrDuplicateType)
	}
	r.defs[def.Type] = def
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level wiring of built-in steps.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the definition of t.
func (r *Registry) Lookup(t step.Type) (Definition, bool) {
	def, ok := r.defs[t]
	return def, ok
}

// Get is like Lookup but returns an *UnknownTypeError for unregistered types.
func (r *Registry) Get(t step.Type) (Definition, error) {
	def, ok := r.defs[t]
	if !ok {
		return Definition{}, &UnknownTypeError{Type: t}
	}
	return def, nil
}

// Types returns every registered type in lexical order.
func (r *Registry) Types() []step.Type {
	return slices.Sorted(maps.Keys(r.defs))
}

// IsMigrated reports whether t is registered and marked migrated.
func (r *Registry) IsMigrated(t step.Type) bool {
	return r.defs[t].Migrated
}

// Audit instantiates every registered type once and reports its migration
// state, ordered by type.
func (r *Registry) Audit() []AuditEntry {
	types := r.Types()
	out := make([]AuditEntry, 0, len(types))
	for _, t := range types {
		def := r.defs[t]
		_, hasContract := def.New().(step.Contract)
		out = append(out, AuditEntry{Type: t, HasContract: hasContract, Marked: def.Migrated})
	}
	return out
}

// Verified reports whether the type is safe to schedule concurrently.
func (e AuditEntry) Verified() bool { return e.HasContract && e.Marked }

// Inconsistent reports a type marked migrated that cannot receive an
// ExecutionContext. Such a marker is always wrong.
func (e AuditEntry) Inconsistent() bool { return e.Marked && !e.HasContract }
