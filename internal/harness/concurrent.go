// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
)

// ErrNotMigrated is wrapped by NotMigratedError.
var ErrNotMigrated = errors.New("step type is not marked migrated")

type (
	// NotMigratedError rejects a concurrency case whose step type runs in
	// the exclusive lane. Such a step would wait for the write lock while
	// migrated steps hold read locks at the barrier, and neither side
	// could proceed.
	NotMigratedError struct {
		Index int
		Type  step.Type
	}

	// barrier releases every waiter once n of them have arrived, or when
	// the verification context is done. Steps run on a context detached
	// from cancellation, so the barrier keeps its own.
	barrier struct {
		mu      sync.Mutex
		pending int
		release chan struct{}
		done    <-chan struct{}
	}

	// barrierCatalog wraps step types so every instance waits on the
	// barrier before executing.
	barrierCatalog struct {
		inner   registry.Catalog
		barrier *barrier
	}

	barrierRunner struct {
		inner   step.Runner
		barrier *barrier
	}

	barrierContract struct {
		step.Contract
		barrier *barrier
	}
)

// Error implements the error interface.
func (e *NotMigratedError) Error() string {
	return fmt.Sprintf("concurrency case %d: %s: %s", e.Index, e.Type, ErrNotMigrated)
}

// Unwrap returns ErrNotMigrated.
func (e *NotMigratedError) Unwrap() error { return ErrNotMigrated }

func newBarrier(ctx context.Context, n int) *barrier {
	b := &barrier{pending: n, release: make(chan struct{}), done: ctx.Done()}
	if n <= 0 {
		close(b.release)
	}
	return b
}

func (b *barrier) wait() {
	b.mu.Lock()
	b.pending--
	if b.pending == 0 {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-b.done:
	}
}

// complete reports whether every expected waiter arrived. After a release
// by cancellation it is false.
func (b *barrier) complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending <= 0
}

func (c barrierCatalog) Lookup(t step.Type) (registry.Definition, bool) {
	def, ok := c.inner.Lookup(t)
	if !ok {
		return def, ok
	}
	inner := def.New
	def.New = func() step.Runner {
		r := inner()
		if contract, isContract := r.(step.Contract); isContract {
			return &barrierContract{Contract: contract, barrier: c.barrier}
		}
		return &barrierRunner{inner: r, barrier: c.barrier}
	}
	return def, true
}

func (r *barrierRunner) Execute(ctx context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	r.barrier.wait()
	return r.inner.Execute(ctx, in, diags)
}

func (r *barrierContract) Execute(ctx context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	r.barrier.wait()
	return r.Contract.Execute(ctx, in, diags)
}

// CheckConcurrent runs every case sequentially on the calling goroutine,
// then dispatches all of them at once on len(cases) workers with every step
// held at a barrier until all have started, and compares each concurrent
// capture with its sequential baseline. Every case must use a migrated step
// type (*NotMigratedError otherwise), and cases must not write to the same
// output files. If ctx ends before all cases reach the barrier, every record
// gets a problem.
func (h *Harness) CheckConcurrent(ctx context.Context, cases []Case) ([]ParityRecord, error) {
	records := make([]ParityRecord, len(cases))

	for i, c := range cases {
		def, ok := h.catalog.Lookup(c.Type)
		if !ok {
			return nil, &registry.UnknownTypeError{Type: c.Type}
		}
		if !def.Migrated {
			return nil, &NotMigratedError{Index: i, Type: c.Type}
		}
	}

	for i, c := range cases {
		def, _ := h.catalog.Lookup(c.Type)
		ec, err := c.context()
		if err != nil {
			return nil, err
		}

		records[i] = ParityRecord{Label: c.label(fmt.Sprintf("concurrent[%d]", i)), Type: c.Type}
		records[i].Baseline = runCapture(ctx, def.New(), ec, c.Inputs)
		if err := removeFiles(records[i].Baseline.Files); err != nil {
			return nil, err
		}
	}

	gate := newBarrier(ctx, len(cases))
	wrapped := barrierCatalog{inner: h.catalog, barrier: gate}
	d := dispatch.New(wrapped,
		dispatch.WithWorkers(len(cases)),
		dispatch.WithLogger(h.logger),
		dispatch.WithEnvSource(execctx.EnvSource{Inherit: execctx.InheritNone}),
	)

	invs := make([]dispatch.Invocation, len(cases))
	for i, c := range cases {
		invs[i] = dispatch.Invocation{
			ID:       records[i].Label,
			Type:     c.Type,
			Anchor:   c.Anchor,
			Inputs:   c.Inputs,
			EnvFiles: c.EnvFiles,
			Env:      c.Env,
		}
	}
	batch := d.Dispatch(ctx, invs)
	simultaneous := gate.complete()

	for i, r := range batch.Results {
		records[i].Candidate = Capture{Outcome: r.Outcome, Files: readOutputFiles(r.Outcome.Outputs)}
		if r.Status != dispatch.StatusCompleted {
			records[i].Problems = append(records[i].Problems, fmt.Sprintf("concurrent run %s", r.Status))
		}
		if !simultaneous {
			records[i].Problems = append(records[i].Problems, "barrier released by cancellation before every case started")
		}
		records[i].compare()
	}
	h.logger.Debug("checked concurrent parity", "cases", len(cases), "simultaneous", simultaneous)
	return records, nil
}
