// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"io"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/parastep/parastep/internal/ambient"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
)

const (
	// StatusCompleted means the invocation was started and its Outcome is final.
	StatusCompleted Status = "completed"
	// StatusSkipped means the batch was cancelled before the invocation started.
	StatusSkipped Status = "skipped"

	// LaneParallel runs alongside other migrated invocations.
	LaneParallel Lane = "parallel"
	// LaneExclusive runs alone with the working directory set to the anchor.
	LaneExclusive Lane = "exclusive"
)

type (
	// Status reports whether an invocation ran.
	Status string

	// Lane names the scheduling lane an invocation ran in.
	Lane string

	// Invocation is one unit of work submitted to Dispatch.
	Invocation struct {
		// ID labels the invocation in logs and reports.
		ID     string
		Type   step.Type
		Anchor string
		Inputs step.Inputs
		// EnvFiles are dotenv overlays resolved against Anchor.
		EnvFiles []string
		// Env overrides individual variables after overlays are applied.
		Env map[string]string
	}

	// Result is the per-invocation record in a Batch.
	Result struct {
		Invocation Invocation
		Status     Status
		Lane       Lane
		Outcome    step.Outcome
		// Err is the escaping error (or ctx.Err() for skipped invocations).
		// Its message and category are already part of Outcome.
		Err      error
		Duration time.Duration
	}

	// Batch holds results in submission order.
	Batch struct {
		Results []Result
	}

	// Dispatcher schedules invocations. It is safe to call Dispatch from
	// several goroutines; the exclusive lane is shared between them.
	Dispatcher struct {
		catalog  registry.Catalog
		workers  int
		logger   *log.Logger
		env      execctx.EnvSource
		snapshot SnapshotMode

		// lane is read-locked by parallel invocations and write-locked by
		// exclusive ones.
		lane sync.RWMutex
	}
)

// New creates a Dispatcher resolving step types through catalog.
func New(catalog registry.Catalog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		catalog:  catalog,
		workers:  runtime.NumCPU(),
		logger:   log.New(io.Discard),
		snapshot: SnapshotPerInvocation,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the configured pool size.
func (d *Dispatcher) Workers() int { return d.workers }

// Dispatch runs every invocation and blocks until all of them have completed
// or been skipped. Once ctx is cancelled no new invocation starts; running
// ones finish undisturbed.
func (d *Dispatcher) Dispatch(ctx context.Context, invs []Invocation) *Batch {
	batch := &Batch{Results: make([]Result, len(invs))}

	snap := d.snapshotter()

	// Admission waits on ctx so a cancelled batch stops handing out slots;
	// per-invocation failures land in Result, never in a group error.
	slots := semaphore.NewWeighted(int64(d.workers))
	var wg sync.WaitGroup
	d.logger.Debug("dispatching batch", "invocations", len(invs), "workers", d.workers, "snapshot", d.snapshot)

	for i, inv := range invs {
		if err := slots.Acquire(ctx, 1); err != nil {
			d.logger.Debug("skipping invocation", "id", inv.ID, "reason", err)
			batch.Results[i] = Result{Invocation: inv, Status: StatusSkipped, Err: err}
			continue
		}
		wg.Go(func() {
			defer slots.Release(1)
			batch.Results[i] = d.run(context.WithoutCancel(ctx), inv, snap)
		})
	}
	wg.Wait()

	return batch
}

// snapshotter returns the host environment provider for one Dispatch call.
func (d *Dispatcher) snapshotter() func() (map[string]string, error) {
	if d.snapshot != SnapshotPerBatch {
		return d.env.Host
	}
	host, err := d.env.Host()
	return func() (map[string]string, error) {
		if err != nil {
			return nil, err
		}
		return maps.Clone(host), nil
	}
}

func (d *Dispatcher) run(ctx context.Context, inv Invocation, snap func() (map[string]string, error)) Result {
	start := time.Now()
	logger := d.logger.With("id", inv.ID, "type", inv.Type)

	res := Result{Invocation: inv, Status: StatusCompleted, Lane: LaneParallel}
	fail := func(err error) Result {
		res.Err = err
		res.Outcome = step.NewOutcome(nil, &step.Diagnostics{}, err)
		res.Duration = time.Since(start)
		logger.Warn("invocation rejected", "err", err)
		return res
	}

	def, ok := d.catalog.Lookup(inv.Type)
	if !ok {
		return fail(&execctx.ConfigurationError{Subject: "step type", Value: string(inv.Type), Reason: "not registered"})
	}
	host, err := snap()
	if err != nil {
		return fail(err)
	}
	ec, err := execctx.Build(inv.Anchor, host, inv.EnvFiles, inv.Env)
	if err != nil {
		return fail(err)
	}

	runner := def.New()
	if def.Migrated {
		d.lane.RLock()
		res.Outcome, res.Err = step.Run(ctx, runner, ec, inv.Inputs)
		d.lane.RUnlock()
	} else {
		res.Lane = LaneExclusive
		ran := false
		d.lane.Lock()
		chdirErr := ambient.WithWorkingDir(ec.AnchorDirectory(), func() error {
			ran = true
			res.Outcome, res.Err = step.Run(ctx, runner, ec, inv.Inputs)
			return nil
		})
		d.lane.Unlock()
		switch {
		case !ran:
			return fail(chdirErr)
		case chdirErr != nil:
			logger.Error("restoring working directory", "err", chdirErr)
		}
	}
	res.Duration = time.Since(start)

	switch {
	case res.Err != nil:
		logger.Error("invocation failed", "category", res.Outcome.Category, "err", res.Err, "duration", res.Duration)
	case !res.Outcome.Success:
		logger.Warn("invocation reported errors", "diagnostics", len(res.Outcome.Diagnostics), "duration", res.Duration)
	default:
		logger.Debug("invocation completed", "lane", res.Lane, "duration", res.Duration)
	}
	return res
}

// Succeeded reports whether every invocation ran and succeeded.
func (b *Batch) Succeeded() bool {
	for _, r := range b.Results {
		if r.Status != StatusCompleted || !r.Outcome.Success {
			return false
		}
	}
	return true
}

// Failed returns the completed invocations whose outcome is not successful.
func (b *Batch) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Status == StatusCompleted && !r.Outcome.Success {
			out = append(out, r)
		}
	}
	return out
}

// Skipped returns the number of invocations that never started.
func (b *Batch) Skipped() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusSkipped {
			n++
		}
	}
	return n
}

// Outcomes returns the outcomes in submission order.
func (b *Batch) Outcomes() []step.Outcome {
	out := make([]step.Outcome, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Outcome
	}
	return out
}
