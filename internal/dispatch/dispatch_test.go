// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
)

type (
	// resolveStep resolves Path and reports the NAME variable.
	resolveStep struct {
		step.Base
		active *atomic.Int32
	}

	// funcRunner adapts a function to a migrated step.
	funcRunner struct {
		step.Base
		fn func(ctx context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error)
	}

	// cwdStep is an unmigrated step that reads the process working directory.
	cwdStep struct {
		active *atomic.Int32
		seen   *atomic.Int32
	}
)

func (s *resolveStep) Execute(_ context.Context, in step.Inputs, _ *step.Diagnostics) (step.Outputs, error) {
	if s.active != nil {
		s.active.Add(1)
		defer s.active.Add(-1)
	}
	raw, _ := in.Scalar("Path")
	full, err := s.Path(in, "Path")
	if err != nil {
		return nil, err
	}
	name, _ := s.Getenv("NAME")
	return step.Outputs{"Out": {step.NewItem(raw, step.MetaFullPath, full, "Name", name)}}, nil
}

func (s *funcRunner) Execute(ctx context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	return s.fn(ctx, in, diags)
}

func (s *cwdStep) Execute(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error) {
	s.seen.Store(s.active.Load())
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return step.Outputs{"Cwd": {step.NewItem(wd)}}, nil
}

func funcDef(typ step.Type, fn func(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error)) registry.Definition {
	return registry.Definition{
		Type:     typ,
		New:      func() step.Runner { return &funcRunner{fn: fn} },
		Migrated: true,
	}
}

func pathInvocation(id, anchor, path string) Invocation {
	return Invocation{
		ID:     id,
		Type:   "resolve",
		Anchor: anchor,
		Inputs: step.Inputs{Scalars: map[string]string{"Path": path}},
		Env:    map[string]string{"NAME": id},
	}
}

func TestDispatch_SubmissionOrderAndIsolation(t *testing.T) {
	t.Parallel()

	reg := registry.New().MustRegister(registry.Definition{
		Type:     "resolve",
		New:      func() step.Runner { return &resolveStep{} },
		Migrated: true,
	})
	d := New(reg, WithWorkers(8), WithEnvSource(execctx.EnvSource{Inherit: execctx.InheritNone}))

	root := t.TempDir()
	const n = 48
	invs := make([]Invocation, n)
	for i := range n {
		invs[i] = pathInvocation(strconv.Itoa(i), filepath.Join(root, fmt.Sprintf("p%02d", i)), "obj/app.json")
	}

	batch := d.Dispatch(t.Context(), invs)
	if !batch.Succeeded() {
		t.Fatalf("batch failed: %+v", batch.Failed())
	}
	for i, r := range batch.Results {
		want := step.Outputs{"Out": {step.NewItem("obj/app.json",
			step.MetaFullPath, filepath.Join(root, fmt.Sprintf("p%02d", i), "obj", "app.json"),
			"Name", strconv.Itoa(i),
		)}}
		if diff := cmp.Diff(want, r.Outcome.Outputs); diff != "" {
			t.Errorf("result %d mismatch (-want +got):\n%s", i, diff)
		}
		if r.Lane != LaneParallel {
			t.Errorf("result %d lane = %q", i, r.Lane)
		}
	}
}

func TestDispatch_FailureIsolation(t *testing.T) {
	t.Parallel()

	reg := registry.New().MustRegister(
		registry.Definition{Type: "resolve", New: func() step.Runner { return &resolveStep{} }, Migrated: true},
		funcDef("explode", func(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error) {
			panic("kaboom")
		}),
	)
	d := New(reg, WithWorkers(4))
	anchor := t.TempDir()

	batch := d.Dispatch(t.Context(), []Invocation{
		pathInvocation("ok-1", anchor, "a"),
		{ID: "panic", Type: "explode", Anchor: anchor},
		pathInvocation("empty", anchor, ""),
		{ID: "unknown", Type: "no-such-step", Anchor: anchor},
		{ID: "bad-anchor", Type: "resolve", Anchor: "relative/dir"},
		pathInvocation("ok-2", anchor, "b"),
	})

	want := []struct {
		success  bool
		category step.Category
	}{
		{true, step.CategoryNone},
		{false, step.CategoryInternal},
		{false, step.CategoryResolution},
		{false, step.CategoryConfiguration},
		{false, step.CategoryConfiguration},
		{true, step.CategoryNone},
	}
	for i, w := range want {
		got := batch.Results[i]
		if got.Status != StatusCompleted {
			t.Errorf("%s: status = %q", got.Invocation.ID, got.Status)
		}
		if got.Outcome.Success != w.success || got.Outcome.Category != w.category {
			t.Errorf("%s: (success, category) = (%v, %q), want (%v, %q)",
				got.Invocation.ID, got.Outcome.Success, got.Outcome.Category, w.success, w.category)
		}
	}
	if got := len(batch.Failed()); got != 4 {
		t.Errorf("Failed() = %d results, want 4", got)
	}
	if batch.Results[3].Outcome.Error != `step type "no-such-step": not registered` {
		t.Errorf("unknown type message = %q", batch.Results[3].Outcome.Error)
	}
}

func TestDispatch_CancellationSkipsUnstarted(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool

	reg := registry.New().MustRegister(
		funcDef("block", func(ctx context.Context, _ step.Inputs, _ *step.Diagnostics) (step.Outputs, error) {
			close(started)
			<-release
			sawCancel.Store(ctx.Err() != nil)
			return step.Outputs{"Done": {step.NewItem("block")}}, nil
		}),
		funcDef("noop", func(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error) {
			return nil, nil
		}),
	)
	d := New(reg, WithWorkers(1))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() {
		<-started
		cancel()
		close(release)
	}()

	anchor := t.TempDir()
	batch := d.Dispatch(ctx, []Invocation{
		{ID: "first", Type: "block", Anchor: anchor},
		{ID: "second", Type: "noop", Anchor: anchor},
		{ID: "third", Type: "noop", Anchor: anchor},
	})

	if r := batch.Results[0]; r.Status != StatusCompleted || !r.Outcome.Success {
		t.Errorf("in-flight invocation = %+v, want completed and successful", r)
	}
	if sawCancel.Load() {
		t.Error("in-flight step observed the batch cancellation")
	}
	for _, r := range batch.Results[1:] {
		if r.Status != StatusSkipped || !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s: status = %q err = %v, want skipped", r.Invocation.ID, r.Status, r.Err)
		}
	}
	if batch.Skipped() != 2 || batch.Succeeded() {
		t.Errorf("Skipped() = %d, Succeeded() = %v", batch.Skipped(), batch.Succeeded())
	}
}

func TestDispatch_PoolBound(t *testing.T) {
	t.Parallel()

	const workers = 3
	var active, peak, runs atomic.Int32
	reg := registry.New().MustRegister(
		funcDef("busy", func(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error) {
			runs.Add(1)
			n := active.Add(1)
			defer active.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return nil, nil
		}),
	)
	d := New(reg, WithWorkers(workers))

	anchor := t.TempDir()
	invs := make([]Invocation, 12)
	for i := range invs {
		invs[i] = Invocation{ID: strconv.Itoa(i), Type: "busy", Anchor: anchor}
	}
	batch := d.Dispatch(t.Context(), invs)

	if got := runs.Load(); got != int32(len(invs)) {
		t.Errorf("ran %d invocations, want %d", got, len(invs))
	}
	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency = %d, want at most %d", got, workers)
	}
	for _, r := range batch.Results {
		if r.Status != StatusCompleted {
			t.Errorf("%s: status = %q, want completed", r.Invocation.ID, r.Status)
		}
	}
}

func TestDispatch_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	reg := registry.New().MustRegister(
		funcDef("count", func(context.Context, step.Inputs, *step.Diagnostics) (step.Outputs, error) {
			runs.Add(1)
			return nil, nil
		}),
	)
	d := New(reg, WithWorkers(4))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	anchor := t.TempDir()
	batch := d.Dispatch(ctx, []Invocation{
		{ID: "a", Type: "count", Anchor: anchor},
		{ID: "b", Type: "count", Anchor: anchor},
	})

	if got := runs.Load(); got != 0 {
		t.Errorf("ran %d invocations after cancellation, want 0", got)
	}
	if batch.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", batch.Skipped())
	}
}

func TestDispatch_SnapshotModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode  SnapshotMode
		calls int32
	}{
		{mode: SnapshotPerInvocation, calls: 5},
		{mode: SnapshotPerBatch, calls: 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			src := execctx.EnvSource{Environ: func() []string {
				calls.Add(1)
				return []string{"NAME=host", "KEEP=1"}
			}}
			reg := registry.New().MustRegister(registry.Definition{
				Type: "resolve", New: func() step.Runner { return &resolveStep{} }, Migrated: true,
			})
			d := New(reg, WithWorkers(2), WithEnvSource(src), WithSnapshotMode(tt.mode))

			anchor := t.TempDir()
			invs := make([]Invocation, 5)
			for i := range invs {
				invs[i] = Invocation{ID: strconv.Itoa(i), Type: "resolve", Anchor: anchor,
					Inputs: step.Inputs{Scalars: map[string]string{"Path": "x"}}}
			}
			invs[2].Env = map[string]string{"NAME": "override"}

			batch := d.Dispatch(t.Context(), invs)
			if got := calls.Load(); got != tt.calls {
				t.Errorf("host environment captured %d times, want %d", got, tt.calls)
			}
			for i, r := range batch.Results {
				want := "host"
				if i == 2 {
					want = "override"
				}
				if got := r.Outcome.Outputs["Out"][0].Get("Name"); got != want {
					t.Errorf("invocation %d NAME = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestDispatch_ExclusiveLane(t *testing.T) {
	// The exclusive lane changes the process working directory.
	var active, seen atomic.Int32
	seen.Store(-1)

	reg := registry.New().MustRegister(
		registry.Definition{Type: "resolve", New: func() step.Runner { return &resolveStep{active: &active} }, Migrated: true},
		registry.Definition{Type: "legacy", New: func() step.Runner { return &cwdStep{active: &active, seen: &seen} }},
	)
	d := New(reg, WithWorkers(8))

	root := t.TempDir()
	legacyAnchor := filepath.Join(root, "legacy")
	if err := os.MkdirAll(legacyAnchor, 0o755); err != nil {
		t.Fatal(err)
	}
	before, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	invs := make([]Invocation, 0, 17)
	for i := range 8 {
		invs = append(invs, pathInvocation(fmt.Sprint(i), root, "a"))
	}
	invs = append(invs, Invocation{ID: "legacy", Type: "legacy", Anchor: legacyAnchor})
	for i := 8; i < 16; i++ {
		invs = append(invs, pathInvocation(fmt.Sprint(i), root, "a"))
	}

	batch := d.Dispatch(t.Context(), invs)
	if !batch.Succeeded() {
		t.Fatalf("batch failed: %+v", batch.Failed())
	}

	legacy := batch.Results[8]
	if legacy.Lane != LaneExclusive {
		t.Errorf("legacy lane = %q, want %q", legacy.Lane, LaneExclusive)
	}
	if got := seen.Load(); got != 0 {
		t.Errorf("%d migrated invocations ran alongside the exclusive lane", got)
	}
	gotWd, err := filepath.EvalSymlinks(legacy.Outcome.Outputs["Cwd"][0].Identity)
	if err != nil {
		t.Fatal(err)
	}
	wantWd, err := filepath.EvalSymlinks(legacyAnchor)
	if err != nil {
		t.Fatal(err)
	}
	if gotWd != wantWd {
		t.Errorf("legacy step saw cwd %q, want %q", gotWd, wantWd)
	}

	after, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("working directory not restored: %q -> %q", before, after)
	}
}

func TestSnapshotModeValidate(t *testing.T) {
	t.Parallel()

	for _, m := range []SnapshotMode{SnapshotPerInvocation, SnapshotPerBatch} {
		if err := m.Validate(); err != nil {
			t.Errorf("%q: %v", m, err)
		}
	}
	if err := SnapshotMode("job").Validate(); !errors.Is(err, ErrInvalidSnapshotMode) {
		t.Errorf("Validate(job) = %v", err)
	}
}

func TestWithWorkers_Minimum(t *testing.T) {
	t.Parallel()

	if got := New(registry.New(), WithWorkers(0)).Workers(); got != 1 {
		t.Errorf("Workers() = %d, want 1", got)
	}
}
