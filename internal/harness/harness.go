// SPDX-License-Identifier: MPL-2.0

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/parastep/parastep/internal/ambient"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
)

type (
	// Case is one step invocation under test.
	Case struct {
		Label    string
		Type     step.Type
		Anchor   string
		Inputs   step.Inputs
		Env      map[string]string
		EnvFiles []string
	}

	// Capture is everything observable about one run: the outcome plus the
	// bytes of every file named by a FullPath output.
	Capture struct {
		Outcome step.Outcome
		Files   map[string][]byte
	}

	// ParityRecord pairs a baseline and a candidate capture.
	ParityRecord struct {
		Label     string
		Type      step.Type
		Baseline  Capture
		Candidate Capture
		// Diff is the go-cmp diff (-baseline +candidate); empty when equal.
		Diff string
		// Problems lists failed expectations other than equality.
		Problems []string
	}

	// Harness runs verification cases against a catalog of step types.
	Harness struct {
		catalog     registry.Catalog
		scratchRoot string
		logger      *log.Logger
	}

	// Option configures a Harness.
	Option func(*Harness)
)

// New creates a Harness.
func New(catalog registry.Catalog, opts ...Option) *Harness {
	h := &Harness{catalog: catalog, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithScratchRoot sets the directory scratch directories are created in.
// Default is os.TempDir().
func WithScratchRoot(dir string) Option {
	return func(h *Harness) { h.scratchRoot = dir }
}

// WithLogger sets the logger. Default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Passed reports whether the captures are equal and no expectation failed.
func (r ParityRecord) Passed() bool { return r.Diff == "" && len(r.Problems) == 0 }

// compare fills in Diff from the two captures.
func (r *ParityRecord) compare() {
	r.Diff = cmp.Diff(r.Baseline, r.Candidate, cmpopts.EquateEmpty())
}

// CompareModes runs c with the working directory at the anchor, removes the
// files it produced, runs a fresh instance from a scratch directory and
// compares the two captures. The returned error reports harness failures
// (unknown type, unusable anchor); step failures are part of the record.
func (h *Harness) CompareModes(ctx context.Context, c Case) (ParityRecord, error) {
	def, ok := h.catalog.Lookup(c.Type)
	if !ok {
		return ParityRecord{}, &registry.UnknownTypeError{Type: c.Type}
	}
	ec, err := c.context()
	if err != nil {
		return ParityRecord{}, err
	}

	rec := ParityRecord{Label: c.label("dual-mode"), Type: c.Type}

	err = ambient.WithWorkingDir(ec.AnchorDirectory(), func() error {
		rec.Baseline = runCapture(ctx, def.New(), ec, c.Inputs)
		return nil
	})
	if err != nil {
		return ParityRecord{}, fmt.Errorf("legacy phase: %w", err)
	}
	if err := removeFiles(rec.Baseline.Files); err != nil {
		return ParityRecord{}, err
	}

	scratch, err := os.MkdirTemp(h.scratchRoot, "parastep-scratch-*")
	if err != nil {
		return ParityRecord{}, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	err = ambient.WithWorkingDir(scratch, func() error {
		rec.Candidate = runCapture(ctx, def.New(), ec, c.Inputs)
		return nil
	})
	if err != nil {
		return ParityRecord{}, fmt.Errorf("isolated phase: %w", err)
	}

	rec.compare()
	h.logger.Debug("compared modes", "case", rec.Label, "passed", rec.Passed())
	return rec, nil
}

// Boundary variants of a path input.
const (
	VariantAbsent     = "absent"
	VariantEmpty      = "empty"
	VariantWhitespace = "whitespace"
)

// CheckBoundaries runs c three times with the scalar input named input
// absent, empty and whitespace-only. Each run must match across modes and
// fail with CategoryResolution in both.
func (h *Harness) CheckBoundaries(ctx context.Context, c Case, input string) ([]ParityRecord, error) {
	variants := []struct {
		name  string
		value *string
	}{
		{name: VariantAbsent},
		{name: VariantEmpty, value: new(string)},
		{name: VariantWhitespace, value: ptr("  \t ")},
	}

	records := make([]ParityRecord, 0, len(variants))
	for _, v := range variants {
		vc := c
		vc.Inputs = c.Inputs.Clone()
		if vc.Inputs.Scalars == nil {
			vc.Inputs.Scalars = map[string]string{}
		}
		if v.value == nil {
			delete(vc.Inputs.Scalars, input)
		} else {
			vc.Inputs.Scalars[input] = *v.value
		}

		rec, err := h.CompareModes(ctx, vc)
		if err != nil {
			return nil, err
		}
		rec.Label = fmt.Sprintf("%s %s=%s", c.label("boundary"), input, v.name)
		for phase, capture := range map[string]Capture{"legacy": rec.Baseline, "isolated": rec.Candidate} {
			if got := capture.Outcome.Category; got != step.CategoryResolution {
				rec.Problems = append(rec.Problems, fmt.Sprintf("%s phase category = %q, want %q", phase, got, step.CategoryResolution))
			}
		}
		slices.Sort(rec.Problems)
		records = append(records, rec)
	}
	return records, nil
}

func (c Case) context() (*execctx.ExecutionContext, error) {
	return execctx.Build(c.Anchor, nil, c.EnvFiles, c.Env)
}

func (c Case) label(kind string) string {
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("%s %s", kind, c.Type)
}

func runCapture(ctx context.Context, r step.Runner, ec *execctx.ExecutionContext, in step.Inputs) Capture {
	out, _ := step.Run(ctx, r, ec, in)
	return Capture{Outcome: out, Files: readOutputFiles(out.Outputs)}
}

// readOutputFiles reads every regular file named by a FullPath metadata
// value. Paths that do not name a regular file are skipped.
func readOutputFiles(outputs step.Outputs) map[string][]byte {
	files := map[string][]byte{}
	for _, name := range slices.Sorted(maps.Keys(outputs)) {
		for _, it := range outputs[name] {
			p := it.Get(step.MetaFullPath)
			if p == "" {
				continue
			}
			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			files[p] = data
		}
	}
	return files
}

func removeFiles(files map[string][]byte) error {
	for p := range files {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing output %s: %w", p, err)
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
