// SPDX-License-Identifier: MPL-2.0

package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
	"github.com/parastep/parastep/pkg/cueutil"
)

//go:embed plan_schema.cue
var planSchema []byte

var (
	// ErrDuplicateID is returned when two invocations share an id.
	ErrDuplicateID = errors.New("duplicate invocation id")
	// ErrUnsupportedFormat is returned for plan files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported plan format")
)

type (
	// Plan is a loaded batch of invocations.
	Plan struct {
		// File is the absolute path of the plan file.
		File        string
		Invocations []dispatch.Invocation
	}

	// DuplicateIDError reports an invocation id used more than once.
	DuplicateIDError struct {
		ID string
	}

	// InvocationError attributes a load error to one invocation.
	InvocationError struct {
		ID  string
		Err error
	}

	document struct {
		Invocations []invocation `json:"invocations"`
	}

	invocation struct {
		ID       string                `json:"id"`
		Step     string                `json:"step"`
		Anchor   string                `json:"anchor"`
		Scalars  map[string]string     `json:"scalars,omitempty"`
		Items    map[string][]planItem `json:"items,omitempty"`
		Env      map[string]string     `json:"env,omitempty"`
		EnvFiles []string              `json:"env_files,omitempty"`
	}

	planItem struct {
		Identity string            `json:"identity"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}
)

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("invocation id %q is used more than once", e.ID)
}

// Unwrap returns ErrDuplicateID so callers can use errors.Is for programmatic detection.
func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation %q: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error { return e.Err }

// Load reads the plan at path and checks every step type against catalog.
func Load(path string, catalog registry.Catalog) (*Plan, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve plan path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return Parse(data, abs, catalog)
}

// Parse decodes plan data. file must be absolute; its extension selects
// the format and its directory anchors relative invocation anchors.
func Parse(data []byte, file string, catalog registry.Catalog) (*Plan, error) {
	var (
		doc *document
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".cue", ".json":
		doc, err = parseCUE(data, file)
	case ".hcl":
		doc, err = parseHCL(data, file)
	default:
		return nil, fmt.Errorf("%w %q (want .cue, .json or .hcl)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return doc.resolve(file, catalog)
}

func parseCUE(data []byte, file string) (*document, error) {
	res, err := cueutil.ParseAndDecode[document](planSchema, data, "#Plan",
		cueutil.WithFilename(file), cueutil.WithConcrete(true))
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (d *document) resolve(file string, catalog registry.Catalog) (*Plan, error) {
	base, err := execctx.New(filepath.Dir(file), nil)
	if err != nil {
		return nil, err
	}

	p := &Plan{File: file, Invocations: make([]dispatch.Invocation, 0, len(d.Invocations))}
	seen := make(map[string]bool, len(d.Invocations))
	for i, inv := range d.Invocations {
		if strings.TrimSpace(inv.ID) == "" {
			return nil, fmt.Errorf("invocation %d: id must not be empty", i)
		}
		if seen[inv.ID] {
			return nil, &DuplicateIDError{ID: inv.ID}
		}
		seen[inv.ID] = true

		t := step.Type(inv.Step)
		if err := t.Validate(); err != nil {
			return nil, &InvocationError{ID: inv.ID, Err: err}
		}
		if _, ok := catalog.Lookup(t); !ok {
			return nil, &InvocationError{ID: inv.ID, Err: &registry.UnknownTypeError{Type: t}}
		}
		anchor, err := base.GetAbsolutePath(inv.Anchor)
		if err != nil {
			return nil, &InvocationError{ID: inv.ID, Err: err}
		}

		p.Invocations = append(p.Invocations, dispatch.Invocation{
			ID:       inv.ID,
			Type:     t,
			Anchor:   filepath.Clean(anchor),
			Inputs:   inv.inputs(),
			EnvFiles: inv.EnvFiles,
			Env:      inv.Env,
		})
	}
	return p, nil
}

func (inv invocation) inputs() step.Inputs {
	in := step.Inputs{Scalars: inv.Scalars}
	if len(inv.Items) > 0 {
		in.Lists = make(map[string][]step.Item, len(inv.Items))
		for name, list := range inv.Items {
			items := make([]step.Item, len(list))
			for i, it := range list {
				items[i] = step.Item{Identity: it.Identity, Metadata: it.Metadata}
			}
			in.Lists[name] = items
		}
	}
	return in
}

// Only returns a copy of the plan holding the invocations whose ids are in
// ids, in plan order. Unknown ids are reported.
func (p *Plan) Only(ids ...string) (*Plan, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := &Plan{File: p.File}
	for _, inv := range p.Invocations {
		if want[inv.ID] {
			out.Invocations = append(out.Invocations, inv)
			delete(want, inv.ID)
		}
	}
	for _, id := range ids {
		if want[id] {
			return nil, fmt.Errorf("plan %s has no invocation %q", p.File, id)
		}
	}
	return out, nil
}
