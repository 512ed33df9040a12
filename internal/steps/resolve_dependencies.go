// SPDX-License-Identifier: MPL-2.0

package steps

import (
	"context"
	_ "embed"
	"errors"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/parastep/parastep/internal/dag"
	"github.com/parastep/parastep/internal/execctx"
	"github.com/parastep/parastep/internal/step"
	"github.com/parastep/parastep/pkg/cueutil"
)

//go:embed lock_schema.cue
var lockSchema []byte

type (
	// ResolveDependencies reads a CUE or JSON lock file and emits the
	// transitive closure of Root, dependencies first.
	ResolveDependencies struct {
		step.Base
	}

	lockFile struct {
		Packages map[string]lockPackage `json:"packages"`
	}

	lockPackage struct {
		Version      string   `json:"version"`
		Dependencies []string `json:"dependencies"`
	}
)

// Execute implements step.Runner.
func (s *ResolveDependencies) Execute(_ context.Context, in step.Inputs, diags *step.Diagnostics) (step.Outputs, error) {
	raw, _ := in.Scalar("LockFile")
	full, err := s.Path(in, "LockFile")
	if err != nil {
		return nil, err
	}
	root, err := in.Required("Root")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(root) == "" {
		return nil, execctx.InvalidInputError("Root", "must not be empty")
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, step.Fail(diags, step.Domainf("lock file %q does not exist", raw))
		}
		return nil, step.Fail(diags, step.Domainf("cannot read lock file %q: %v", raw, err))
	}
	parsed, err := cueutil.ParseAndDecode[lockFile](lockSchema, data, "#Lock",
		cueutil.WithFilename(raw), cueutil.WithConcrete(true))
	if err != nil {
		return nil, step.Fail(diags, step.Domainf("%v", err))
	}
	lock := parsed.Value

	names := slices.Sorted(maps.Keys(lock.Packages))
	g := dag.New()
	for _, name := range names {
		g.AddNode(name)
	}
	for _, name := range names {
		for _, dep := range lock.Packages[name].Dependencies {
			g.AddDependency(name, dep)
		}
	}

	if !g.Has(root) {
		return nil, step.Fail(diags, step.Domainf("root package %q is not in lock file %q", root, raw))
	}
	closure, err := g.Closure(root)
	if err != nil {
		return nil, step.Fail(diags, err)
	}
	order, err := closure.TopologicalSort()
	if err != nil {
		return nil, step.Fail(diags, err)
	}

	depths := closure.Depths(root)
	pkgs := make([]step.Item, 0, len(order))
	for _, name := range order {
		pkgs = append(pkgs, step.NewItem(name,
			"Version", lock.Packages[name].Version,
			"Depth", itoa(depths[name]),
		))
	}
	diags.Messagef("resolved %d packages for %s", len(pkgs), root)
	return step.Outputs{"Packages": pkgs}, nil
}
