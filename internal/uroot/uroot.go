// SPDX-License-Identifier: MPL-2.0

package uroot

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/u-root/u-root/pkg/core"
	"github.com/u-root/u-root/pkg/core/base64"
	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/chmod"
	"github.com/u-root/u-root/pkg/core/cp"
	"github.com/u-root/u-root/pkg/core/find"
	"github.com/u-root/u-root/pkg/core/gzip"
	"github.com/u-root/u-root/pkg/core/ls"
	"github.com/u-root/u-root/pkg/core/mkdir"
	"github.com/u-root/u-root/pkg/core/mktemp"
	"github.com/u-root/u-root/pkg/core/mv"
	"github.com/u-root/u-root/pkg/core/rm"
	"github.com/u-root/u-root/pkg/core/shasum"
	"github.com/u-root/u-root/pkg/core/tar"
	"github.com/u-root/u-root/pkg/core/touch"
	"mvdan.cc/sh/v3/interp"
)

type (
	// Command is one built-in utility.
	Command struct {
		Name string
		// keepProgName passes args[0] through; gzip uses it to detect the
		// gunzip and gzcat aliases.
		keepProgName bool
		newCore      func() core.Command
	}

	// Registry maps utility names to commands. It is immutable after New
	// and safe for concurrent use.
	Registry struct {
		commands map[string]Command
	}
)

// New returns a registry holding every built-in utility.
func New() *Registry {
	cmds := []Command{
		{Name: "base64", newCore: func() core.Command { return base64.New() }},
		{Name: "cat", newCore: func() core.Command { return cat.New() }},
		{Name: "chmod", newCore: func() core.Command { return chmod.New() }},
		{Name: "cp", newCore: func() core.Command { return cp.New() }},
		{Name: "find", newCore: func() core.Command { return find.New() }},
		{Name: "gzip", keepProgName: true, newCore: func() core.Command { return gzip.New("gzip") }},
		{Name: "ls", newCore: func() core.Command { return ls.New() }},
		{Name: "mkdir", newCore: func() core.Command { return mkdir.New() }},
		{Name: "mktemp", newCore: func() core.Command { return mktemp.New() }},
		{Name: "mv", newCore: func() core.Command { return mv.New() }},
		{Name: "rm", newCore: func() core.Command { return rm.New() }},
		{Name: "shasum", newCore: func() core.Command { return shasum.New() }},
		{Name: "tar", newCore: func() core.Command { return tar.New() }},
		{Name: "touch", newCore: func() core.Command { return touch.New() }},
	}

	r := &Registry{commands: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		r.commands[c.Name] = c
	}
	return r
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Names returns the registered utility names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.commands))
}

// Run executes the command inside an interpreter exec handler. args[0] is
// the command name.
func (c Command) Run(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)

	cmd := c.newCore()
	cmd.SetIO(hc.Stdin, hc.Stdout, hc.Stderr)
	cmd.SetWorkingDir(hc.Dir)
	cmd.SetLookupEnv(func(name string) (string, bool) {
		v := hc.Env.Get(name)
		return v.String(), v.IsSet()
	})

	if !c.keepProgName && len(args) > 0 {
		args = args[1:]
	}
	if err := cmd.RunContext(ctx, args...); err != nil {
		return fmt.Errorf("[uroot] %s: %w", c.Name, err)
	}
	return nil
}

// ExecHandler returns interpreter middleware that runs registered utilities
// in-process and passes every other command to next. A built-in that fails
// reports its error; it never falls back to a host binary.
func (r *Registry) ExecHandler() func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				if c, ok := r.Lookup(args[0]); ok {
					return c.Run(ctx, args)
				}
			}
			return next(ctx, args)
		}
	}
}
