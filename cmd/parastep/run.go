// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/config"
	"github.com/parastep/parastep/internal/dispatch"
	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/internal/plan"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/step"
	"github.com/parastep/parastep/internal/watch"
	"github.com/parastep/parastep/pkg/types"
)

type runOptions struct {
	only          []string
	workers       int
	json          bool
	watch         bool
	watchPatterns []string
}

func newRunCommand(app *App) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Dispatch every invocation in a plan",
		Long: `Dispatch every invocation in a plan file (.cue, .json or .hcl).

Invocations run on a bounded worker pool and are reported in plan order.
The command exits with status 1 when any invocation fails or is skipped.

With --watch the plan is reloaded and dispatched again whenever a file
under the plan's directory or an invocation anchor changes. Files the
batch itself produced do not trigger a new run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), app, args[0], opts)
		},
	}

	runCmd.Flags().StringSliceVar(&opts.only, "only", nil, "run only the invocations with these ids")
	runCmd.Flags().IntVar(&opts.workers, "workers", 0, "override the configured worker count")
	runCmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	runCmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run the plan when watched files change")
	runCmd.Flags().StringSliceVar(&opts.watchPatterns, "watch-pattern", nil, "glob of files that trigger a re-run (default: all files)")

	return runCmd
}

// runner dispatches one plan file with a fixed configuration.
type runner struct {
	app    *App
	path   string
	opts   runOptions
	cfg    *config.Config
	logger *log.Logger
}

func runPlan(ctx context.Context, app *App, path string, opts runOptions) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	r := &runner{app: app, path: path, opts: opts, cfg: loaded.Config, logger: newLogger(app.stderr, loaded.Config.Log)}
	r.logger.Debug("configuration loaded", "source", loaded.Source)

	p, batch, err := r.dispatch(ctx)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	if opts.watch {
		return r.watch(ctx, p, batch)
	}
	if !batch.Succeeded() {
		return &ExitError{Code: types.ExitStepFailed}
	}
	return nil
}

// dispatch loads the plan, runs it under the --timeout budget and prints the
// results.
func (r *runner) dispatch(ctx context.Context) (*plan.Plan, *dispatch.Batch, error) {
	p, err := loadPlan(r.path, r.app.Registry, r.opts.only)
	if err != nil {
		return nil, nil, err
	}

	workers := r.cfg.Workers
	if r.opts.workers > 0 {
		workers = r.opts.workers
	}
	r.logger.Debug("loaded plan", "file", p.File, "invocations", len(p.Invocations))

	d := dispatch.New(r.app.Registry,
		dispatch.WithWorkers(workers),
		dispatch.WithLogger(r.logger.WithPrefix("dispatch")),
		dispatch.WithEnvSource(r.cfg.Environment.EnvSource()),
		dispatch.WithSnapshotMode(r.cfg.Environment.Snapshot),
	)

	ctx, cancel := r.app.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	batch := d.Dispatch(ctx, p.Invocations)
	elapsed := time.Since(start)

	if skipped := batch.Skipped(); skipped > 0 {
		r.logger.Warn("batch cancelled before every invocation started", "skipped", skipped, "reason", context.Cause(ctx))
	}

	if r.opts.json {
		if err := writeBatchJSON(r.app.stdout, batch); err != nil {
			return nil, nil, err
		}
	} else {
		renderBatch(r.app.stdout, batch, elapsed)
	}
	return p, batch, nil
}

// watch re-dispatches the plan on every change until ctx is done.
func (r *runner) watch(ctx context.Context, p *plan.Plan, batch *dispatch.Batch) error {
	var (
		mu       sync.Mutex
		produced = producedFiles(batch)
	)

	w, err := watch.New(watch.Config{
		Roots:    watchRoots(p),
		Patterns: r.opts.watchPatterns,
		Exclude: func(path string) bool {
			mu.Lock()
			defer mu.Unlock()
			return produced[path]
		},
		Logger: r.logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, changed []string) error {
			r.logger.Info("change detected, re-running plan", "files", len(changed), "first", changed[0])
			fmt.Fprintln(r.app.stdout)
			_, batch, err := r.dispatch(ctx)
			if err != nil {
				fmt.Fprintln(r.app.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, r.app.flags.verbose))
				return nil
			}
			mu.Lock()
			maps.Copy(produced, producedFiles(batch))
			mu.Unlock()
			return nil
		},
	})
	if err != nil {
		return issue.WrapWithContext(err, "watch plan", p.File)
	}

	roots := w.Roots()
	fmt.Fprintln(r.app.stdout, SubtitleStyle.Render(fmt.Sprintf("Watching %d directories for changes (Ctrl-C to stop)", len(roots))))
	return w.Run(ctx)
}

// producedFiles collects the FullPath of every output item in batch.
func producedFiles(batch *dispatch.Batch) map[string]bool {
	out := make(map[string]bool)
	for _, res := range batch.Results {
		for _, items := range res.Outcome.Outputs {
			for _, it := range items {
				if full := it.Get(step.MetaFullPath); full != "" {
					out[full] = true
				}
			}
		}
	}
	return out
}

// watchRoots returns the plan directory and every existing anchor directory.
func watchRoots(p *plan.Plan) []string {
	roots := []string{filepath.Dir(p.File)}
	for _, inv := range p.Invocations {
		if info, err := os.Stat(inv.Anchor); err == nil && info.IsDir() {
			roots = append(roots, inv.Anchor)
		}
	}
	return roots
}

// loadPlan loads and optionally filters a plan, turning failures into
// actionable errors.
func loadPlan(path string, catalog registry.Catalog, only []string) (*plan.Plan, error) {
	p, err := plan.Load(path, catalog)
	if err != nil {
		ctx := issue.NewErrorContext().
			WithOperation("load plan").
			WithResource(path).
			WithIssue(issue.PlanInvalidId).
			Wrap(err)
		var unknown *registry.UnknownTypeError
		switch {
		case errors.As(err, &unknown):
			ctx.WithSuggestion("Run 'parastep steps' to list the registered step types")
		case errors.Is(err, plan.ErrDuplicateID):
			ctx.WithSuggestion("Give every invocation a unique id")
		case errors.Is(err, plan.ErrUnsupportedFormat):
			ctx.WithSuggestion("Use a .cue, .json or .hcl plan file")
		}
		return nil, ctx.Build()
	}

	if len(only) == 0 {
		return p, nil
	}
	p, err = p.Only(only...)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select invocations").
			WithResource(path).
			WithSuggestion("Check the ids passed to --only").
			WithIssue(issue.PlanInvalidId).
			Wrap(err).
			Build()
	}
	return p, nil
}
