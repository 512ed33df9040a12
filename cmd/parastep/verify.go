// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/harness"
	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/pkg/types"
)

type verifyOptions struct {
	only       []string
	concurrent bool
}

func newVerifyCommand(app *App) *cobra.Command {
	opts := verifyOptions{concurrent: true}

	verifyCmd := &cobra.Command{
		Use:   "verify <plan>",
		Short: "Check that migrated steps behave the same in every mode",
		Long: `Run every migrated invocation of a plan twice: once with the working
directory at its anchor and once from an unrelated scratch directory, then
compare outcomes and produced files. Afterwards all migrated invocations run
together on a barrier-synchronized pool and are compared with their
sequential runs.

Invocations only see the variables their plan entry declares (env and
env_files); the host environment is not inherited during verification.
Unmigrated step types are reported and skipped.

The command exits with status 3 when any comparison differs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyPlan(cmd.Context(), app, args[0], opts)
		},
	}

	verifyCmd.Flags().StringSliceVar(&opts.only, "only", nil, "verify only the invocations with these ids")
	verifyCmd.Flags().BoolVar(&opts.concurrent, "concurrent", true, "also run the concurrency check (invocations must write distinct files)")

	return verifyCmd
}

func verifyPlan(ctx context.Context, app *App, path string, opts verifyOptions) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	cfg := loaded.Config

	p, err := loadPlan(path, app.Registry, opts.only)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	logger := newLogger(app.stderr, cfg.Log)
	h := harness.New(app.Registry,
		harness.WithScratchRoot(cfg.Harness.ScratchDir),
		harness.WithLogger(logger.WithPrefix("harness")),
	)

	ctx, cancel := app.withTimeout(ctx)
	defer cancel()

	var (
		records []harness.ParityRecord
		cases   []harness.Case
	)
	for _, inv := range p.Invocations {
		if !app.Registry.IsMigrated(inv.Type) {
			fmt.Fprintf(app.stdout, "%s %s %s %s\n", WarningStyle.Render("-"), CmdStyle.Render(inv.ID),
				SubtitleStyle.Render(fmt.Sprintf("(%s)", inv.Type)), WarningStyle.Render("not migrated, skipped"))
			continue
		}

		c := harness.Case{
			Label:    inv.ID,
			Type:     inv.Type,
			Anchor:   inv.Anchor,
			Inputs:   inv.Inputs,
			Env:      inv.Env,
			EnvFiles: inv.EnvFiles,
		}
		rec, err := h.CompareModes(ctx, c)
		if err != nil {
			return &ExitError{Code: types.ExitUsage, Err: issue.NewErrorContext().
				WithOperation("verify invocation").
				WithResource(inv.ID).
				WithSuggestion("Check that the anchor directory exists").
				WithIssue(issue.ConfigurationErrorId).
				Wrap(err).
				Build()}
		}
		records = append(records, rec)
		cases = append(cases, c)
	}

	if opts.concurrent && len(cases) > 1 {
		concurrent, err := h.CheckConcurrent(ctx, cases)
		if err != nil {
			return &ExitError{Code: types.ExitUsage, Err: issue.WrapWithContext(err, "run concurrency check", p.File)}
		}
		records = append(records, concurrent...)
	}

	failed := renderParity(app.stdout, records)
	summary := fmt.Sprintf("%d comparisons: %d passed, %d differed", len(records), len(records)-failed, failed)
	fmt.Fprintln(app.stdout)
	if failed > 0 {
		fmt.Fprintln(app.stdout, ErrorStyle.Render(summary))
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("Run 'parastep explain parity' for details."))
		return &ExitError{Code: types.ExitParityMismatch}
	}
	fmt.Fprintln(app.stdout, SuccessStyle.Render(summary))
	return nil
}
