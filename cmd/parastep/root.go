// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for parastep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parastep",
		Short: "A parallel build-step dispatcher",
		Long: TitleStyle.Render("parastep") + SubtitleStyle.Render(" - A parallel build-step dispatcher") + `

parastep runs batches of build steps on a bounded worker pool. Every
invocation is bound to an explicit anchor directory and environment
snapshot, so steps never depend on the process working directory.

Steps that have not been migrated to that model run one at a time in
an exclusive lane with the working directory set to their anchor.

` + SubtitleStyle.Render("Examples:") + `
  parastep run build.cue              Dispatch every invocation in a plan
  parastep run build.hcl --only app   Dispatch a single invocation
  parastep verify build.cue           Check legacy/isolated parity
  parastep steps                      List step types and migration status
  parastep explain resolution         Explain an error category`,
		SilenceUsage: true,
	}

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/parastep/config.cue)")
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	flags.StringVar(&app.flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.StringVar(&app.flags.logFormat, "log-format", "", "override log.format (text, json, logfmt)")
	flags.DurationVar(&app.flags.timeout, "timeout", 0, "wall-clock limit for the whole batch (0 disables)")

	rootCmd.AddCommand(
		newRunCommand(app),
		newVerifyCommand(app),
		newStepsCommand(app),
		newExplainCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the production App and runs the root command.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler(app)),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Code.Validate() == nil {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// errorHandler prints command errors. ExitErrors without a cause were already
// reported by the command; actionable errors use their own formatting.
func errorHandler(app *App) fang.ErrorHandler {
	return func(w io.Writer, styles fang.Styles, err error) {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Err == nil {
			return
		}
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, app.flags.verbose))
			return
		}
		fang.DefaultErrorHandler(w, styles, err)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
