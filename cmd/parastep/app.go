// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/parastep/parastep/internal/config"
	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/steps"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and reaches configuration,
	// the step catalog and the output streams through it.
	App struct {
		Config   config.Provider
		Registry *registry.Registry
		stdout   io.Writer
		stderr   io.Writer

		flags rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config   config.Provider
		Registry *registry.Registry
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// rootFlags holds the persistent flag values shared by every subcommand.
	rootFlags struct {
		configPath string
		verbose    bool
		logLevel   string
		logFormat  string
		timeout    time.Duration
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Registry == nil {
		deps.Registry = steps.NewRegistry()
	}

	return &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
}

// loadConfig loads configuration from the --config file (or the default lookup)
// and applies the logging flags on top of it.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	loaded, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return nil, err
	}

	cfg := *loaded.Config
	if a.flags.logLevel != "" {
		cfg.Log.Level = config.LogLevel(a.flags.logLevel)
	}
	if a.flags.verbose {
		cfg.Log.Level = config.LogLevelDebug
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = config.LogFormat(a.flags.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("apply command-line flags").
			WithSuggestion("Use --log-level debug|info|warn|error").
			WithSuggestion("Use --log-format text|json|logfmt").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			Build()
	}

	return &config.Loaded{Config: &cfg, Source: loaded.Source}, nil
}

// withTimeout bounds ctx by the --timeout flag. A zero timeout leaves ctx as is.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.flags.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.flags.timeout)
}
