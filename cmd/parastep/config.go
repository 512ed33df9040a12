// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/config"
	"github.com/parastep/parastep/pkg/types"
)

// newConfigCommand creates the `parastep config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect parastep configuration",
		Long: `Inspect parastep configuration.

Configuration is read from the --config file, else from
$XDG_CONFIG_HOME/parastep/config.cue (the platform config directory on
macOS and Windows), else from ./parastep.cue. PARASTEP_* environment
variables override individual keys, for example PARASTEP_WORKERS=4.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the default configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	source := SubtitleStyle.Render("(using defaults)")
	if loaded.Source != "" {
		source = loaded.Source
	}
	fmt.Fprintf(app.stdout, "%s: %s\n\n", CmdStyle.Render("Config file"), source)
	fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
	return nil
}
