// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/registry"
	"github.com/parastep/parastep/internal/uroot"
)

func newStepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered step types and their migration status",
		Long: `List every registered step type.

A migrated type implements the step contract and is marked as such in the
registry; it runs in the parallel lane. Unmigrated types run one at a time
in the exclusive lane with the working directory set to their anchor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listSteps(app.stdout, app.Registry)
			return nil
		},
	}
}

func listSteps(w io.Writer, reg *registry.Registry) {
	fmt.Fprintln(w, TitleStyle.Render("Step types"))
	fmt.Fprintln(w)

	width := 0
	for _, t := range reg.Types() {
		width = max(width, len(t))
	}

	for _, entry := range reg.Audit() {
		def, _ := reg.Lookup(entry.Type)

		var status string
		switch {
		case entry.Verified():
			status = SuccessStyle.Render("migrated")
		case entry.Inconsistent():
			status = ErrorStyle.Render("marked migrated without a contract")
		case entry.HasContract:
			status = WarningStyle.Render("contract, not marked")
		default:
			status = WarningStyle.Render("exclusive lane")
		}

		name := fmt.Sprintf("%-*s", width, entry.Type)
		fmt.Fprintf(w, "  %s  %s  %s\n", CmdStyle.Render(name), status, SubtitleStyle.Render(def.Summary))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("Built-in script utilities:"), strings.Join(uroot.New().Names(), ", "))
}
