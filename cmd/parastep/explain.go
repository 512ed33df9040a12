// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parastep/parastep/internal/issue"
	"github.com/parastep/parastep/pkg/types"
)

func newExplainCommand(app *App) *cobra.Command {
	var style string

	explainCmd := &cobra.Command{
		Use:   "explain [topic]",
		Short: "Explain an error category or problem",
		Long: `Explain an error category or problem reported by parastep.

Without a topic, lists every topic that can be explained.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: issue.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(app.stdout, TitleStyle.Render("Topics"))
				for _, name := range issue.Names() {
					fmt.Fprintf(app.stdout, "  %s\n", CmdStyle.Render(name))
				}
				return nil
			}

			iss, ok := issue.Lookup(args[0])
			if !ok {
				return &ExitError{Code: types.ExitUsage, Err: issue.NewErrorContext().
					WithOperation("explain topic").
					WithResource(args[0]).
					WithSuggestion("Known topics: " + strings.Join(issue.Names(), ", ")).
					BuildError()}
			}
			rendered, err := iss.Render(style)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}

	explainCmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ascii)")

	return explainCmd
}
