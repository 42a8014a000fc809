package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slidecast/internal/deck"
)

func newStylesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "styles",
		Short:       "List narration styles",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			styles := make([]deck.Style, 0, len(deck.StyleNames()))
			for _, name := range deck.StyleNames() {
				if style, ok := deck.LookupStyle(name); ok {
					styles = append(styles, style)
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, styles)
			}
			rows := make([][]string, 0, len(styles))
			for _, s := range styles {
				rows = append(rows, []string{s.Name, s.Label, fmt.Sprintf("%.1f", s.Temperature), s.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"Name", "Label", "Temperature", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				shouldColorize(out),
			))
			return nil
		},
	}
}
