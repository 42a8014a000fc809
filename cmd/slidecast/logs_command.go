package main

import (
	"github.com/spf13/cobra"

	"slidecast/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logs.TailOptions
	cmd := &cobra.Command{
		Use:   "logs [job-id]",
		Short: "Print the daemon log, optionally only one job's lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.Match = args[0]
			}
			return logs.Stream(cmd.Context(), logs.Path(cfg), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
