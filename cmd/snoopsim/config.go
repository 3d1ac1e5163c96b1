package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/snoopsim/timing/latency"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config [path]",
		Short: "Write the default timing configuration.",
		Long: `Writes the default timing configuration as JSON to path, or to ` +
			`standard output when no path is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := latency.DefaultTimingConfig()

			if len(args) == 1 {
				if err := config.SaveConfig(args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
				return nil
			}

			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return nil
		},
	}
}
