package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/snoopsim/coherence"
)

func newTableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "table [protocol...]",
		Short: "Print the transition table of each protocol.",
		RunE: func(cmd *cobra.Command, args []string) error {
			families := coherence.Families()

			if len(args) > 0 {
				families = nil
				for _, name := range args {
					f, err := coherence.FamilyByName(name)
					if err != nil {
						return err
					}
					families = append(families, f)
				}
			}

			out := cmd.OutOrStdout()
			for i, f := range families {
				if i > 0 {
					_, _ = fmt.Fprintln(out)
				}
				if err := f.Dump(out); err != nil {
					return err
				}
			}

			return nil
		},
	}
}
