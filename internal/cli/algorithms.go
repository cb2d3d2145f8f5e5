package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coopsched/internal/sched"
)

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the selectable scheduling algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, a := range sched.Algorithms() {
				if _, err := fmt.Fprintf(out, "%-24s %s\n", a, a.Alias()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
