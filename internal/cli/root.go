// Package cli wires the scheduler, its demo tasks and the operator terminal
// into the coopsched command.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

// NewRootCmd creates the root cobra command for the coopsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coopsched",
		Short:        "Cooperative task scheduler",
		Long:         "coopsched runs a fixed set of cooperative tasks under a selectable scheduling algorithm.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(),
		newAlgorithmsCmd(),
	)

	return root
}
