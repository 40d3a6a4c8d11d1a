package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	flagLogLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tournament",
		Short:        "Deterministic benchmark orchestrator for simulator tournaments",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "tournament.yaml", "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override logging.level (trace, debug, info, warn)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newSeedsCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newHistoryCmd())
	return root
}
