package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/report"
	"github.com/signalnine/tournament/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagHistoryLimit int
	flagShowNotBest  bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List sweeps recorded in the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			rows, err := hist.ListSweeps(cmd.Context(), flagHistoryLimit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSCENARIO\tSTATUS\tRUNS\tANOMALIES")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Scenario, r.Status, r.Runs, r.Anomalies)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "maximum number of sweeps to list (0 for all)")
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <sweep-id>",
		Short: "Print the report lines of a recorded sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			s, err := hist.LoadSweep(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s.Error != "" {
				return fmt.Errorf("sweep %s failed: %s", args[0], s.Error)
			}
			return report.WriteSweep(cmd.OutOrStdout(), s, flagShowNotBest)
		},
	}
	cmd.Flags().BoolVar(&flagShowNotBest, "not-best", false, "also list runs the observed participant did not win")
	return cmd
}

func openHistory() (*store.History, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Results.HistoryDisabled() {
		return nil, fmt.Errorf("history is disabled in %s", cfgFile)
	}
	return store.Open(cfg.Results.History)
}
