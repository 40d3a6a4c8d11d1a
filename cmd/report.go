package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/report"
	"github.com/spf13/cobra"
)

var (
	flagReportFormat  string
	flagReportNotBest bool
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Generate summary from stored results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runDir string
			notBest := flagReportNotBest
			if len(args) > 0 {
				runDir = args[0]
			} else {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				runDir = filepath.Join(cfg.Results.Dir, "latest")
				if !cmd.Flags().Changed("not-best") {
					notBest = cfg.Report.NotBest
				}
			}
			resolved, err := filepath.EvalSymlinks(runDir)
			if err != nil {
				return fmt.Errorf("resolving run dir: %w", err)
			}
			return report.Generate(resolved, flagReportFormat, cmd.OutOrStdout(), notBest)
		},
	}
	cmd.Flags().StringVar(&flagReportFormat, "format", "csv", "output format (csv, table, markdown, json)")
	cmd.Flags().BoolVar(&flagReportNotBest, "not-best", false, "also list runs the observed participant did not win")
	return cmd
}
