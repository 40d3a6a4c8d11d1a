package cmd

import (
	"fmt"
	"strings"

	"github.com/signalnine/tournament/internal/config"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List participants and scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Participants:")
			for _, p := range cfg.Participants {
				marker := ""
				if p == cfg.Observed {
					marker = " (observed)"
				}
				fmt.Fprintf(out, "  - %s%s\n", p, marker)
			}
			fmt.Fprintf(out, "\nSimulator: %s\n", describeSimulator(cfg.Simulator))
			fmt.Fprintf(out, "Seeds: %s from primal seed %d\n", cfg.RNG, cfg.PrimalSeed)
			fmt.Fprintln(out, "\nScenarios:")
			for i, sc := range cfg.Scenarios {
				fmt.Fprintf(out, "  [%d] %s\n", i, sc)
			}
			return nil
		},
	}
}

func describeSimulator(sim config.Simulator) string {
	cmd := strings.Join(sim.Command, " ")
	if sim.Image != "" {
		if cmd == "" {
			return fmt.Sprintf("image %s", sim.Image)
		}
		return fmt.Sprintf("%s (image: %s)", cmd, sim.Image)
	}
	return cmd
}
