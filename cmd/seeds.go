package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/seed"
	"github.com/spf13/cobra"
)

var (
	flagSeedCount  int
	flagPrimalSeed int64
	flagRNG        string
)

func newSeedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Print the per-run seeds derived from the primal seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			primal, rng, count := int64(config.DefaultPrimalSeed), config.RNGMersenne, flagSeedCount
			cfg, err := config.Load(cfgFile)
			switch {
			case err == nil:
				primal, rng = cfg.PrimalSeed, cfg.RNG
				if count == 0 {
					count = maxRepetition(cfg.Scenarios)
				}
			case !cmd.Flags().Changed("count") || !errors.Is(err, os.ErrNotExist):
				return err
			}
			if cmd.Flags().Changed("primal-seed") {
				primal = flagPrimalSeed
			}
			if flagRNG != "" {
				rng = flagRNG
			}
			if count < 0 {
				return fmt.Errorf("--count must be positive")
			}

			seeds, err := seed.Generate(rng, primal, count)
			if err != nil {
				return err
			}
			for _, s := range seeds {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flagSeedCount, "count", "n", 0, "number of seeds (default: largest scenario repetition)")
	cmd.Flags().Int64Var(&flagPrimalSeed, "primal-seed", 0, "override primal_seed")
	cmd.Flags().StringVar(&flagRNG, "rng", "", "override rng (mt19937, pcg)")
	return cmd
}

func maxRepetition(scenarios []config.Scenario) int {
	n := 0
	for _, sc := range scenarios {
		n = max(n, sc.Repetition)
	}
	return n
}
