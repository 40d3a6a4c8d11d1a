package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/logging"
	"github.com/signalnine/tournament/internal/report"
	"github.com/signalnine/tournament/internal/result"
	"github.com/signalnine/tournament/internal/runner"
	"github.com/signalnine/tournament/internal/seed"
	"github.com/signalnine/tournament/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagRepetition int
	flagObserved   string
	flagFormat     string
	flagScenarios  []int
	flagDryRun     bool
	flagNotBest    bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every scenario and print report lines",
		RunE:  runTournament,
	}
	cmd.Flags().IntVar(&flagRepetition, "repetition", 0, "override the repetition count of every scenario")
	cmd.Flags().StringVar(&flagObserved, "observed", "", "override the observed participant")
	cmd.Flags().StringVar(&flagFormat, "format", "", "override the simulator output format (single-line, per-participant)")
	cmd.Flags().IntSliceVar(&flagScenarios, "scenario", nil, "run only the scenarios at these indices (see list)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the simulator command lines without running them")
	cmd.Flags().BoolVar(&flagNotBest, "not-best", false, "also list runs the observed participant did not win")
	return cmd
}

func runTournament(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(cmd, cfg); err != nil {
		return err
	}
	indices, err := selectScenarios(len(cfg.Scenarios), flagScenarios)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	log := newLogger(cmd, cfg)

	if flagDryRun {
		return dryRun(out, cfg, indices)
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	log.Info("run directory", "path", runDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper, err := runner.NewSweeper(cfg, runner.NewExecutor(cfg.Simulator), log)
	if err != nil {
		return err
	}
	if !cfg.Results.HistoryDisabled() {
		hist, err := store.Open(cfg.Results.History)
		if err != nil {
			log.Warn("history disabled", "path", cfg.Results.History, "err", err)
		} else {
			defer hist.Close()
			sweeper.Recorder = hist
		}
	}

	failed := 0
	for n, i := range indices {
		sc := cfg.Scenarios[i]
		log.Info("scenario", "index", i, "progress", fmt.Sprintf("%d/%d", n+1, len(indices)), "scenario", sc.String())
		summary, err := sweeper.Run(ctx, runDir, i, sc)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("interrupted: %w", ctx.Err())
			}
			var se *runner.SweepError
			if !errors.As(err, &se) {
				return err
			}
			log.Error("sweep failed", "scenario", sc.String(), "err", err)
			failed++
			continue
		}
		if err := report.WriteSweep(out, summary, cfg.Report.NotBest); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sweeps failed, see %s", failed, len(indices), runDir)
	}
	return nil
}

// applyRunOverrides folds command-line flags into cfg and re-validates it.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if flagRepetition < 0 {
		return fmt.Errorf("--repetition must be positive")
	}
	if flagRepetition > 0 {
		for i := range cfg.Scenarios {
			cfg.Scenarios[i].Repetition = flagRepetition
		}
	}
	if flagObserved != "" {
		cfg.Observed = flagObserved
	}
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if cmd.Flags().Changed("not-best") {
		cfg.Report.NotBest = flagNotBest
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return config.Validate(cfg)
}

// selectScenarios returns the scenario indices to run, in the order given,
// or all of them when none are selected.
func selectScenarios(n int, selected []int) ([]int, error) {
	if len(selected) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, i := range selected {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("--scenario %d: have %d scenarios", i, n)
		}
	}
	return selected, nil
}

func dryRun(w io.Writer, cfg *config.Config, indices []int) error {
	for _, i := range indices {
		sc := cfg.Scenarios[i]
		seeds, err := seed.Generate(cfg.RNG, cfg.PrimalSeed, sc.Repetition)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# [%d] %s\n", i, sc)
		for _, sd := range seeds {
			argv := runner.CommandLine(cfg.Simulator.Command, cfg.Simulator.Tournament, &runner.Request{
				Seed:         sd,
				Scenario:     sc,
				Participants: cfg.Participants,
			})
			line := strings.Join(argv, " ")
			if cfg.Simulator.Image != "" {
				line = fmt.Sprintf("[image: %s] %s", cfg.Simulator.Image, line)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return logging.NewLogger(level, cmd.ErrOrStderr())
}
