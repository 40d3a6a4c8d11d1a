package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/signalnine/tournament/internal/anomaly"
	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/logging"
	"github.com/signalnine/tournament/internal/parse"
	"github.com/signalnine/tournament/internal/report"
	"github.com/signalnine/tournament/internal/result"
	"github.com/signalnine/tournament/internal/seed"
)

// stderrTail bounds how much simulator stderr is quoted in errors.
const stderrTail = 2048

// SweepError carries the scenario, and the run and seed when known, that a
// fatal condition came from. Run is -1 for failures after the last run.
type SweepError struct {
	Scenario config.Scenario
	Run      int
	Seed     int64
	Err      error
}

func (e *SweepError) Error() string {
	if e.Run < 0 {
		return fmt.Sprintf("scenario %s: %v", e.Scenario, e.Err)
	}
	return fmt.Sprintf("scenario %s, run %d (--seed %d -t %d -dt %g -tl %d): %v",
		e.Scenario, e.Run+1, e.Seed, e.Scenario.NumTargets, e.Scenario.TimeStep, e.Scenario.TimeLimit, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Recorder persists finished sweeps, successful or not.
type Recorder interface {
	RecordSweep(ctx context.Context, runDir string, s *result.SweepSummary) error
}

// Sweeper drives every run of one scenario in sequence.
type Sweeper struct {
	Executor         Executor
	Format           parse.Format
	Participants     []string
	Observed         string
	RNG              string
	PrimalSeed       int64
	TrustNonzeroExit bool
	Recorder         Recorder
	Log              *slog.Logger

	// Command and Tournament only feed the trace log; the executor builds
	// the argv it runs.
	Command    []string
	Tournament bool
}

// NewSweeper wires a Sweeper from cfg with the given executor.
func NewSweeper(cfg *config.Config, exec Executor, log *slog.Logger) (*Sweeper, error) {
	f, err := parse.New(cfg.Format, cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Sweeper{
		Executor:         exec,
		Command:          cfg.Simulator.Command,
		Tournament:       cfg.Simulator.Tournament,
		Format:           f,
		Participants:     cfg.Participants,
		Observed:         cfg.Observed,
		RNG:              cfg.RNG,
		PrimalSeed:       cfg.PrimalSeed,
		TrustNonzeroExit: cfg.Simulator.TrustNonzeroExit,
		Log:              log,
	}, nil
}

// NewExecutor picks the container executor when an image is configured and
// the local process executor otherwise.
func NewExecutor(sim config.Simulator) Executor {
	if sim.Image != "" {
		return &ContainerExecutor{
			Image:      sim.Image,
			Command:    sim.Command,
			Dir:        sim.Dir,
			Env:        sim.Env,
			Tournament: sim.Tournament,
			Timeout:    sim.Timeout,
			CPUs:       sim.CPUs,
			MemoryMB:   sim.MemoryMB,
			User:       sim.User,
		}
	}
	return &ProcessExecutor{
		Command:    sim.Command,
		Dir:        sim.Dir,
		Env:        sim.Env,
		Tournament: sim.Tournament,
		Timeout:    sim.Timeout,
	}
}

// Run executes the sweep for sc, writes its summary into sweepDir and hands
// it to the recorder. On a fatal condition the partial summary is still
// stored, marked failed, and the returned error is a *SweepError.
func (s *Sweeper) Run(ctx context.Context, runDir string, index int, sc config.Scenario) (*result.SweepSummary, error) {
	sweepDir := result.SweepDir(runDir, index, sc)
	if err := os.MkdirAll(sweepDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sweep dir: %w", err)
	}

	seeds, err := seed.Generate(s.RNG, s.PrimalSeed, sc.Repetition)
	if err != nil {
		return nil, err
	}
	s.logger().Info("sweep starting", "scenario", sc.String(), "seeds", seeds)

	summary := &result.SweepSummary{
		Index:      index,
		Scenario:   sc,
		PrimalSeed: s.PrimalSeed,
		RNG:        s.RNG,
		Format:     s.Format.Name(),
		Observed:   s.Observed,
		StartedAt:  time.Now().UTC(),
	}
	table := result.NewTable(s.Participants)
	stdoutPath, stderrPath := result.CapturePaths(sweepDir)

	var sweepErr error
	for i, sd := range seeds {
		req := &Request{
			Seed:         sd,
			Scenario:     sc,
			Participants: s.Participants,
			StdoutPath:   stdoutPath,
			StderrPath:   stderrPath,
		}
		run, err := s.runOnce(ctx, req, i, len(seeds))
		if err != nil {
			sweepErr = &SweepError{Scenario: sc, Run: i, Seed: sd, Err: err}
			break
		}
		table.Append(sd, run)
		if s.Observed == "" {
			continue
		}
		if a := anomaly.Classify(run, s.Observed, sd, sc, i); a != nil {
			s.logger().Debug("anomaly", "kind", a.Kind, "run", i+1, "seed", sd, "score", a.Score, "best", a.Best)
			summary.Anomalies = append(summary.Anomalies, *a)
		}
	}

	summary.Fill(table)
	if sweepErr == nil {
		if _, err := report.Aggregate(summary); err != nil {
			sweepErr = &SweepError{Scenario: sc, Run: -1, Err: err}
		}
	}
	summary.Status = result.StatusCompleted
	if sweepErr != nil {
		summary.Status = result.StatusFailed
		summary.Error = sweepErr.Error()
	}
	summary.DurationS = int(time.Since(summary.StartedAt).Seconds())

	if err := result.WriteSweepSummary(sweepDir, summary); err != nil {
		return summary, fmt.Errorf("writing sweep summary: %w", err)
	}
	if s.Recorder != nil {
		if err := s.Recorder.RecordSweep(ctx, runDir, summary); err != nil {
			s.logger().Warn("recording sweep history", "scenario", sc.String(), "err", err)
		}
	}
	return summary, sweepErr
}

func (s *Sweeper) runOnce(ctx context.Context, req *Request, i, n int) (result.Run, error) {
	s.logger().Info("run", "scenario", req.Scenario.String(), "run", fmt.Sprintf("%d/%d", i+1, n), "seed", req.Seed)
	s.logger().Log(ctx, logging.LevelTrace, "simulator command",
		"argv", strings.Join(CommandLine(s.Command, s.Tournament, req), " "))
	out, err := s.Executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("run finished",
		"seed", req.Seed,
		"exit_reason", ExitReasonFromCode(out.ExitCode, out.TimedOut),
		"duration", out.Duration.Round(time.Millisecond))

	if err := s.checkExit(out); err != nil {
		return nil, err
	}
	s.logger().Log(ctx, logging.LevelTrace, "simulator output", "tail", tail(strings.TrimRight(out.Stdout, "\n"), 512))
	run, err := s.Format.Parse(out.Stdout, s.Participants)
	if err != nil {
		return nil, fmt.Errorf("parsing simulator output: %w", err)
	}
	return run, nil
}

func (s *Sweeper) checkExit(out *Output) error {
	if out.TimedOut {
		return fmt.Errorf("%w after %s", ErrTimeout, out.Duration.Round(time.Second))
	}
	if out.ExitCode == 0 {
		return nil
	}
	if s.TrustNonzeroExit {
		s.logger().Warn("simulator exited non-zero, parsing output anyway", "exit_code", out.ExitCode)
		return nil
	}
	return fmt.Errorf("%w: exit code %d: %s", ErrSimulatorFailed, out.ExitCode, tail(out.Stderr, stderrTail))
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Log == nil {
		return logging.Discard()
	}
	return s.Log
}
