package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/signalnine/tournament/internal/config"
)

var (
	ErrSimulatorFailed = errors.New("simulator exited abnormally")
	ErrTimeout         = errors.New("simulator timed out")
)

// timeoutExitCode is reported for runs killed at the deadline, as timeout(1) does.
const timeoutExitCode = 124

// Request describes one simulator run.
type Request struct {
	Seed         int64
	Scenario     config.Scenario
	Participants []string
	StdoutPath   string
	StderrPath   string
}

// Output is a finished run. Stdout and Stderr are read back from the
// capture files after the simulator exits.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Executor runs the simulator once and blocks until it exits.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Output, error)
}

func ExitReasonFromCode(code int, timedOut bool) string {
	if timedOut {
		return "timeout"
	}
	if code == 0 {
		return "completed"
	}
	return "crashed"
}

// BuildArgs encodes a run for the simulator's command line.
func BuildArgs(seed int64, sc config.Scenario, participants []string, tournament bool) []string {
	var args []string
	if tournament {
		args = append(args, "--tournament")
	}
	args = append(args,
		"--seed", strconv.FormatInt(seed, 10),
		"-t", strconv.Itoa(sc.NumTargets),
		"-dt", strconv.FormatFloat(sc.TimeStep, 'g', -1, 64),
		"-tl", strconv.Itoa(sc.TimeLimit),
		"-g", strconv.Itoa(len(participants)),
	)
	return append(args, participants...)
}

// CommandLine is the full argv for a run: the configured command followed by
// the encoded run arguments.
func CommandLine(command []string, tournament bool, req *Request) []string {
	argv := append([]string(nil), command...)
	return append(argv, BuildArgs(req.Seed, req.Scenario, req.Participants, tournament)...)
}

// ProcessExecutor runs the simulator as a local child process.
type ProcessExecutor struct {
	Command    []string
	Dir        string
	Env        map[string]string
	Tournament bool
	Timeout    time.Duration
}

func (e *ProcessExecutor) Execute(ctx context.Context, req *Request) (*Output, error) {
	if len(e.Command) == 0 {
		return nil, fmt.Errorf("simulator command is empty")
	}
	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	argv := CommandLine(e.Command, e.Tournament, req)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range e.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	start := time.Now()
	runErr := withCaptureFiles(req, func(stdout, stderr io.Writer) error {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		return cmd.Run()
	})
	out := &Output{Duration: time.Since(start)}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	deadline := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	var err error
	if out.ExitCode, out.TimedOut, err = exitStatus(runErr, deadline); err != nil {
		return nil, err
	}

	if err := readCaptures(req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// exitStatus classifies a finished child. A deadline that expired after the
// child had already exited cleanly is not a timeout.
func exitStatus(runErr error, deadline bool) (code int, timedOut bool, err error) {
	if runErr == nil {
		return 0, false, nil
	}
	if deadline {
		return timeoutExitCode, true, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return 0, false, fmt.Errorf("running simulator: %w", runErr)
	}
	return exitErr.ExitCode(), false, nil
}

// withCaptureFiles truncates both capture files, hands them to fn and closes
// them before returning, whatever fn did.
func withCaptureFiles(req *Request, fn func(stdout, stderr io.Writer) error) error {
	stdout, err := os.Create(req.StdoutPath)
	if err != nil {
		return fmt.Errorf("opening stdout capture: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(req.StderrPath)
	if err != nil {
		return fmt.Errorf("opening stderr capture: %w", err)
	}
	defer stderr.Close()
	return fn(stdout, stderr)
}

func readCaptures(req *Request, out *Output) error {
	stdout, err := os.ReadFile(req.StdoutPath)
	if err != nil {
		return fmt.Errorf("reading stdout capture: %w", err)
	}
	stderr, err := os.ReadFile(req.StderrPath)
	if err != nil {
		return fmt.Errorf("reading stderr capture: %w", err)
	}
	out.Stdout = string(stdout)
	out.Stderr = string(stderr)
	return nil
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
