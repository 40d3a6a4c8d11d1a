package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/signalnine/tournament/internal/docker"
)

// ContainerExecutor runs the simulator inside a container image. Command is
// prepended to the run arguments; leave it empty to use the image entrypoint.
type ContainerExecutor struct {
	Image      string
	Command    []string
	Dir        string
	Env        map[string]string
	Tournament bool
	Timeout    time.Duration
	CPUs       float64
	MemoryMB   int64
	User       string
}

func (e *ContainerExecutor) Execute(ctx context.Context, req *Request) (*Output, error) {
	var res *docker.RunResult
	err := withCaptureFiles(req, func(stdout, stderr io.Writer) error {
		var err error
		res, err = docker.RunContainer(ctx, &docker.RunOpts{
			Image:       e.Image,
			Command:     CommandLine(e.Command, e.Tournament, req),
			WorkDir:     e.Dir,
			Env:         e.Env,
			Timeout:     e.Timeout,
			CPULimit:    e.CPUs,
			MemoryLimit: e.MemoryMB << 20,
			UserID:      e.User,
			Stdout:      stdout,
			Stderr:      stderr,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("running simulator container: %w", err)
	}
	out := &Output{
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}
	if err := readCaptures(req, out); err != nil {
		return nil, err
	}
	return out, nil
}
