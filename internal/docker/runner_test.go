package docker_test

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/tournament/internal/docker"
)

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("TOURNAMENT_DOCKER_TESTS") == "" {
		t.Skip("set TOURNAMENT_DOCKER_TESTS=1 to run Docker tests")
	}
}

func TestRunContainerCapturesStreams(t *testing.T) {
	skipWithoutDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "echo '1, 2, 3, 4, '; echo warn >&2"},
		Timeout: 30 * time.Second,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", result.ExitCode)
	}
	if strings.TrimSpace(stdout.String()) != "1, 2, 3, 4," {
		t.Errorf("stdout: got %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "warn" {
		t.Errorf("stderr: got %q", stderr.String())
	}
}

func TestRunContainerTimeout(t *testing.T) {
	skipWithoutDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != 124 {
		t.Errorf("exit code: got %d, want 124", result.ExitCode)
	}
}

func TestRunContainerCrash(t *testing.T) {
	skipWithoutDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 3"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", result.ExitCode)
	}
}
