package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSimulator scores g1 by seed mod 7, g2 a flat 50 and g3 a flat 3.
const fakeSimulator = `s=$(($2 % 7)); echo "starting"; echo "FINAL, $s, 1, 50, 2, 3, 3, "`

func writeConfig(t *testing.T, extra string) (path, resultsDir string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	resultsDir = filepath.Join(dir, "results")
	cfg := `participants: [g1, g2, g3]
observed: g3
simulator:
  command: [sh, -c, '` + fakeSimulator + `', sim]
  timeout: 30s
scenarios:
  - {num_targets: 5, time_step: 0.015, time_limit: 1000, repetition: 2}
  - {num_targets: 25, time_step: 0.004, time_limit: 2500, repetition: 3}
results:
  dir: ` + resultsDir + `
logging:
  level: warn
` + extra
	path = filepath.Join(dir, "tournament.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, resultsDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	cfgPath, resultsDir := writeConfig(t, "")
	out, err := execute(t, "--config", cfgPath, "run", "--scenario", "0")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := strings.Join([]string{
		"2,20171126,5,0.015,1000,g1,5.50,5.50,5.00,6.00,0.50,1.00,1.00,1.00,1.00,0.00",
		"2,20171126,5,0.015,1000,g2,50.00,50.00,50.00,50.00,0.00,2.00,2.00,2.00,2.00,0.00",
		"2,20171126,5,0.015,1000,g3,3.00,3.00,3.00,3.00,0.00,3.00,3.00,3.00,3.00,0.00",
		"",
		"g3 was LAST for the following runs:",
		" - g3: 3, best: 50 (--seed 1158380018 -t 5 -dt 0.015000 -tl 1000)",
		" - g3: 3, best: 50 (--seed 121855264 -t 5 -dt 0.015000 -tl 1000)",
		"",
	}, "\n")
	if out != want {
		t.Errorf("output:\n%s\nwant:\n%s", out, want)
	}

	if _, err := os.Stat(filepath.Join(resultsDir, "latest")); err != nil {
		t.Errorf("latest symlink: %v", err)
	}
	if _, err := os.Stat(filepath.Join(resultsDir, "history.db")); err != nil {
		t.Errorf("history database: %v", err)
	}

	reportOut, err := execute(t, "--config", cfgPath, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if reportOut != want {
		t.Errorf("report output differs from run output:\n%s", reportOut)
	}

	histOut, err := execute(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(histOut, "t=5 dt=0.015 tl=1000 x2") || !strings.Contains(histOut, "completed") {
		t.Errorf("history output:\n%s", histOut)
	}
}

func TestRunCommandSweepFailure(t *testing.T) {
	cfgPath, _ := writeConfig(t, "format: per-participant\n")
	out, err := execute(t, "--config", cfgPath, "run", "--format", "single-line", "--observed", "g1", "--repetition", "1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(out, "20171126,"); n != 6 {
		t.Errorf("expected 6 report lines, got %d:\n%s", n, out)
	}
	if !strings.Contains(out, "\n1,20171126,25,0.004,2500,g3,") {
		t.Errorf("repetition override not applied:\n%s", out)
	}

	cfgPath, _ = writeConfig(t, "format: per-participant\n")
	_, err = execute(t, "--config", cfgPath, "run")
	if err == nil || !strings.Contains(err.Error(), "2 of 2 sweeps failed") {
		t.Errorf("expected sweep failures, got %v", err)
	}
}

func TestRunDryRun(t *testing.T) {
	cfgPath, resultsDir := writeConfig(t, "")
	out, err := execute(t, "--config", cfgPath, "run", "--dry-run", "--scenario", "1")
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	if !strings.HasPrefix(out, "# [1] t=25 dt=0.004 tl=2500 x3\n") {
		t.Errorf("missing scenario heading:\n%s", out)
	}
	if !strings.Contains(out, "--seed 1158380018 -t 25 -dt 0.004 -tl 2500 -g 3 g1 g2 g3") {
		t.Errorf("missing command line:\n%s", out)
	}
	if strings.Count(out, "--seed") != 3 {
		t.Errorf("expected 3 command lines:\n%s", out)
	}
	if _, err := os.Stat(resultsDir); !os.IsNotExist(err) {
		t.Error("dry run created the results directory")
	}
}

func TestRunDryRunImageOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.yaml")
	cfg := `participants: [g1, g2]
simulator:
  image: sim:latest
  tournament: true
scenarios:
  - {num_targets: 5, time_step: 0.015, time_limit: 1000, repetition: 1}
`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", path, "run", "--dry-run")
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	want := "[image: sim:latest] --tournament --seed 1158380018 -t 5 -dt 0.015 -tl 1000 -g 2 g1 g2\n"
	if !strings.HasSuffix(out, want) {
		t.Errorf("got:\n%s\nwant line %q", out, want)
	}
}

func TestRunRejectsBadOverrides(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	tests := []struct {
		name string
		args []string
	}{
		{"unknown observed", []string{"--observed", "g9"}},
		{"unknown format", []string{"--format", "xml"}},
		{"negative repetition", []string{"--repetition", "-1"}},
		{"scenario out of range", []string{"--scenario", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfgPath, "run", "--dry-run"}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSelectScenarios(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		selected []int
		want     []int
		wantErr  bool
	}{
		{"none selects all", 3, nil, []int{0, 1, 2}, false},
		{"subset keeps order", 4, []int{3, 1}, []int{3, 1}, false},
		{"out of range", 2, []int{2}, nil, true},
		{"negative", 2, []int{-1}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectScenarios(tt.n, tt.selected)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSeedsCommand(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "seeds", "-n", "3")
	if err != nil {
		t.Fatalf("seeds: %v", err)
	}
	if out != "1158380018\n121855264\n1563771048\n" {
		t.Errorf("got %q", out)
	}

	cfgPath, _ := writeConfig(t, "")
	out, err = execute(t, "--config", cfgPath, "seeds", "--primal-seed", "0")
	if err != nil {
		t.Fatalf("seeds: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || lines[0] != "1813382118" || lines[1] != "827307999" {
		t.Errorf("got %v", lines)
	}
}

func TestSeedsCommandRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("primal_seed: 7\nparticipants: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", path, "seeds", "-n", "3")
	if err == nil {
		t.Errorf("expected config error, printed %q", out)
	}
}

func TestListCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")
	out, err := execute(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"g3 (observed)", "[1] t=25 dt=0.004 tl=2500 x3", "mt19937 from primal seed 20171126"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
