package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/signalnine/tournament/internal/config"
)

const (
	SummaryFile = "summary.json"
	StdoutFile  = "stdout.log"
	StderrFile  = "stderr.log"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SweepSummary is everything recorded about one scenario's sweep.
type SweepSummary struct {
	Index        int               `json:"index"`
	Scenario     config.Scenario   `json:"scenario"`
	PrimalSeed   int64             `json:"primal_seed"`
	RNG          string            `json:"rng"`
	Format       string            `json:"format"`
	Observed     string            `json:"observed,omitempty"`
	Participants []string          `json:"participants"`
	Seeds        []int64           `json:"seeds"`
	Series       map[string]Series `json:"series"`
	Anomalies    []Anomaly         `json:"anomalies,omitempty"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	DurationS    int               `json:"duration_s"`
}

// Fill copies the table's completed runs into the summary.
func (s *SweepSummary) Fill(t *Table) {
	s.Participants = t.Participants()
	s.Seeds = append([]int64(nil), t.seeds...)
	s.Series = make(map[string]Series, len(t.participants))
	for _, p := range t.participants {
		s.Series[p] = *t.series[p]
	}
}

func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// SweepDir is where one scenario's capture files and summary live. The index
// keeps repeated scenarios apart.
func SweepDir(runDir string, index int, sc config.Scenario) string {
	return filepath.Join(runDir, "sweeps", fmt.Sprintf("%02d-%s", index, sc.Slug()))
}

// CapturePaths returns the stdout and stderr capture files of a sweep dir.
func CapturePaths(sweepDir string) (stdout, stderr string) {
	return filepath.Join(sweepDir, StdoutFile), filepath.Join(sweepDir, StderrFile)
}

func WriteSweepSummary(sweepDir string, s *SweepSummary) error {
	if err := os.MkdirAll(sweepDir, 0o755); err != nil {
		return fmt.Errorf("creating sweep dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(filepath.Join(sweepDir, SummaryFile), data, 0o644)
}

func ReadSweepSummary(path string) (*SweepSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var s SweepSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}
