package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPrimalSeed = 20171126
	DefaultDelimiter  = ", "
	DefaultTimeout    = 10 * time.Minute

	FormatSingleLine     = "single-line"
	FormatPerParticipant = "per-participant"

	RNGMersenne = "mt19937"
	RNGPCG      = "pcg"
)

type Config struct {
	PrimalSeed   int64      `yaml:"primal_seed"`
	RNG          string     `yaml:"rng"`
	Participants []string   `yaml:"participants"`
	Observed     string     `yaml:"observed"`
	Format       string     `yaml:"format"`
	Delimiter    string     `yaml:"delimiter"`
	Simulator    Simulator  `yaml:"simulator"`
	Scenarios    []Scenario `yaml:"scenarios"`
	Results      Results    `yaml:"results"`
	Report       Report     `yaml:"report"`
	Logging      Logging    `yaml:"logging"`
}

// Scenario is one point in the benchmark parameter sweep.
type Scenario struct {
	NumTargets int     `yaml:"num_targets" json:"num_targets"`
	TimeStep   float64 `yaml:"time_step" json:"time_step"`
	TimeLimit  int     `yaml:"time_limit" json:"time_limit"`
	Repetition int     `yaml:"repetition" json:"repetition"`
}

func (s Scenario) String() string {
	return fmt.Sprintf("t=%d dt=%g tl=%d x%d", s.NumTargets, s.TimeStep, s.TimeLimit, s.Repetition)
}

// Slug is a filesystem-safe name for the scenario.
func (s Scenario) Slug() string {
	return fmt.Sprintf("t%d-dt%g-tl%d-r%d", s.NumTargets, s.TimeStep, s.TimeLimit, s.Repetition)
}

type Simulator struct {
	Command          []string          `yaml:"command"`
	Dir              string            `yaml:"dir"`
	Env              map[string]string `yaml:"env"`
	Tournament       bool              `yaml:"tournament"`
	Timeout          time.Duration     `yaml:"timeout"`
	TrustNonzeroExit bool              `yaml:"trust_nonzero_exit"`

	// Container mode. CPUs and MemoryMB of zero leave the engine defaults.
	Image    string  `yaml:"image"`
	CPUs     float64 `yaml:"cpus"`
	MemoryMB int64   `yaml:"memory_mb"`
	User     string  `yaml:"user"`
}

type Results struct {
	Dir     string `yaml:"dir"`
	History string `yaml:"history"`
}

type Report struct {
	NotBest bool `yaml:"not_best"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// HistoryDisabled reports whether the SQLite run history is switched off.
func (r Results) HistoryDisabled() bool {
	return r.History == "-"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	// Keys absent from the file keep these values, so an explicit
	// primal_seed: 0 survives.
	cfg := Config{PrimalSeed: DefaultPrimalSeed}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate fills defaults in place and rejects configurations the
// orchestrator cannot run. PrimalSeed is taken as given; Load supplies its
// default. It is exported so CLI overrides can be re-checked.
func Validate(cfg *Config) error {
	if cfg.PrimalSeed < 0 {
		return fmt.Errorf("primal_seed must be non-negative")
	}
	switch cfg.RNG {
	case "":
		cfg.RNG = RNGMersenne
	case RNGMersenne, RNGPCG:
	default:
		return fmt.Errorf("rng %q: must be %q or %q", cfg.RNG, RNGMersenne, RNGPCG)
	}

	if len(cfg.Participants) == 0 {
		return fmt.Errorf("no participants defined")
	}
	seen := make(map[string]bool, len(cfg.Participants))
	for i, p := range cfg.Participants {
		if p == "" {
			return fmt.Errorf("participant %d: id is required", i)
		}
		if seen[p] {
			return fmt.Errorf("participant %q listed twice", p)
		}
		seen[p] = true
	}
	if cfg.Observed != "" && !seen[cfg.Observed] {
		return fmt.Errorf("observed participant %q is not in participants", cfg.Observed)
	}

	switch cfg.Format {
	case "":
		cfg.Format = FormatSingleLine
	case FormatSingleLine, FormatPerParticipant:
	default:
		return fmt.Errorf("format %q: must be %q or %q", cfg.Format, FormatSingleLine, FormatPerParticipant)
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}

	if len(cfg.Simulator.Command) == 0 && cfg.Simulator.Image == "" {
		return fmt.Errorf("simulator: command or image is required")
	}
	if cfg.Simulator.Timeout == 0 {
		cfg.Simulator.Timeout = DefaultTimeout
	}
	if cfg.Simulator.Timeout < 0 {
		return fmt.Errorf("simulator: timeout must be positive")
	}
	if cfg.Simulator.CPUs < 0 || cfg.Simulator.MemoryMB < 0 {
		return fmt.Errorf("simulator: cpus and memory_mb must not be negative")
	}

	if len(cfg.Scenarios) == 0 {
		return fmt.Errorf("no scenarios defined")
	}
	for i, s := range cfg.Scenarios {
		if err := s.validate(); err != nil {
			return fmt.Errorf("scenario %d: %w", i, err)
		}
	}

	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Results.History == "" {
		cfg.Results.History = filepath.Join(cfg.Results.Dir, "history.db")
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}

func (s Scenario) validate() error {
	if s.NumTargets < 1 {
		return fmt.Errorf("num_targets must be at least 1")
	}
	if s.TimeStep <= 0 {
		return fmt.Errorf("time_step must be positive")
	}
	if s.TimeLimit < 1 {
		return fmt.Errorf("time_limit must be at least 1")
	}
	if s.Repetition < 1 {
		return fmt.Errorf("repetition must be at least 1")
	}
	return nil
}
