package result

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/signalnine/tournament/internal/config"
)

// Sample is a numeric value that may be absent because its token did not
// parse. Absent is distinct from zero everywhere downstream.
type Sample struct {
	Value   float64
	Present bool
}

func Some(v float64) Sample { return Sample{Value: v, Present: true} }

var Absent = Sample{}

// ParseSample decodes a numeric token, ignoring surrounding whitespace.
// Decode failures and NaN yield Absent.
func ParseSample(token string) Sample {
	v, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
	if err != nil || math.IsNaN(v) {
		return Absent
	}
	return Some(v)
}

// Get returns the value and whether it is present.
func (s Sample) Get() (float64, bool) {
	return s.Value, s.Present
}

func (s Sample) String() string {
	if !s.Present {
		return "absent"
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// MarshalJSON encodes an absent sample as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	if !s.Present {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Absent
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Some(v)
	return nil
}

// RunRecord is one participant's outcome in one run.
type RunRecord struct {
	FinalScore    Sample `json:"final_score"`
	TimeRemaining Sample `json:"time_remaining"`
}

// Run maps participant id to its record for a single simulator run.
type Run map[string]RunRecord

// Series holds one participant's samples in run order.
type Series struct {
	FinalScores   []Sample `json:"final_scores"`
	TimeRemaining []Sample `json:"time_remaining"`
}

// Table accumulates per-participant series across the runs of one sweep.
type Table struct {
	participants []string
	series       map[string]*Series
	seeds        []int64
}

func NewTable(participants []string) *Table {
	t := &Table{
		participants: append([]string(nil), participants...),
		series:       make(map[string]*Series, len(participants)),
	}
	for _, p := range participants {
		t.series[p] = &Series{}
	}
	return t
}

// Append adds one completed run. Participants missing from run get absent
// samples so every series stays aligned with run order.
func (t *Table) Append(seed int64, run Run) {
	t.seeds = append(t.seeds, seed)
	for _, p := range t.participants {
		rec := run[p]
		s := t.series[p]
		s.FinalScores = append(s.FinalScores, rec.FinalScore)
		s.TimeRemaining = append(s.TimeRemaining, rec.TimeRemaining)
	}
}

func (t *Table) Participants() []string { return t.participants }

// Series returns the series for participant p, or nil if p is unknown.
func (t *Table) Series(p string) *Series { return t.series[p] }

// Runs is the number of runs appended so far.
func (t *Table) Runs() int { return len(t.seeds) }

// Seed returns the seed of run i.
func (t *Table) Seed(i int) int64 { return t.seeds[i] }

type AnomalyKind string

const (
	AnomalyLast    AnomalyKind = "LAST"
	AnomalyNotBest AnomalyKind = "NOT_BEST"
)

// Anomaly describes one run in which the observed participant did not win.
type Anomaly struct {
	Kind        AnomalyKind     `json:"kind"`
	Run         int             `json:"run"`
	Seed        int64           `json:"seed"`
	Participant string          `json:"participant"`
	Score       float64         `json:"score"`
	Best        float64         `json:"best"`
	Scenario    config.Scenario `json:"scenario"`
}

// String renders the anomaly with the simulator flags needed to replay it.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %g, best: %g (--seed %d -t %d -dt %f -tl %d)",
		a.Participant, a.Score, a.Best, a.Seed,
		a.Scenario.NumTargets, a.Scenario.TimeStep, a.Scenario.TimeLimit)
}
