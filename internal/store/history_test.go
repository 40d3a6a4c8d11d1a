package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/result"
	"github.com/signalnine/tournament/internal/store"
)

func openHistory(t *testing.T) *store.History {
	t.Helper()
	h, err := store.Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func sampleSummary() *result.SweepSummary {
	sc := config.Scenario{NumTargets: 5, TimeStep: 0.015, TimeLimit: 1000, Repetition: 2}
	table := result.NewTable([]string{"g1", "g5"})
	table.Append(1158380018, result.Run{
		"g1": {FinalScore: result.Some(10), TimeRemaining: result.Some(1.5)},
		"g5": {FinalScore: result.Some(4), TimeRemaining: result.Absent},
	})
	table.Append(121855264, result.Run{
		"g1": {FinalScore: result.Absent, TimeRemaining: result.Some(2)},
		"g5": {FinalScore: result.Some(0), TimeRemaining: result.Some(0.5)},
	})
	s := &result.SweepSummary{
		Index:      3,
		Scenario:   sc,
		PrimalSeed: config.DefaultPrimalSeed,
		RNG:        config.RNGMersenne,
		Format:     config.FormatSingleLine,
		Observed:   "g5",
		Status:     result.StatusCompleted,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DurationS:  42,
		Anomalies: []result.Anomaly{{
			Kind: result.AnomalyLast, Run: 0, Seed: 1158380018, Participant: "g5", Score: 4, Best: 10, Scenario: sc,
		}},
	}
	s.Fill(table)
	return s
}

func TestRecordAndLoad(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()
	in := sampleSummary()

	id, err := h.Insert(ctx, "/runs/a", in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	out, err := h.LoadSweep(ctx, id)
	if err != nil {
		t.Fatalf("LoadSweep: %v", err)
	}

	if out.Scenario != in.Scenario || out.Index != 3 || out.Observed != "g5" || out.DurationS != 42 {
		t.Errorf("header: got %+v", out)
	}
	if !out.StartedAt.Equal(in.StartedAt) {
		t.Errorf("started_at: got %s", out.StartedAt)
	}
	if len(out.Participants) != 2 || out.Participants[0] != "g1" || out.Participants[1] != "g5" {
		t.Errorf("participants: got %v", out.Participants)
	}
	if len(out.Seeds) != 2 || out.Seeds[1] != 121855264 {
		t.Errorf("seeds: got %v", out.Seeds)
	}
	for _, p := range in.Participants {
		for i := range in.Seeds {
			if got, want := out.Series[p].FinalScores[i], in.Series[p].FinalScores[i]; got != want {
				t.Errorf("%s run %d score: got %v, want %v", p, i, got, want)
			}
			if got, want := out.Series[p].TimeRemaining[i], in.Series[p].TimeRemaining[i]; got != want {
				t.Errorf("%s run %d time: got %v, want %v", p, i, got, want)
			}
		}
	}
	if len(out.Anomalies) != 1 || out.Anomalies[0].Kind != result.AnomalyLast || out.Anomalies[0].Scenario != in.Scenario {
		t.Errorf("anomalies: got %+v", out.Anomalies)
	}
}

func TestRecordFailedSweep(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()
	s := &result.SweepSummary{
		Scenario:     config.Scenario{NumTargets: 1, TimeStep: 1, TimeLimit: 1, Repetition: 5},
		Participants: []string{"a"},
		Series:       map[string]result.Series{"a": {}},
		RNG:          config.RNGMersenne,
		Format:       config.FormatPerParticipant,
		Status:       result.StatusFailed,
		Error:        "run 1: simulator timed out",
		StartedAt:    time.Now(),
	}
	if err := h.RecordSweep(ctx, "/runs/b", s); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	rows, err := h.ListSweeps(ctx, 0)
	if err != nil {
		t.Fatalf("ListSweeps: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.Status != result.StatusFailed || r.Error != s.Error || r.Runs != 0 || r.RunDir != "/runs/b" {
		t.Errorf("row: %+v", r)
	}
}

func TestListSweepsOrderAndLimit(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s := sampleSummary()
		s.Index = i
		s.StartedAt = base.Add(time.Duration(i) * time.Hour)
		if err := h.RecordSweep(ctx, "/runs/c", s); err != nil {
			t.Fatalf("RecordSweep: %v", err)
		}
	}
	rows, err := h.ListSweeps(ctx, 2)
	if err != nil {
		t.Fatalf("ListSweeps: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("limit: got %d rows", len(rows))
	}
	if rows[0].Index != 2 || rows[1].Index != 1 {
		t.Errorf("order: got %d, %d", rows[0].Index, rows[1].Index)
	}
	if rows[0].Runs != 2 || rows[0].Anomalies != 1 {
		t.Errorf("counts: runs %d anomalies %d", rows[0].Runs, rows[0].Anomalies)
	}
}

func TestListSweepsSubSecondOrder(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)
	starts := []time.Duration{100 * time.Millisecond, 120 * time.Millisecond, 0, 999 * time.Millisecond}
	for i, d := range starts {
		s := sampleSummary()
		s.Index = i
		s.StartedAt = base.Add(d)
		if err := h.RecordSweep(ctx, "/runs/e", s); err != nil {
			t.Fatalf("RecordSweep: %v", err)
		}
	}
	rows, err := h.ListSweeps(ctx, 0)
	if err != nil {
		t.Fatalf("ListSweeps: %v", err)
	}
	want := []int{3, 1, 0, 2}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, r := range rows {
		if r.Index != want[i] {
			t.Errorf("position %d: got index %d (started %s), want %d", i, r.Index, r.StartedAt.Format(time.RFC3339Nano), want[i])
		}
		if !r.StartedAt.Equal(base.Add(starts[r.Index])) {
			t.Errorf("index %d: started_at %s did not round-trip", r.Index, r.StartedAt)
		}
	}
}

func TestLoadSweepNotFound(t *testing.T) {
	h := openHistory(t)
	if _, err := h.LoadSweep(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.RecordSweep(context.Background(), "/runs/d", sampleSummary()); err != nil {
		t.Fatalf("RecordSweep: %v", err)
	}
	h.Close()

	h, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h.Close()
	rows, err := h.ListSweeps(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSweeps: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows after reopen", len(rows))
	}
}
