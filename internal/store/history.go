package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/result"
)

// timeLayout is fixed-width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by LoadSweep for an unknown id.
var ErrNotFound = errors.New("sweep not found")

// History records sweeps into a SQLite database.
type History struct {
	db   *sql.DB
	path string
}

// SweepRow is the listing view of a recorded sweep.
type SweepRow struct {
	ID        string
	RunDir    string
	Index     int
	Scenario  config.Scenario
	Status    string
	Error     string
	Runs      int
	Anomalies int
	StartedAt time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &History{db: db, path: path}, nil
}

func (h *History) Path() string { return h.path }

func (h *History) Close() error {
	return h.db.Close()
}

// RecordSweep stores a sweep with all of its samples and anomalies in one
// transaction.
func (h *History) RecordSweep(ctx context.Context, runDir string, s *result.SweepSummary) error {
	_, err := h.Insert(ctx, runDir, s)
	return err
}

// Insert is RecordSweep returning the new sweep's id.
func (h *History) Insert(ctx context.Context, runDir string, s *result.SweepSummary) (string, error) {
	participants, err := json.Marshal(s.Participants)
	if err != nil {
		return "", fmt.Errorf("failed to encode participants: %w", err)
	}
	id := uuid.NewString()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sc := s.Scenario
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, run_dir, sweep_index, num_targets, time_step, time_limit, repetition,
			primal_seed, rng, format, observed, participants, status, error, started_at, duration_s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, runDir, s.Index, sc.NumTargets, sc.TimeStep, sc.TimeLimit, sc.Repetition,
		s.PrimalSeed, s.RNG, s.Format, nullString(s.Observed), string(participants),
		s.Status, nullString(s.Error), s.StartedAt.UTC().Format(timeLayout), s.DurationS)
	if err != nil {
		return "", fmt.Errorf("failed to insert sweep: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (sweep_id, run_index, seed, participant, final_score, time_remaining)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()
	for i, sd := range s.Seeds {
		for _, p := range s.Participants {
			series := s.Series[p]
			if _, err := stmt.ExecContext(ctx, id, i, sd, p,
				nullSample(series.FinalScores, i), nullSample(series.TimeRemaining, i)); err != nil {
				return "", fmt.Errorf("failed to insert sample: %w", err)
			}
		}
	}

	for _, a := range s.Anomalies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO anomalies (sweep_id, run_index, seed, participant, kind, score, best)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, a.Run, a.Seed, a.Participant, string(a.Kind), a.Score, a.Best); err != nil {
			return "", fmt.Errorf("failed to insert anomaly: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit sweep: %w", err)
	}
	return id, nil
}

// ListSweeps returns recorded sweeps, most recent first. A limit of zero or
// less returns all of them.
func (h *History) ListSweeps(ctx context.Context, limit int) ([]SweepRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT s.id, s.run_dir, s.sweep_index, s.num_targets, s.time_step, s.time_limit, s.repetition,
			s.status, COALESCE(s.error, ''), s.started_at,
			(SELECT COUNT(DISTINCT run_index) FROM samples WHERE sweep_id = s.id),
			(SELECT COUNT(*) FROM anomalies WHERE sweep_id = s.id)
		FROM sweeps s
		ORDER BY s.started_at DESC, s.sweep_index DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepRow
	for rows.Next() {
		var r SweepRow
		var started string
		if err := rows.Scan(&r.ID, &r.RunDir, &r.Index,
			&r.Scenario.NumTargets, &r.Scenario.TimeStep, &r.Scenario.TimeLimit, &r.Scenario.Repetition,
			&r.Status, &r.Error, &started, &r.Runs, &r.Anomalies); err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("sweep %s: bad started_at %q: %w", r.ID, started, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadSweep rebuilds the summary of a recorded sweep.
func (h *History) LoadSweep(ctx context.Context, id string) (*result.SweepSummary, error) {
	s := &result.SweepSummary{}
	var (
		participants string
		observed     sql.NullString
		errText      sql.NullString
		started      string
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT sweep_index, num_targets, time_step, time_limit, repetition, primal_seed, rng, format,
			observed, participants, status, error, started_at, duration_s
		FROM sweeps WHERE id = ?`, id).Scan(
		&s.Index, &s.Scenario.NumTargets, &s.Scenario.TimeStep, &s.Scenario.TimeLimit, &s.Scenario.Repetition,
		&s.PrimalSeed, &s.RNG, &s.Format, &observed, &participants, &s.Status, &errText, &started, &s.DurationS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep: %w", err)
	}
	s.Observed = observed.String
	s.Error = errText.String
	if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if err := json.Unmarshal([]byte(participants), &s.Participants); err != nil {
		return nil, fmt.Errorf("failed to decode participants: %w", err)
	}

	table := result.NewTable(s.Participants)
	if err := h.loadSamples(ctx, id, table); err != nil {
		return nil, err
	}
	s.Fill(table)

	if s.Anomalies, err = h.loadAnomalies(ctx, id, s.Scenario); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *History) loadSamples(ctx context.Context, id string, table *result.Table) error {
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_index, seed, participant, final_score, time_remaining
		FROM samples WHERE sweep_id = ? ORDER BY run_index`, id)
	if err != nil {
		return fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var (
		run     result.Run
		current = -1
		seed    int64
	)
	for rows.Next() {
		var (
			idx         int
			sd          int64
			participant string
			score, tr   sql.NullFloat64
		)
		if err := rows.Scan(&idx, &sd, &participant, &score, &tr); err != nil {
			return fmt.Errorf("failed to scan sample: %w", err)
		}
		if idx != current {
			if run != nil {
				table.Append(seed, run)
			}
			run, current, seed = result.Run{}, idx, sd
		}
		run[participant] = result.RunRecord{FinalScore: fromNull(score), TimeRemaining: fromNull(tr)}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if run != nil {
		table.Append(seed, run)
	}
	return nil
}

func (h *History) loadAnomalies(ctx context.Context, id string, sc config.Scenario) ([]result.Anomaly, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT run_index, seed, participant, kind, score, best
		FROM anomalies WHERE sweep_id = ? ORDER BY run_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var out []result.Anomaly
	for rows.Next() {
		a := result.Anomaly{Scenario: sc}
		var kind string
		if err := rows.Scan(&a.Run, &a.Seed, &a.Participant, &kind, &a.Score, &a.Best); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		a.Kind = result.AnomalyKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullSample(series []result.Sample, i int) sql.NullFloat64 {
	if i >= len(series) {
		return sql.NullFloat64{}
	}
	v, ok := series[i].Get()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func fromNull(n sql.NullFloat64) result.Sample {
	if !n.Valid {
		return result.Absent
	}
	return result.Some(n.Float64)
}
