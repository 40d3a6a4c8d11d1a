package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/signalnine/tournament/internal/parse"
	"github.com/signalnine/tournament/internal/result"
	"github.com/signalnine/tournament/internal/stats"
)

// Row is the aggregate of one participant over one sweep. Time is nil for
// output formats without time-remaining values.
type Row struct {
	Participant string       `json:"participant"`
	Score       stats.Stats  `json:"score"`
	Time        *stats.Stats `json:"time_remaining,omitempty"`
}

// Aggregate summarizes every participant's series in participant order. A
// series without any present sample fails the whole sweep.
func Aggregate(s *result.SweepSummary) ([]Row, error) {
	f, err := parse.New(s.Format, "")
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(s.Participants))
	for _, p := range s.Participants {
		series := s.Series[p]
		score, err := stats.Summarize(series.FinalScores)
		if err != nil {
			return nil, fmt.Errorf("%s final scores: %w", p, err)
		}
		row := Row{Participant: p, Score: score}
		if f.HasTimeRemaining() {
			tr, err := stats.Summarize(series.TimeRemaining)
			if err != nil {
				return nil, fmt.Errorf("%s time remaining: %w", p, err)
			}
			row.Time = &tr
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RenderLine formats one comma-separated report record: repetition, primal
// seed, num_targets, time_step, time_limit, participant, then mean, median,
// min, max and population stddev of the final score, followed by the same
// five for time remaining when the format carries it.
func RenderLine(s *result.SweepSummary, row Row) string {
	sc := s.Scenario
	var b strings.Builder
	fmt.Fprintf(&b, "%d,%d,%d,%g,%d,%s",
		sc.Repetition, s.PrimalSeed, sc.NumTargets, sc.TimeStep, sc.TimeLimit, row.Participant)
	writeStats(&b, row.Score)
	if row.Time != nil {
		writeStats(&b, *row.Time)
	}
	return b.String()
}

func writeStats(b *strings.Builder, st stats.Stats) {
	fmt.Fprintf(b, ",%.2f,%.2f,%.2f,%.2f,%.2f", st.Mean, st.Median, st.Min, st.Max, st.StdDev)
}

// RenderAnomalies lists the runs the observed participant finished last in
// and, if notBest is set, the runs it finished below first. Sections with no
// runs are left out; the result is empty when nothing is listed.
func RenderAnomalies(anomalies []result.Anomaly, notBest bool) string {
	var b strings.Builder
	section := func(kind result.AnomalyKind, heading string) {
		var items []result.Anomaly
		for _, a := range anomalies {
			if a.Kind == kind {
				items = append(items, a)
			}
		}
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s %s for the following runs:\n", items[0].Participant, heading)
		for _, a := range items {
			fmt.Fprintf(&b, " - %s\n", a)
		}
	}
	section(result.AnomalyLast, "was LAST")
	if notBest {
		section(result.AnomalyNotBest, "was NOT FIRST")
	}
	return b.String()
}

// WriteSweep writes a sweep's report lines, then its anomaly listing.
func WriteSweep(w io.Writer, s *result.SweepSummary, notBest bool) error {
	rows, err := Aggregate(s)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, RenderLine(s, row)); err != nil {
			return err
		}
	}
	if listing := RenderAnomalies(s.Anomalies, notBest); listing != "" {
		if _, err := fmt.Fprintf(w, "\n%s", listing); err != nil {
			return err
		}
	}
	return nil
}
