package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/tournament/internal/result"
)

// SweepReport is the JSON form of one stored sweep.
type SweepReport struct {
	Index     int              `json:"index"`
	Scenario  string           `json:"scenario"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Rows      []Row            `json:"rows,omitempty"`
	Anomalies []result.Anomaly `json:"anomalies,omitempty"`
}

// Generate reads every sweep summary under runDir and writes a report in the
// given format: csv (the run's report lines), table, markdown or json.
func Generate(runDir, format string, w io.Writer, notBest bool) error {
	summaries, err := collectSummaries(runDir)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return fmt.Errorf("no sweep summaries found in %s", runDir)
	}

	switch format {
	case "csv", "":
		return writeCSV(summaries, w, notBest)
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	case "table":
		return writeTable(summaries, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func collectSummaries(runDir string) ([]*result.SweepSummary, error) {
	var summaries []*result.SweepSummary
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == result.SummaryFile {
			s, err := result.ReadSweepSummary(path)
			if err != nil {
				return nil
			}
			summaries = append(summaries, s)
		}
		return nil
	})
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Index < summaries[j].Index
	})
	return summaries, err
}

func writeCSV(summaries []*result.SweepSummary, w io.Writer, notBest bool) error {
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if s.Status == result.StatusFailed {
			fmt.Fprintf(w, "# %s failed: %s\n", s.Scenario, s.Error)
			continue
		}
		if err := WriteSweep(w, s, notBest); err != nil {
			fmt.Fprintf(w, "# %s: %v\n", s.Scenario, err)
		}
	}
	return nil
}

func writeTable(summaries []*result.SweepSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tPARTICIPANT\tMEAN\tMEDIAN\tMIN\tMAX\tSTDDEV\tLAST\tNOT FIRST")
	fmt.Fprintln(tw, strings.Repeat("-", 90))
	for _, s := range summaries {
		rows, err := Aggregate(s)
		if s.Status == result.StatusFailed || err != nil {
			fmt.Fprintf(tw, "%s\tFAILED\t\t\t\t\t\t\t\n", s.Scenario)
			continue
		}
		last, notFirst := countAnomalies(s)
		for _, r := range rows {
			l, nf := "", ""
			if r.Participant == s.Observed {
				l, nf = fmt.Sprint(last), fmt.Sprint(notFirst)
			}
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
				s.Scenario, r.Participant, r.Score.Mean, r.Score.Median, r.Score.Min, r.Score.Max, r.Score.StdDev, l, nf)
		}
	}
	return tw.Flush()
}

func writeMarkdown(summaries []*result.SweepSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Scenario | Participant | Mean | Median | Min | Max | Stddev |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, s := range summaries {
		rows, err := Aggregate(s)
		if s.Status == result.StatusFailed || err != nil {
			fmt.Fprintf(w, "| %s | FAILED | | | | | |\n", s.Scenario)
			continue
		}
		for _, r := range rows {
			fmt.Fprintf(w, "| %s | %s | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
				s.Scenario, r.Participant, r.Score.Mean, r.Score.Median, r.Score.Min, r.Score.Max, r.Score.StdDev)
		}
	}
	return nil
}

func writeJSON(summaries []*result.SweepSummary, w io.Writer) error {
	reports := make([]SweepReport, 0, len(summaries))
	for _, s := range summaries {
		sr := SweepReport{
			Index:     s.Index,
			Scenario:  s.Scenario.String(),
			Status:    s.Status,
			Error:     s.Error,
			Anomalies: s.Anomalies,
		}
		if s.Status != result.StatusFailed {
			rows, err := Aggregate(s)
			if err != nil {
				sr.Status = result.StatusFailed
				sr.Error = err.Error()
			}
			sr.Rows = rows
		}
		reports = append(reports, sr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func countAnomalies(s *result.SweepSummary) (last, notFirst int) {
	for _, a := range s.Anomalies {
		switch a.Kind {
		case result.AnomalyLast:
			last++
		case result.AnomalyNotBest:
			notFirst++
		}
	}
	return last, notFirst
}
