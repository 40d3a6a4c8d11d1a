// Package anomaly flags runs in which the observed participant did not win.
package anomaly

import (
	"github.com/signalnine/tournament/internal/config"
	"github.com/signalnine/tournament/internal/result"
)

// Classify compares the observed participant's score against the other
// scores of the same run. Absent scores are ignored; if the observed score is
// absent the run is not classified. Being the minimum takes precedence over
// not being the maximum, so an all-way tie reports LAST.
func Classify(run result.Run, observed string, seed int64, sc config.Scenario, index int) *result.Anomaly {
	own, ok := run[observed].FinalScore.Get()
	if !ok {
		return nil
	}
	lo, hi := own, own
	for _, rec := range run {
		v, ok := rec.FinalScore.Get()
		if !ok {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var kind result.AnomalyKind
	switch {
	case own == lo:
		kind = result.AnomalyLast
	case own < hi:
		kind = result.AnomalyNotBest
	default:
		return nil
	}
	return &result.Anomaly{
		Kind:        kind,
		Run:         index,
		Seed:        seed,
		Participant: observed,
		Score:       own,
		Best:        hi,
		Scenario:    sc,
	}
}

// Filter returns the anomalies of the given kind, in order.
func Filter(records []result.Anomaly, kind result.AnomalyKind) []result.Anomaly {
	var out []result.Anomaly
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
