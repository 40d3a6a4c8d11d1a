// Package stats computes descriptive statistics over sample series.
package stats

import (
	"errors"
	"math"
	"sort"

	"github.com/signalnine/tournament/internal/result"
)

// ErrEmptySeries is returned when a series has no present samples.
var ErrEmptySeries = errors.New("series has no present samples")

type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stddev"`
}

// Summarize reduces the present samples of series. StdDev is the population
// standard deviation.
func Summarize(series []result.Sample) (Stats, error) {
	values := Present(series)
	if len(values) == 0 {
		return Stats{}, ErrEmptySeries
	}
	sort.Float64s(values)

	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return Stats{
		Count:  len(values),
		Mean:   mean,
		Median: median(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		StdDev: math.Sqrt(sq / n),
	}, nil
}

// Present returns the values of the present samples, in order.
func Present(series []result.Sample) []float64 {
	values := make([]float64, 0, len(series))
	for _, s := range series {
		if v, ok := s.Get(); ok {
			values = append(values, v)
		}
	}
	return values
}

func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
