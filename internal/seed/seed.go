// Package seed derives the reproducible per-run seeds of a sweep.
//
// Every call to Generate builds a fresh generator from the primal seed, so two
// scenarios with the same repetition count always see the same seeds no matter
// what ran before them.
package seed

import (
	"fmt"
	"math/rand/v2"
)

// Bound is the exclusive upper bound of generated seeds: values fall in
// [0, 2^31-2].
const Bound = 1<<31 - 1

// Source is a locally owned pseudo-random generator.
type Source interface {
	// Int64N returns a uniform value in [0, n).
	Int64N(n int64) int64
}

// NewSource returns a generator for the named algorithm seeded with primal.
func NewSource(algorithm string, primal int64) (Source, error) {
	switch algorithm {
	case "", "mt19937":
		return NewMersenne(primal), nil
	case "pcg":
		return rand.New(rand.NewPCG(uint64(primal), 0)), nil
	default:
		return nil, fmt.Errorf("unknown rng algorithm %q", algorithm)
	}
}

// Draw takes count seeds from src in draw order.
func Draw(src Source, count int) []int64 {
	seeds := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		seeds = append(seeds, src.Int64N(Bound))
	}
	return seeds
}

// Generate reseeds a new source with primal and draws count seeds from it.
func Generate(algorithm string, primal int64, count int) ([]int64, error) {
	src, err := NewSource(algorithm, primal)
	if err != nil {
		return nil, err
	}
	return Draw(src, count), nil
}
