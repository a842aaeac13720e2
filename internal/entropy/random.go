// Package entropy provides the single seeded random stream of a simulation run.
// Every stochastic decision (warning emission, probabilistic displacement)
// draws from one Stream so a run is reproducible from its seed.
package entropy

import (
	"math/rand"
)

// Stream is a deterministic source of uniform and normal draws.
// It is not safe for concurrent use; the engine draws from its own goroutine
// between phases, never inside a parallel phase.
type Stream struct {
	seed  int64
	rng   *rand.Rand
	draws uint64
}

// NewStream creates a stream seeded with seed.
func NewStream(seed int64) *Stream {
	return &Stream{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Float returns a uniform float64 in [0, 1).
func (s *Stream) Float() float64 {
	s.draws++
	return s.rng.Float64()
}

// Normal returns a normally distributed value with the given mean and standard deviation.
func (s *Stream) Normal(mean, stddev float64) float64 {
	s.draws++
	return mean + s.rng.NormFloat64()*stddev
}

// Draws returns how many values have been taken from the stream.
func (s *Stream) Draws() uint64 {
	return s.draws
}
