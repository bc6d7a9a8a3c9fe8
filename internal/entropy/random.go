// Package entropy provides the randomness used for parameter draws and
// per-tick noise injection. All consumers take a Source rather than
// reaching for a global generator, so tests can substitute a seeded one
// and reproduce full trajectories.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
)

// Source supplies the two draw shapes the engine needs.
type Source interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal draw (mean 0, stddev 1).
	NormFloat64() float64
}

type prngSource struct {
	rng *mrand.Rand
}

// NewSeeded returns a deterministic Source. Two sources with the same
// seed produce identical draw sequences. Not safe for concurrent use;
// the coordinator serializes all draws behind its own lock.
func NewSeeded(seed int64) Source {
	return &prngSource{rng: mrand.New(mrand.NewSource(seed))}
}

// NewSystem returns a Source seeded from crypto/rand. Used in production
// where reproducibility is not required.
func NewSystem() Source {
	return NewSeeded(cryptoSeed())
}

func (s *prngSource) Float64() float64     { return s.rng.Float64() }
func (s *prngSource) NormFloat64() float64 { return s.rng.NormFloat64() }

// Uniform returns a draw in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Normal returns a draw from Normal(mean, stddev).
func Normal(src Source, mean, stddev float64) float64 {
	return mean + src.NormFloat64()*stddev
}

// cryptoSeed derives an int64 seed from crypto/rand.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand read failure is effectively impossible; fall back
		// to a fixed seed rather than crash during bootstrap.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]))
	if seed == math.MinInt64 {
		seed = math.MaxInt64
	}
	return seed
}
