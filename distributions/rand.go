// Package distributions implements the latency distributions that drive the
// simulation: fixed, normal, exponential, uniform, log-normal, and weighted
// mixtures, plus the deterministic jitter used by recurring schedules.
//
// All sampling goes through a Rand handle rather than the package-global
// PRNG so tests can construct independently seeded instances.
package distributions

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"sync"
)

// Rand is a mutex-guarded PRNG handle. Safe for concurrent use; one handle
// is shared across all in-flight requests.
type Rand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a handle seeded from the system entropy source.
func NewRand() *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededRand returns a handle with a fixed seed for reproducible tests.
func NewSeededRand(seed uint64) *Rand {
	return &Rand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a uniform value in [0, 1).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// NormFloat64 returns a standard-normal value.
func (r *Rand) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.NormFloat64()
}

// IntN returns a uniform value in [0, n).
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// OccurrenceJitter returns a signed jitter in [-jitterMs, +jitterMs] for
// occurrence k of the schedule identified by key. The value is a pure
// function of (key, k): the same occurrence always lands at the same point,
// which keeps time-based test scenarios stable across processes.
func OccurrenceJitter(key string, k int64, jitterMs float64) float64 {
	if jitterMs <= 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(key))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.FormatInt(k, 10)))
	// Top 53 bits give a uniform value in [0, 1).
	u := float64(h.Sum64()>>11) / (1 << 53)
	return (2*u - 1) * jitterMs
}
