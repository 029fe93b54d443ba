/*
sampler.go - Seeded random value sampler

PURPOSE:
  The only source of randomness in a generation run. Every draw (category,
  amount, status, jitter, identifier suffix) goes through one Sampler so a
  fixed seed reproduces a byte-identical dataset.

OWNERSHIP:
  A Sampler is NOT safe for concurrent use and must be owned by exactly one
  generation run. Parallel runs each get their own instance (see runner/).

ALGORITHM:
  math/rand/v2 PCG source. Its output sequence is specified, so the same
  seed produces the same data across Go releases.

VALIDATION:
  - WeightedChoice: non-empty, no negative weight, at least one > 0
  - StatusFrom:     probabilities sum to 1 +/- ProbabilityTolerance
  - AmountInRange:  min <= max

SEE ALSO:
  - factory.go: BuildContext exposes the sampler to vertical factories
  - errors.go: InvalidDistributionError
*/
package generic

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

// ProbabilityTolerance is the allowed deviation of a status distribution's
// probability sum from 1.0.
const ProbabilityTolerance = 0.001

// =============================================================================
// DISTRIBUTION TABLES
// =============================================================================

// CategoryWeight is one entry in a weight table.
type CategoryWeight struct {
	Label  string  `json:"label" yaml:"label"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// WeightTable is an ordered list of weighted categories. Order matters for
// reproducibility, so tables built from maps are sorted by label.
type WeightTable []CategoryWeight

// Validate checks the table can be sampled.
func (t WeightTable) Validate(name string) error {
	if len(t) == 0 {
		return &InvalidDistributionError{Table: name, Reason: "table is empty"}
	}
	positive := false
	for _, cw := range t {
		if cw.Weight < 0 || math.IsNaN(cw.Weight) || math.IsInf(cw.Weight, 0) {
			return &InvalidDistributionError{Table: name,
				Reason: fmt.Sprintf("weight for %q must be a non-negative number, got %v", cw.Label, cw.Weight)}
		}
		if cw.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return &InvalidDistributionError{Table: name, Reason: "all weights are zero"}
	}
	return nil
}

// Labels returns the category labels in table order.
func (t WeightTable) Labels() []string {
	out := make([]string, len(t))
	for i, cw := range t {
		out[i] = cw.Label
	}
	return out
}

// WeightsFromMap builds a table sorted by label.
func WeightsFromMap(m map[string]float64) WeightTable {
	t := make(WeightTable, 0, len(m))
	for k, v := range m {
		t = append(t, CategoryWeight{Label: k, Weight: v})
	}
	sort.Slice(t, func(i, j int) bool { return t[i].Label < t[j].Label })
	return t
}

// Outcome is one status with its probability.
type Outcome struct {
	Status      string  `json:"status" yaml:"status"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Distribution is an ordered status distribution whose probabilities sum to 1.
type Distribution []Outcome

// Validate checks probabilities are non-negative and sum to ~1.0.
func (d Distribution) Validate(name string) error {
	if len(d) == 0 {
		return &InvalidDistributionError{Table: name, Reason: "distribution is empty"}
	}
	sum := 0.0
	for _, o := range d {
		if o.Probability < 0 || math.IsNaN(o.Probability) {
			return &InvalidDistributionError{Table: name,
				Reason: fmt.Sprintf("probability for %q must be non-negative, got %v", o.Status, o.Probability)}
		}
		sum += o.Probability
	}
	if math.Abs(sum-1) > ProbabilityTolerance {
		return &InvalidDistributionError{Table: name,
			Reason: fmt.Sprintf("probabilities sum to %.4f, want 1.0 +/- %.3f", sum, ProbabilityTolerance)}
	}
	return nil
}

// DistributionFromMap builds a distribution sorted by status.
func DistributionFromMap(m map[string]float64) Distribution {
	d := make(Distribution, 0, len(m))
	for k, v := range m {
		d = append(d, Outcome{Status: k, Probability: v})
	}
	sort.Slice(d, func(i, j int) bool { return d[i].Status < d[j].Status })
	return d
}

// Binary is the common two-outcome case: failure with probability p.
func Binary(success, failure string, p float64) Distribution {
	return Distribution{{Status: success, Probability: 1 - p}, {Status: failure, Probability: p}}
}

// =============================================================================
// SAMPLER
// =============================================================================

// Sampler draws every random value of a generation run.
type Sampler struct {
	rng  *rand.Rand
	seed uint64
}

// NewSampler returns a sampler seeded deterministically.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// NewSamplerFromSource wraps an arbitrary source. Tests use it to force
// collisions or pin exact draws.
func NewSamplerFromSource(src rand.Source) *Sampler {
	return &Sampler{rng: rand.New(src)}
}

// Seed returns the seed the sampler was built with (0 for custom sources).
func (s *Sampler) Seed() uint64 { return s.seed }

// Float64 returns a value in [0, 1).
func (s *Sampler) Float64() float64 { return s.rng.Float64() }

// IntN returns a value in [0, n). n must be > 0.
func (s *Sampler) IntN(n int) int { return s.rng.IntN(n) }

// IntBetween returns a value in [lo, hi] inclusive.
func (s *Sampler) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// FloatBetween returns a value in [lo, hi).
func (s *Sampler) FloatBetween(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Chance returns true with probability p.
func (s *Sampler) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

// Choice returns one element of options uniformly. options must not be empty.
func Choice[T any](s *Sampler, options []T) T {
	return options[s.rng.IntN(len(options))]
}

// Geometric returns the number of trials until the first success with
// per-trial probability p (>= 1), capped at max.
func (s *Sampler) Geometric(p float64, max int) int {
	if p <= 0 {
		return max
	}
	for n := 1; n < max; n++ {
		if s.Chance(p) {
			return n
		}
	}
	return max
}

// Jitter returns a random offset within one day, so a timestamp built from
// a day start never leaves that day.
func (s *Sampler) Jitter() time.Duration {
	return time.Duration(s.rng.Int64N(int64(24*time.Hour/time.Second))) * time.Second
}

// Read fills p from the sampler stream. It lets identifier helpers (and
// uuid.NewRandomFromReader) stay on the seeded stream.
func (s *Sampler) Read(p []byte) (int, error) {
	var buf [8]byte
	for i := 0; i < len(p); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], s.rng.Uint64())
		copy(p[i:], buf[:])
	}
	return len(p), nil
}

// WeightedChoice selects a label with probability proportional to its weight.
func (s *Sampler) WeightedChoice(table WeightTable) (string, error) {
	if err := table.Validate(""); err != nil {
		return "", err
	}
	total := 0.0
	for _, cw := range table {
		total += cw.Weight
	}
	r := s.rng.Float64() * total
	cumulative := 0.0
	last := ""
	for _, cw := range table {
		if cw.Weight == 0 {
			continue
		}
		cumulative += cw.Weight
		last = cw.Label
		if r < cumulative {
			return cw.Label, nil
		}
	}
	return last, nil
}

// AmountInRange returns a uniform integer amount in [min, max] minor units.
func (s *Sampler) AmountInRange(min, max int64) (int64, error) {
	if min > max {
		return 0, &InvalidDistributionError{Reason: fmt.Sprintf("amount range min %d > max %d", min, max)}
	}
	if min == max {
		return min, nil
	}
	// two's complement: the span and the sum are exact in uint64 even when
	// max-min does not fit in an int64
	span := uint64(max) - uint64(min)
	var draw uint64
	if span == math.MaxUint64 {
		draw = s.rng.Uint64()
	} else {
		draw = s.rng.Uint64N(span + 1)
	}
	return int64(uint64(min) + draw), nil
}

// StatusFrom draws a status from a distribution summing to ~1.0.
func (s *Sampler) StatusFrom(dist Distribution) (string, error) {
	if err := dist.Validate(""); err != nil {
		return "", err
	}
	r := s.rng.Float64()
	cumulative := 0.0
	last := ""
	for _, o := range dist {
		if o.Probability == 0 {
			continue
		}
		cumulative += o.Probability
		last = o.Status
		if r < cumulative {
			return o.Status, nil
		}
	}
	// r landed in the tolerance gap above the sum.
	return last, nil
}
