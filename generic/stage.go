package generic

import (
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// STAGE - A named phase of the simulated business lifecycle
// =============================================================================

// Stage defines volume and rate parameters for a contiguous month range.
// The range is half-open: [StartMonth, EndMonth).
//
// Examples:
//   - early:  months 0-8,  150 rides/week, 15% surge frequency
//   - growth: months 8-16, 600 rides/week, 25% surge frequency
//   - mature: months 16-24, 1200 rides/week, 35% surge frequency
type Stage struct {
	Name       string
	StartMonth int
	EndMonth   int

	// BaseVolume is the target number of primary records per period.
	BaseVolume int

	// Growth compounds BaseVolume per period inside the stage (0.05 = +5%/month).
	// Zero keeps the volume flat.
	Growth float64

	// Rates holds stage-specific rate overrides (failure_rate, churn_rate, ...).
	Rates map[string]float64
}

// Contains returns true if period index i is within [StartMonth, EndMonth).
func (s Stage) Contains(i int) bool {
	return i >= s.StartMonth && i < s.EndMonth
}

// Rate returns the named rate, or def when the stage does not override it.
func (s Stage) Rate(name string, def float64) float64 {
	if v, ok := s.Rates[name]; ok {
		return v
	}
	return def
}

// TargetVolume returns the unmodulated volume for period i:
// BaseVolume * (1+Growth)^(i-StartMonth).
func (s Stage) TargetVolume(i int) float64 {
	base := float64(s.BaseVolume)
	if s.Growth == 0 {
		return base
	}
	return base * math.Pow(1+s.Growth, float64(i-s.StartMonth))
}

func (s Stage) String() string {
	return fmt.Sprintf("%s[%d,%d)", s.Name, s.StartMonth, s.EndMonth)
}

// =============================================================================
// LIFECYCLE SCHEDULER - Maps a period index to its stage
// =============================================================================

// Scheduler resolves the stage for a period. Stage tables are validated once
// at construction, so StageFor never has to re-check coverage.
type Scheduler struct {
	stages  []Stage
	periods int
}

// NewScheduler validates that stages partition [0, periods) with no gap and
// no overlap. Stages may extend past the last period; a stage that starts at
// or after `periods` is simply never reached.
func NewScheduler(stages []Stage, periods int) (*Scheduler, error) {
	if periods <= 0 {
		return nil, &ConfigurationError{Field: "periods", Reason: "must be positive"}
	}
	if len(stages) == 0 {
		return nil, &ConfigurationError{Field: "stages", Reason: "at least one stage is required"}
	}

	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartMonth < sorted[j].StartMonth })

	names := make(map[string]bool, len(sorted))
	for i, s := range sorted {
		field := fmt.Sprintf("stages[%s]", s.Name)
		if s.Name == "" {
			return nil, &ConfigurationError{Field: fmt.Sprintf("stages[%d]", i), Reason: "name is required"}
		}
		if names[s.Name] {
			return nil, &ConfigurationError{Field: field, Reason: "duplicate stage name"}
		}
		names[s.Name] = true
		if s.StartMonth >= s.EndMonth {
			return nil, &ConfigurationError{Field: field,
				Reason: fmt.Sprintf("start_month %d must be before end_month %d", s.StartMonth, s.EndMonth)}
		}
		if s.BaseVolume < 0 {
			return nil, &ConfigurationError{Field: field, Reason: "base volume must not be negative"}
		}
		if s.Growth <= -1 {
			return nil, &ConfigurationError{Field: field, Reason: "growth must be greater than -1"}
		}

		if i == 0 {
			if s.StartMonth != 0 {
				return nil, &ConfigurationError{Field: field,
					Reason: fmt.Sprintf("gap: periods [0,%d) are not covered", s.StartMonth)}
			}
			continue
		}
		prev := sorted[i-1]
		switch {
		case s.StartMonth > prev.EndMonth:
			return nil, &ConfigurationError{Field: field,
				Reason: fmt.Sprintf("gap: periods [%d,%d) are not covered", prev.EndMonth, s.StartMonth)}
		case s.StartMonth < prev.EndMonth:
			return nil, &ConfigurationError{Field: field,
				Reason: fmt.Sprintf("overlaps stage %s", prev)}
		}
	}

	if last := sorted[len(sorted)-1]; last.EndMonth < periods {
		return nil, &ConfigurationError{Field: "stages",
			Reason: fmt.Sprintf("gap: periods [%d,%d) are not covered", last.EndMonth, periods)}
	}

	return &Scheduler{stages: sorted, periods: periods}, nil
}

// StageFor returns the single stage whose range contains period i.
func (s *Scheduler) StageFor(i int) (Stage, error) {
	if i < 0 || i >= s.periods {
		return Stage{}, &ConfigurationError{Field: "period",
			Reason: fmt.Sprintf("period %d outside [0,%d)", i, s.periods)}
	}
	idx := sort.Search(len(s.stages), func(k int) bool { return s.stages[k].EndMonth > i })
	return s.stages[idx], nil
}

// Periods returns the number of simulated periods.
func (s *Scheduler) Periods() int { return s.periods }

// Stages returns the validated stages in timeline order.
func (s *Scheduler) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	copy(out, s.stages)
	return out
}

// Rate names shared by several verticals.
const (
	RateFailure     = "failure_rate"
	RateDispute     = "dispute_rate"
	RateNewCustomer = "new_customer_rate"
	RateChurn       = "churn_rate"
	RateRecurring   = "recurring_rate"
)
