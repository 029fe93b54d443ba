package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SEASONAL RULES - Date-triggered multiplicative volume adjustments
// =============================================================================

// Trigger decides whether a rule applies to a simulated day.
type Trigger func(day time.Time) bool

// SeasonalRule multiplies generation volume on the days its trigger matches.
type SeasonalRule struct {
	Name       string
	Trigger    Trigger
	Multiplier float64
}

// Modulator applies every matching rule to a date. Overlapping rules compose
// multiplicatively: December x2.8 and Giving Tuesday x2.5 give x7.0.
type Modulator struct {
	rules []SeasonalRule
}

// NewModulator validates the rule set once.
func NewModulator(rules []SeasonalRule) (*Modulator, error) {
	for i, r := range rules {
		field := fmt.Sprintf("seasonal[%d]", i)
		if r.Name != "" {
			field = fmt.Sprintf("seasonal[%s]", r.Name)
		}
		if r.Trigger == nil {
			return nil, &ConfigurationError{Field: field, Reason: "trigger is required"}
		}
		if !(r.Multiplier > 0) {
			return nil, &ConfigurationError{Field: field + ".multiplier",
				Reason: fmt.Sprintf("must be > 0, got %v", r.Multiplier)}
		}
	}
	out := make([]SeasonalRule, len(rules))
	copy(out, rules)
	return &Modulator{rules: out}, nil
}

// MultiplierFor returns the product of all matching multipliers (1.0 if none).
func (m *Modulator) MultiplierFor(day time.Time) float64 {
	mult := 1.0
	for _, r := range m.rules {
		if r.Trigger(day) {
			mult *= r.Multiplier
		}
	}
	return mult
}

// Matching returns the names of rules that apply to day.
func (m *Modulator) Matching(day time.Time) []string {
	var names []string
	for _, r := range m.rules {
		if r.Trigger(day) {
			names = append(names, r.Name)
		}
	}
	return names
}

// DailyMultipliers returns the multiplier of each day plus their mean, which
// is the period-level multiplier.
func (m *Modulator) DailyMultipliers(days []time.Time) ([]float64, float64) {
	if len(days) == 0 {
		return nil, 1
	}
	mults := make([]float64, len(days))
	sum := 0.0
	for i, d := range days {
		mults[i] = m.MultiplierFor(d)
		sum += mults[i]
	}
	return mults, sum / float64(len(days))
}

// =============================================================================
// TRIGGERS
// =============================================================================

// InMonths matches any day in the given months.
func InMonths(months ...time.Month) Trigger {
	set := make(map[time.Month]bool, len(months))
	for _, m := range months {
		set[m] = true
	}
	return func(d time.Time) bool { return set[d.Month()] }
}

// OnWeekdays matches the given weekdays.
func OnWeekdays(days ...time.Weekday) Trigger {
	set := make(map[time.Weekday]bool, len(days))
	for _, wd := range days {
		set[wd] = true
	}
	return func(d time.Time) bool { return set[d.Weekday()] }
}

// OnWeekends matches Saturday and Sunday.
func OnWeekends() Trigger { return IsWeekend }

// OnDate matches a fixed calendar date every year (e.g. Valentine's Day).
func OnDate(month time.Month, day int) Trigger {
	return func(d time.Time) bool { return d.Month() == month && d.Day() == day }
}

// Between matches days in [from, to] inclusive, ignoring time of day.
func Between(from, to time.Time) Trigger {
	from, to = StartOfDay(from), StartOfDay(to)
	return func(d time.Time) bool {
		d = StartOfDay(d)
		return !d.Before(from) && !d.After(to)
	}
}

// NearHoliday matches days within window days of a named holiday.
// Unknown names never match; factory validation rejects them up front.
func NearHoliday(name string, window int) Trigger {
	return func(d time.Time) bool {
		h, ok := HolidayDate(name, d.Year())
		if !ok {
			return false
		}
		diff := DaysBetween(h, d)
		if diff < 0 {
			diff = -diff
		}
		return diff <= window
	}
}

// MonthlyCurve builds one rule per month from a month -> multiplier table,
// the shape most source curves were authored in. Months with 1.0 are skipped.
func MonthlyCurve(prefix string, curve map[time.Month]float64) []SeasonalRule {
	var rules []SeasonalRule
	for m := time.January; m <= time.December; m++ {
		v, ok := curve[m]
		if !ok || v == 1 {
			continue
		}
		rules = append(rules, SeasonalRule{
			Name:       fmt.Sprintf("%s_%s", prefix, monthName(m)),
			Trigger:    InMonths(m),
			Multiplier: v,
		})
	}
	return rules
}

func monthName(m time.Month) string { return strings.ToLower(m.String()) }
