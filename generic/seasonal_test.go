package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

func TestModulator_OverlappingRulesCompose(t *testing.T) {
	// GIVEN: A December surge (x2.8) and Giving Tuesday +/-1 day (x2.5)
	// WHEN: Both match the same date
	// THEN: The multiplier is their product

	m, err := generic.NewModulator([]generic.SeasonalRule{
		{Name: "december", Trigger: generic.InMonths(time.December), Multiplier: 2.8},
		{Name: "giving_tuesday", Trigger: generic.NearHoliday(generic.HolidayGivingTuesday, 1), Multiplier: 2.5},
	})
	require.NoError(t, err)

	givingTuesday := time.Date(2024, time.December, 3, 15, 0, 0, 0, time.UTC)
	assert.InDelta(t, 2.8*2.5, m.MultiplierFor(givingTuesday), 1e-9)
	assert.ElementsMatch(t, []string{"december", "giving_tuesday"}, m.Matching(givingTuesday))

	assert.InDelta(t, 2.8*2.5, m.MultiplierFor(time.Date(2024, time.December, 4, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 2.8, m.MultiplierFor(time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 2.5, m.MultiplierFor(time.Date(2024, time.December, 2, 0, 0, 0, 0, time.UTC))/2.8, 1e-9)
	assert.InDelta(t, 1.0, m.MultiplierFor(time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)), 1e-9)
}

func TestModulator_WeekendAndDateTriggers(t *testing.T) {
	m, err := generic.NewModulator([]generic.SeasonalRule{
		{Name: "weekend", Trigger: generic.OnWeekends(), Multiplier: 1.4},
		{Name: "valentines", Trigger: generic.OnDate(time.February, 14), Multiplier: 2},
		{Name: "launch", Trigger: generic.Between(
			time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)), Multiplier: 3},
	})
	require.NoError(t, err)

	saturday := time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.4, m.MultiplierFor(saturday), 1e-9)
	assert.InDelta(t, 1.0, m.MultiplierFor(monday), 1e-9)

	// Feb 14 2024 is a Wednesday
	assert.InDelta(t, 2.0, m.MultiplierFor(time.Date(2024, time.February, 14, 9, 0, 0, 0, time.UTC)), 1e-9)

	// Mar 2 2024 is a Saturday inside the launch window
	assert.InDelta(t, 3*1.4, m.MultiplierFor(time.Date(2024, time.March, 2, 23, 59, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 1.0, m.MultiplierFor(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)), 1e-9)
}

func TestModulator_RejectsInvalidRules(t *testing.T) {
	_, err := generic.NewModulator([]generic.SeasonalRule{{Name: "zero", Trigger: generic.InMonths(time.May), Multiplier: 0}})
	assert.ErrorIs(t, err, generic.ErrConfiguration)

	_, err = generic.NewModulator([]generic.SeasonalRule{{Name: "no trigger", Multiplier: 2}})
	assert.ErrorIs(t, err, generic.ErrConfiguration)
}

func TestModulator_DailyMultipliersMean(t *testing.T) {
	m, err := generic.NewModulator(generic.MonthlyCurve("retail", map[time.Month]float64{
		time.December: 2.0,
		time.January:  1.0,
	}))
	require.NoError(t, err)

	_, mean := m.DailyMultipliers(generic.PeriodDays(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), 0))
	assert.InDelta(t, 2.0, mean, 1e-9)

	_, mean = m.DailyMultipliers(generic.PeriodDays(jan2024, 0))
	assert.InDelta(t, 1.0, mean, 1e-9)
}

func TestApportion(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, generic.Apportion(10, []float64{1, 1, 1}))
	assert.Equal(t, []int{0, 0}, generic.Apportion(0, []float64{1, 1}))

	parts := generic.Apportion(1000, []float64{1, 2.5, 1, 1, 7})
	sum := 0
	for _, p := range parts {
		sum += p
	}
	assert.Equal(t, 1000, sum)
	assert.Greater(t, parts[4], parts[1])
	assert.Greater(t, parts[1], parts[0])
}
