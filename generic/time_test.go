package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/synth-engine/generic"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestHolidays(t *testing.T) {
	assert.Equal(t, date(2024, time.November, 28), generic.Thanksgiving(2024))
	assert.Equal(t, date(2024, time.November, 29), generic.BlackFriday(2024))
	assert.Equal(t, date(2024, time.December, 2), generic.CyberMonday(2024))
	assert.Equal(t, date(2024, time.December, 3), generic.GivingTuesday(2024))
	assert.Equal(t, date(2023, time.November, 23), generic.Thanksgiving(2023))
}

func TestAddMonths_ClampsDay(t *testing.T) {
	tests := []struct {
		from time.Time
		n    int
		want time.Time
	}{
		{date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{date(2023, time.January, 31), 1, date(2023, time.February, 28)},
		{date(2024, time.January, 15), 12, date(2025, time.January, 15)},
		{date(2024, time.March, 31), -1, date(2024, time.February, 29)},
		{date(2024, time.November, 30), 3, date(2025, time.February, 28)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generic.AddMonths(tt.from, tt.n), "%s %+d", generic.DayKey(tt.from), tt.n)
	}
}

func TestPeriodDays(t *testing.T) {
	days := generic.PeriodDays(date(2024, time.January, 17), 1)
	assert.Len(t, days, 29)
	assert.Equal(t, date(2024, time.February, 1), days[0])
	assert.Equal(t, "2024-02", generic.MonthKey(days[28]))
	assert.Equal(t, 30, generic.DaysBetween(date(2024, time.November, 1), date(2024, time.December, 1)))
}
