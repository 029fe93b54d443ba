package nonprofit

import (
	"time"

	"github.com/warp/synth-engine/generic"
)

// DefaultStart is the first simulated month of the preset.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns the GiveHope preset. Stage volumes are one-time
// gifts per month; recurring charges come on top.
func DefaultConfig() Config {
	return Config{
		Start:   DefaultStart,
		Periods: 24,
		Stages: []generic.Stage{
			{Name: "early", StartMonth: 0, EndMonth: 8, BaseVolume: 120, Growth: 0.06,
				Rates: map[string]float64{generic.RateRecurring: 0.20, RateRetention: 0.65, generic.RateFailure: 0.04}},
			{Name: "growth", StartMonth: 8, EndMonth: 16, BaseVolume: 900, Growth: 0.06,
				Rates: map[string]float64{generic.RateRecurring: 0.35, RateRetention: 0.75, generic.RateFailure: 0.04}},
			{Name: "mature", StartMonth: 16, EndMonth: 24, BaseVolume: 6000, Growth: 0.03,
				Rates: map[string]float64{generic.RateRecurring: 0.50, RateRetention: 0.85, generic.RateFailure: 0.04}},
		},
		MonthlyGoal:        map[string]int64{"early": 1_000_000, "growth": 10_000_000, "mature": 100_000_000},
		CampaignsPerPeriod: map[string]int{"early": 1, "growth": 2, "mature": 3},
		CampaignTypes: []CampaignType{
			{Name: "disaster_relief", Title: "Emergency Relief", GoalMultiplier: 5.0, MinDays: 7, MaxDays: 30, DonationSpike: 3.0},
			{Name: "education", Title: "Scholarships for Tomorrow", GoalMultiplier: 1.5, MinDays: 60, MaxDays: 120, DonationSpike: 1.2},
			{Name: "healthcare", Title: "Health Access", GoalMultiplier: 2.0, MinDays: 45, MaxDays: 90, DonationSpike: 1.5},
			{Name: "environment", Title: "Green Futures", GoalMultiplier: 1.2, MinDays: 90, MaxDays: 180, DonationSpike: 1.0},
			{Name: "community", Title: "Neighbors Together", GoalMultiplier: 1.0, MinDays: 30, MaxDays: 90, DonationSpike: 1.1},
		},
		DonorTypes: []DonorType{
			{Name: "individual", Weight: 90, MajorShare: 0.05},
			{Name: "corporate", Weight: 8, MajorShare: 0.25},
			{Name: "foundation", Weight: 2, MajorShare: 0.60},
		},
		Capacities: []Capacity{
			{Name: "low", Weight: 70, MonthlyMin: 2500, MonthlyMax: 10000},
			{Name: "medium", Weight: 22, Min: 10000, Max: 50000, MonthlyMin: 2500, MonthlyMax: 25000},
			{Name: "high", Weight: 8, Min: 50000, Max: 200000, MonthlyMin: 10000, MonthlyMax: 100000},
		},
		Channels: generic.WeightTable{
			{Label: "organic", Weight: 0.35},
			{Label: "email", Weight: 0.25},
			{Label: "social", Weight: 0.20},
			{Label: "event", Weight: 0.15},
			{Label: "peer_to_peer", Weight: 0.05},
		},
		Frequencies: []Frequency{
			{Name: "monthly", Weight: 0.6, Months: 1},
			{Name: "quarterly", Weight: 0.2, Months: 3},
			{Name: "annually", Weight: 0.2, Months: 12},
		},
		SuggestedAmounts:  []int64{2500, 5000, 10000, 25000, 50000, 100000},
		MajorRange:        [2]int64{100000, 2500000},
		MajorMonthly:      [2]int64{50000, 500000},
		MajorThreshold:    100000,
		FeeCoverShare:     0.30,
		FeePercent:        generic.MustRate("0.029"),
		FeeFixed:          30,
		EmployerShare:     0.40,
		MatchShare:        0.15,
		MatchRatios:       []float64{0.5, 0.75, 1.0},
		MatchCap:          500000,
		DedicateShare:     0.20,
		ReceiptMinimum:    2500,
		Organization: Organization{
			Name:    "GiveHope Foundation",
			EIN:     "12-3456789",
			Address: "123 Giving Way, Hope City, HC 12345",
		},
		MaxLifetimeMonths: 120,
		Seasonal:          GivingSeasonality(),
	}
}

// GivingSeasonality is the charity calendar: a summer slump, year-end giving,
// and a spike around Giving Tuesday.
func GivingSeasonality() []generic.SeasonalRule {
	rules := generic.MonthlyCurve("giving", map[time.Month]float64{
		time.January:   1.2,
		time.February:  0.9,
		time.March:     1.0,
		time.April:     1.1,
		time.May:       1.0,
		time.June:      0.8,
		time.July:      0.7,
		time.August:    0.8,
		time.September: 1.1,
		time.October:   1.3,
		time.November:  2.0,
		time.December:  2.8,
	})
	return append(rules, generic.SeasonalRule{
		Name:       "giving_tuesday",
		Trigger:    generic.NearHoliday(generic.HolidayGivingTuesday, 1),
		Multiplier: 2.5,
	})
}

// =============================================================================
// VERTICAL REGISTRATION
// =============================================================================

// Vertical adapts the preset to generic.Vertical.
type Vertical struct {
	Config Config
}

var _ generic.Vertical = Vertical{}

func init() {
	generic.RegisterVertical(Vertical{Config: DefaultConfig()})
}

func (Vertical) Name() string { return Name }

func (Vertical) Description() string {
	return "GiveHope nonprofit: donors, campaigns, one-time and recurring gifts, employer matches, tax receipts"
}

// Build returns the engine config and a fresh factory for one run.
func (v Vertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	cfg := generic.ApplyOptions(generic.Config{
		Vertical:    Name,
		Start:       v.Config.Start,
		Periods:     v.Config.Periods,
		Currency:    "usd",
		Stages:      v.Config.Stages,
		Seasonal:    v.Config.Seasonal,
		Collections: Collections(),
	}, opts)
	f, err := NewFactory(v.Config, generic.PeriodStart(cfg.Start, cfg.Periods))
	if err != nil {
		return generic.Config{}, nil, err
	}
	return cfg, f, nil
}
