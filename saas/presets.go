package saas

import (
	"time"

	"github.com/warp/synth-engine/generic"
)

// DefaultStart is the first simulated month of the preset.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns the CloudFlow preset. Stage volumes are new
// signups per month.
func DefaultConfig() Config {
	return Config{
		Start:   DefaultStart,
		Periods: 24,
		Stages: []generic.Stage{
			{Name: "early", StartMonth: 0, EndMonth: 8, BaseVolume: 15, Growth: 0.12,
				Rates: map[string]float64{generic.RateChurn: 0.10, RateTrialConversion: 0.15, RateUpgrade: 0.05, RateAnnualShare: 0.10}},
			{Name: "growth", StartMonth: 8, EndMonth: 16, BaseVolume: 60, Growth: 0.08,
				Rates: map[string]float64{generic.RateChurn: 0.05, RateTrialConversion: 0.25, RateUpgrade: 0.08, RateAnnualShare: 0.25}},
			{Name: "mature", StartMonth: 16, EndMonth: 24, BaseVolume: 100, Growth: 0.06,
				Rates: map[string]float64{generic.RateChurn: 0.02, RateTrialConversion: 0.35, RateUpgrade: 0.12, RateAnnualShare: 0.40}},
		},
		Plans: []Plan{
			{Name: "starter", Monthly: 4900, Annual: 49000, IncludedSeats: 5},
			{Name: "professional", Monthly: 19900, Annual: 199000, IncludedSeats: 20},
			{Name: "enterprise", Monthly: 99900, Annual: 999000, IncludedSeats: 100},
		},
		Sizes: []CompanySize{
			{Name: "startup", Weight: 40, Plans: []string{"starter"}, MinSeats: 1, MaxSeats: 5,
				Usage: Usage{DailyAPICalls: [2]int64{100, 1000}, DailyStorageGB: [2]int64{1, 10}, ExtraSeats: [2]int{0, 2}}},
			{Name: "smb", Weight: 35, Plans: []string{"starter", "professional"}, MinSeats: 3, MaxSeats: 20,
				Usage: Usage{DailyAPICalls: [2]int64{1000, 10000}, DailyStorageGB: [2]int64{10, 100}, ExtraSeats: [2]int{1, 10}}},
			{Name: "mid_market", Weight: 20, Plans: []string{"professional", "enterprise"}, MinSeats: 15, MaxSeats: 100,
				Usage: Usage{DailyAPICalls: [2]int64{10000, 100000}, DailyStorageGB: [2]int64{100, 1000}, ExtraSeats: [2]int{5, 50}}},
			{Name: "enterprise", Weight: 5, Plans: []string{"enterprise"}, MinSeats: 50, MaxSeats: 500,
				Usage: Usage{DailyAPICalls: [2]int64{100000, 1000000}, DailyStorageGB: [2]int64{1000, 10000}, ExtraSeats: [2]int{20, 200}}},
		},
		SalesChannels: generic.WeightTable{
			{Label: "self_serve", Weight: 0.60},
			{Label: "inside_sales", Weight: 0.25},
			{Label: "field_sales", Weight: 0.10},
			{Label: "partner", Weight: 0.05},
		},
		SeatPrice:         1500,
		ExtraSeatShare:    0.3,
		TrialShare:        0.5,
		TrialDays:         []int{14, 21, 30},
		PaidShare:         0.95,
		MaxLifetimeMonths: 120,
		Seasonal: []generic.SeasonalRule{
			// B2B buyers sign on weekdays and slow down over the holidays.
			{Name: "weekend", Trigger: generic.OnWeekends(), Multiplier: 0.4},
			{Name: "year_end", Trigger: generic.InMonths(time.December), Multiplier: 0.8},
			{Name: "new_budget", Trigger: generic.InMonths(time.January), Multiplier: 1.2},
		},
	}
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
	return "CloudFlow B2B SaaS: companies, trials, subscriptions, renewal invoices, metered usage"
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
