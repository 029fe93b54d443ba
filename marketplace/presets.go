package marketplace

import (
	"time"

	"github.com/warp/synth-engine/generic"
)

// DefaultStart is the first simulated month of the preset.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns the LocalBites preset. Stage volumes are orders per
// month, a tenth of the live platform's.
func DefaultConfig() Config {
	return Config{
		Start:   DefaultStart,
		Periods: 24,
		Stages: []generic.Stage{
			{Name: "early", StartMonth: 0, EndMonth: 8, BaseVolume: 1500, Growth: 0.05,
				Rates: map[string]float64{generic.RateFailure: 0.02, generic.RateNewCustomer: 0.35}},
			{Name: "growth", StartMonth: 8, EndMonth: 16, BaseVolume: 6000, Growth: 0.05,
				Rates: map[string]float64{generic.RateFailure: 0.02, generic.RateNewCustomer: 0.25}},
			{Name: "mature", StartMonth: 16, EndMonth: 24, BaseVolume: 15000, Growth: 0.03,
				Rates: map[string]float64{generic.RateFailure: 0.02, generic.RateNewCustomer: 0.15}},
		},
		Populations: map[string]Population{
			"early":  {Restaurants: 50, Couriers: 100},
			"growth": {Restaurants: 200, Couriers: 400},
			"mature": {Restaurants: 500, Couriers: 1000},
		},
		Cuisines: []Cuisine{
			{Name: "italian", AvgOrder: 4200, PrepTime: 25},
			{Name: "mexican", AvgOrder: 2800, PrepTime: 15},
			{Name: "chinese", AvgOrder: 3200, PrepTime: 20},
			{Name: "american", AvgOrder: 3800, PrepTime: 18},
			{Name: "thai", AvgOrder: 3500, PrepTime: 22},
			{Name: "indian", AvgOrder: 4000, PrepTime: 30},
			{Name: "japanese", AvgOrder: 4500, PrepTime: 20},
			{Name: "pizza", AvgOrder: 2500, PrepTime: 12},
		},
		Vehicles: []string{"bicycle", "scooter", "car", "motorcycle"},
		Fees: Fees{
			Commission:      generic.Percent(15),
			TipRate:         generic.Percent(15),
			ServiceFee:      199,
			DeliveryBase:    299,
			PerMileOverFree: 50,
			FreeMiles:       2.0,
		},
		MinMiles:   0.5,
		MaxMiles:   8.0,
		FoodSpread: [2]float64{0.7, 1.8},
		CourierLag: 45 * time.Minute,
		Expenses: []Expense{
			{Category: "gas_stations", Weight: 1, Min: 2000, Max: 8000},
			{Category: "parking", Weight: 1, Min: 200, Max: 1500},
			{Category: "tolls_bridge_fees", Weight: 1, Min: 150, Max: 800},
		},
		ExpenseShare: 0.25,
		Seasonal: []generic.SeasonalRule{
			{Name: "weekend", Trigger: generic.OnWeekends(), Multiplier: 1.3},
			{Name: "friday", Trigger: generic.OnWeekdays(time.Friday), Multiplier: 1.2},
			{Name: "winter", Trigger: generic.InMonths(time.December, time.January, time.February), Multiplier: 1.1},
			{Name: "super_bowl", Trigger: generic.Between(
				time.Date(2024, time.February, 11, 0, 0, 0, 0, time.UTC),
				time.Date(2024, time.February, 11, 0, 0, 0, 0, time.UTC)), Multiplier: 2.0},
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
	return "LocalBites food delivery: restaurants, couriers, orders, split transfers, courier card spend"
}

// Build returns the engine config and a fresh factory for one run.
func (v Vertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	f, err := NewFactory(v.Config, opts.ScaleOr())
	if err != nil {
		return generic.Config{}, nil, err
	}
	cfg := generic.ApplyOptions(generic.Config{
		Vertical:    Name,
		Start:       v.Config.Start,
		Periods:     v.Config.Periods,
		Currency:    "usd",
		Stages:      v.Config.Stages,
		Seasonal:    v.Config.Seasonal,
		Collections: Collections(),
	}, opts)
	return cfg, f, nil
}
