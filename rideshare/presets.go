package rideshare

import (
	"time"

	"github.com/warp/synth-engine/generic"
)

// DefaultStart is the first simulated month of the preset.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns the RideShare Plus preset. Stage volumes are ride
// requests per month.
func DefaultConfig() Config {
	return Config{
		Start:   DefaultStart,
		Periods: 24,
		Stages: []generic.Stage{
			{Name: "early", StartMonth: 0, EndMonth: 8, BaseVolume: 650, Growth: 0.04,
				Rates: map[string]float64{RateSurge: 0.15, RateFraud: 0.05, generic.RateNewCustomer: 0.30}},
			{Name: "growth", StartMonth: 8, EndMonth: 16, BaseVolume: 2600, Growth: 0.04,
				Rates: map[string]float64{RateSurge: 0.25, RateFraud: 0.03, generic.RateNewCustomer: 0.20}},
			{Name: "mature", StartMonth: 16, EndMonth: 24, BaseVolume: 5200, Growth: 0.02,
				Rates: map[string]float64{RateSurge: 0.35, RateFraud: 0.02, generic.RateNewCustomer: 0.10}},
		},
		Drivers:   map[string]int{"early": 50, "growth": 150, "mature": 300},
		CityCount: map[string]int{"early": 1, "growth": 3, "mature": 5},
		Cities: []City{
			{Name: "San Francisco", Airport: "SFO"},
			{Name: "Austin", Airport: "AUS"},
			{Name: "Miami", Airport: "MIA"},
			{Name: "Denver", Airport: "DEN"},
			{Name: "Seattle", Airport: "SEA"},
			{Name: "Nashville", Airport: "BNA"},
			{Name: "Phoenix", Airport: "PHX"},
			{Name: "Atlanta", Airport: "ATL"},
			{Name: "Boston", Airport: "BOS"},
			{Name: "Chicago", Airport: "ORD"},
		},
		Vehicles: []Vehicle{
			{Name: "standard", Weight: 0.70, Multiplier: 1.0, Capacity: 4},
			{Name: "premium", Weight: 0.20, Multiplier: 1.5, Capacity: 4},
			{Name: "xl", Weight: 0.10, Multiplier: 1.8, Capacity: 6},
		},
		RideTypes: []RideType{
			{Name: "local", Weight: 60, MinMiles: 0.5, MaxMiles: 2.5},
			{Name: "medium", Weight: 30, MinMiles: 2.5, MaxMiles: 7},
			{Name: "airport", Weight: 10, MinMiles: 8, MaxMiles: 20, Airport: true},
		},
		Pricing: Pricing{
			BaseFare:         250,
			PerMile:          150,
			PerMinute:        35,
			MinimumFare:      500,
			BookingFee:       199,
			AirportSurcharge: 350,
			InstantPayoutFee: 50,
			DriverTake:       generic.Percent(75),
			Surges:           []float64{1.25, 1.5, 1.75, 2.0, 2.5, 3.0},
		},
		HourBoosts: []HourBoost{
			{Name: "rush_morning", Hours: []int{7, 8, 9}, Multiple: 1.5},
			{Name: "rush_evening", Hours: []int{17, 18, 19}, Multiple: 1.8},
			{Name: "late_night", Hours: []int{23, 0, 1, 2}, Multiple: 1.3},
			{Name: "weekend_night", Hours: []int{22, 23, 0, 1, 2}, Weekend: true, Multiple: 2.0},
		},
		CancelShare:  0.05,
		InstantShare: 0.30,
		FraudTypes: generic.WeightTable{
			{Label: "fake_ride", Weight: 0.4},
			{Label: "stolen_card", Weight: 0.3},
			{Label: "account_takeover", Weight: 0.2},
			{Label: "promo_abuse", Weight: 0.1},
		},
		FraudProfiles: map[string]FraudProfile{
			"fake_ride": {
				Description: "Driver and rider colluding for fake rides",
				Patterns: []string{
					"GPS_ANOMALY: No movement detected during ride",
					"DURATION_MISMATCH: Ride completed in unrealistic time",
					"REPEAT_PATTERN: Same driver-rider pair multiple times",
					"LOCATION_SUSPICIOUS: Pickup and dropoff identical",
				},
				Risk: [2]float64{0.8, 1.0},
			},
			"stolen_card": {
				Description: "Stolen payment method usage",
				Patterns: []string{
					"VELOCITY_HIGH: Multiple rides in short timeframe",
					"LOCATION_INCONSISTENT: Rides from unexpected locations",
					"DEVICE_NEW: First-time device usage",
					"PAYMENT_PATTERN: Different from historical usage",
				},
				Risk: [2]float64{0.7, 0.95},
			},
			"account_takeover": {
				Description: "Compromised rider account",
				Patterns: []string{
					"BEHAVIOR_CHANGE: Sudden change in ride patterns",
					"DEVICE_SWITCH: Different device/IP than usual",
					"DESTINATION_UNUSUAL: Rides to unexpected locations",
					"TIME_ANOMALY: Rides at unusual hours for user",
				},
				Risk: [2]float64{0.65, 0.9},
			},
			"promo_abuse": {
				Description: "Multiple accounts for promotions",
				Patterns: []string{
					"ACCOUNT_SIMILARITY: Similar signup patterns detected",
					"PAYMENT_OVERLAP: Same payment method across accounts",
					"LOCATION_CLUSTERING: Multiple accounts from same location",
					"PROMO_PATTERN: Consistent promo code usage",
				},
				Risk: [2]float64{0.6, 0.85},
			},
		},
		FraudStatuses: []string{FraudInvestigating, FraudConfirmed, FraudFalsePositive},
		FraudActions: []string{
			"account_suspended", "ride_refunded", "additional_verification_required",
			"no_action", "escalated_to_law_enforcement",
		},
		DetectionMethods: []string{"ml_model", "rule_based", "manual_review"},
		Fuel: Fuel{
			RidesPerFill:   [2]int{15, 25},
			Amount:         [2]int64{2000, 8000},
			CentsPerGallon: [2]int64{350, 450},
			Stations:       []string{"Shell", "Chevron", "BP", "Exxon", "Mobil", "Texaco", "76", "Arco", "Valero", "Marathon"},
		},
		Seasonal: []generic.SeasonalRule{
			{Name: "weekend_nights", Trigger: generic.OnWeekdays(time.Friday, time.Saturday), Multiplier: 1.25},
			{Name: "summer_travel", Trigger: generic.InMonths(time.June, time.July, time.August), Multiplier: 1.1},
			{Name: "halloween", Trigger: generic.OnDate(time.October, 31), Multiplier: 1.5},
			{Name: "new_years_eve", Trigger: generic.OnDate(time.December, 31), Multiplier: 2.5},
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
	return "RideShare Plus: drivers, riders, surge-priced rides, transfers, payouts, fuel cards, fraud cases"
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
