package ecommerce

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/synth-engine/generic"
)

// DefaultStart is the first simulated month of the preset.
var DefaultStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultConfig returns the TechStyle preset.
func DefaultConfig() Config {
	return Config{
		Start:   DefaultStart,
		Periods: 24,
		Stages: []generic.Stage{
			{Name: "early", StartMonth: 0, EndMonth: 8, BaseVolume: 60, Growth: 0.2,
				Rates: map[string]float64{generic.RateFailure: 0.045, generic.RateDispute: 0.008, generic.RateNewCustomer: 0.7}},
			{Name: "growth", StartMonth: 8, EndMonth: 16, BaseVolume: 500, Growth: 0.2,
				Rates: map[string]float64{generic.RateFailure: 0.025, generic.RateDispute: 0.005, generic.RateNewCustomer: 0.7}},
			{Name: "mature", StartMonth: 16, EndMonth: 24, BaseVolume: 5000, Growth: 0.15,
				Rates: map[string]float64{generic.RateFailure: 0.0175, generic.RateDispute: 0.003, generic.RateNewCustomer: 0.7}},
		},
		StageCurrencies: map[string][]string{
			"early":  {"usd"},
			"growth": {"usd", "eur", "gbp"},
			"mature": {"usd", "eur", "gbp", "cad", "aud", "jpy", "chf", "sek", "nok", "dkk"},
		},
		Categories: []Category{
			{Name: "womens_clothing", Weight: 30, MinAmount: 2500, MaxAmount: 15000},
			{Name: "mens_clothing", Weight: 25, MinAmount: 3000, MaxAmount: 12000},
			{Name: "shoes", Weight: 20, MinAmount: 4000, MaxAmount: 25000},
			{Name: "accessories", Weight: 15, MinAmount: 1500, MaxAmount: 8000},
			{Name: "outerwear", Weight: 10, MinAmount: 8000, MaxAmount: 35000},
		},
		FXRates: map[string]decimal.Decimal{
			"usd": decimal.NewFromInt(1),
			"eur": generic.MustRate("0.92"),
			"gbp": generic.MustRate("0.79"),
			"cad": generic.MustRate("1.36"),
			"aud": generic.MustRate("1.52"),
			"jpy": generic.MustRate("149.5"),
			"chf": generic.MustRate("0.88"),
			"sek": generic.MustRate("10.4"),
			"nok": generic.MustRate("10.6"),
			"dkk": generic.MustRate("6.87"),
		},
		PaymentMethods: generic.WeightTable{
			{Label: "card", Weight: 0.85},
			{Label: "apple_pay", Weight: 0.08},
			{Label: "google_pay", Weight: 0.05},
			{Label: "paypal", Weight: 0.02},
		},
		AcquisitionChannels: generic.WeightTable{
			{Label: "organic", Weight: 30},
			{Label: "social", Weight: 25},
			{Label: "email", Weight: 15},
			{Label: "paid_search", Weight: 20},
			{Label: "referral", Weight: 10},
		},
		CardBrands: []string{"visa", "mastercard", "amex", "discover"},
		FailureCodes: []string{
			"card_declined", "insufficient_funds", "expired_card",
			"incorrect_cvc", "processing_error", "authentication_required",
		},
		DisputeReasons:   []string{"duplicate", "fraudulent", "subscription_canceled", "product_unacceptable"},
		DisputeStatuses:  []string{"warning_needs_response", "needs_response", "under_review"},
		DisputeDelayDays: [2]int{1, 30},
		Seasonal:         RetailSeasonality(),
	}
}

// RetailSeasonality is the holiday-shopping curve.
func RetailSeasonality() []generic.SeasonalRule {
	rules := generic.MonthlyCurve("retail", map[time.Month]float64{
		time.January:  0.85,
		time.November: 1.3,
		time.December: 1.6,
	})
	return append(rules,
		generic.SeasonalRule{Name: "black_friday", Trigger: generic.NearHoliday(generic.HolidayBlackFriday, 0), Multiplier: 3.0},
		generic.SeasonalRule{Name: "cyber_monday", Trigger: generic.NearHoliday(generic.HolidayCyberMonday, 0), Multiplier: 2.5},
		generic.SeasonalRule{Name: "weekend", Trigger: generic.OnWeekends(), Multiplier: 1.15},
	)
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
	return "TechStyle fashion retail: customers, multi-currency payments, disputes"
}

// Build returns the engine config and a fresh factory for one run.
func (v Vertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	f, err := NewFactory(v.Config)
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
