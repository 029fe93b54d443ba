package rideshare_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/rideshare"
)

func run(t *testing.T, cfg rideshare.Config, opts generic.BuildOptions) *generic.Dataset {
	t.Helper()
	gcfg, factory, err := rideshare.Vertical{Config: cfg}.Build(opts)
	require.NoError(t, err)
	ds, err := generic.Generate(context.Background(), gcfg, factory)
	require.NoError(t, err)
	return ds
}

func TestPricing_Price(t *testing.T) {
	p := rideshare.DefaultConfig().Pricing

	// GIVEN: 4 miles, 12 minutes, standard, no surge
	fare := p.Price(4, 12, 1.0, false, 1.0)
	// 250 + 600 + 420
	assert.Equal(t, int64(1270), fare.Subtotal)
	assert.Equal(t, int64(1270+199), fare.Total)
	assert.Equal(t, int64(953), fare.Driver)

	// GIVEN: a short ride falls back to the minimum fare before surge
	short := p.Price(0.5, 5, 1.0, false, 2.0)
	assert.Equal(t, int64(500), short.Subtotal)
	assert.Equal(t, int64(1000), short.Surged)

	// GIVEN: an XL airport ride
	airport := p.Price(10, 30, 1.8, true, 1.0)
	assert.Equal(t, int64((250+1500+1050)*18/10+350), airport.Subtotal)
}

func TestRideshare_DriversAndCitiesExpandWithStage(t *testing.T) {
	cfg := rideshare.DefaultConfig()
	ds := run(t, cfg, generic.BuildOptions{Seed: 42, Scale: 0.1})

	cities := map[string]map[string]bool{}
	for _, a := range ds.Collection(generic.CollectionAccounts) {
		if cities[a.Stage] == nil {
			cities[a.Stage] = map[string]bool{}
		}
		cities[a.Stage][a.Meta("city")] = true
	}
	assert.Len(t, cities["early"], 1)
	assert.Len(t, ds.Collection(generic.CollectionAccounts), generic.ScaleCount(300, 0.1))
	assert.Len(t, ds.Collection(rideshare.CollectionCards), generic.ScaleCount(300, 0.1))

	for _, p := range ds.Collection(generic.CollectionPayments) {
		d, ok := ds.Get(generic.CollectionAccounts, p.Ref("driver"))
		require.True(t, ok)
		assert.Equal(t, d.Meta("city"), p.Meta("city"))
		assert.False(t, p.Created.Before(d.Created))
		r, ok := ds.Get(generic.CollectionCustomers, p.Ref("customer"))
		require.True(t, ok)
		assert.Equal(t, p.Meta("city"), r.Meta("home_city"))
	}
}

func TestRideshare_PayoutsSumMonthlyTransfers(t *testing.T) {
	cfg := rideshare.DefaultConfig()
	ds := run(t, cfg, generic.BuildOptions{Seed: 5, Periods: 4, Scale: 0.2})

	type key struct{ driver, month string }
	transferred := map[key]int64{}
	for _, tr := range ds.Collection(generic.CollectionTransfers) {
		transferred[key{tr.Ref("destination"), generic.MonthKey(tr.Created)}] += tr.Amount
	}

	payouts := ds.Collection(generic.CollectionPayouts)
	require.NotEmpty(t, payouts)
	for _, po := range payouts {
		k := key{po.Ref("destination"), generic.MonthKey(po.Created)}
		fee, _ := po.Field("fee")
		assert.Equal(t, transferred[k], po.Amount+fee.(int64), po.ID)
		assert.Equal(t, generic.StartOfMonth(po.Created).AddDate(0, 1, -1), generic.StartOfDay(po.Created))
		if po.Category == rideshare.PayoutInstant {
			assert.Equal(t, int64(50), fee)
		}
	}
}

func TestRideshare_OnlyCompletedRidesPayDrivers(t *testing.T) {
	ds := run(t, rideshare.DefaultConfig(), generic.BuildOptions{Seed: 13, Periods: 2, Scale: 2})

	paid := map[string]bool{}
	for _, tr := range ds.Collection(generic.CollectionTransfers) {
		paid[tr.Ref("payment_intent")] = true
	}
	flagged, stolen := 0, 0
	payments := ds.Collection(generic.CollectionPayments)
	for _, p := range payments {
		assert.Equal(t, p.Status == rideshare.StatusSucceeded, paid[p.ID], p.ID)
		if p.Meta("fraud_flag") == "true" {
			flagged++
			if p.Meta("fraud_type") == "stolen_card" {
				stolen++
				assert.Equal(t, rideshare.StatusRequiresPaymentMethod, p.Status)
			}
		}
	}
	assert.InDelta(t, 0.05, float64(flagged)/float64(len(payments)), 0.015)
	assert.Greater(t, stolen, 0)
}

func TestConfig_Validate(t *testing.T) {
	cfg := rideshare.DefaultConfig()
	cfg.CityCount["mature"] = 99
	_, err := rideshare.NewFactory(cfg, 1)
	assert.True(t, generic.IsConfigError(err))

	cfg = rideshare.DefaultConfig()
	cfg.Vehicles = nil
	_, err = rideshare.NewFactory(cfg, 1)
	assert.True(t, generic.IsConfigError(err))
}

func TestRideshare_FlaggedRidesOpenFraudCases(t *testing.T) {
	// GIVEN
	cfg := rideshare.DefaultConfig()

	// WHEN
	ds := run(t, cfg, generic.BuildOptions{Seed: 13, Periods: 2, Scale: 2})

	// THEN: every flagged ride has exactly one case, opened the same day
	cases := map[string]int{}
	for _, fc := range ds.Collection(rideshare.CollectionFraudCases) {
		p, ok := ds.Get(generic.CollectionPayments, fc.Ref("payment_intent"))
		require.True(t, ok, fc.ID)
		cases[p.ID]++
		assert.Equal(t, "true", p.Meta("fraud_flag"))
		assert.Equal(t, p.Meta("fraud_type"), fc.Category)
		assert.Equal(t, p.Ref("driver"), fc.Ref("driver"))
		assert.Equal(t, p.Ref("customer"), fc.Ref("customer"))
		assert.Equal(t, p.Amount, fc.Amount)
		assert.False(t, fc.Created.Before(p.Created))
		assert.True(t, generic.SameDay(p.Created, fc.Created))
		assert.Contains(t, cfg.FraudStatuses, fc.Status)

		profile := cfg.FraudProfiles[fc.Category]
		risk, _ := fc.Field("risk_score")
		assert.GreaterOrEqual(t, risk.(float64), profile.Risk[0])
		assert.LessOrEqual(t, risk.(float64), profile.Risk[1])
	}

	flagged := 0
	for _, p := range ds.Collection(generic.CollectionPayments) {
		if p.Meta("fraud_flag") == "true" {
			flagged++
			assert.Equal(t, 1, cases[p.ID], p.ID)
		}
	}
	assert.Positive(t, flagged)
	assert.Len(t, ds.Collection(rideshare.CollectionFraudCases), flagged)
}

func TestRideshare_FuelFollowsCompletedRides(t *testing.T) {
	// GIVEN
	cfg := rideshare.DefaultConfig()

	// WHEN
	ds := run(t, cfg, generic.BuildOptions{Seed: 5, Periods: 4, Scale: 0.2})

	// THEN: fill-ups land on the driver's own card, in months the driver
	// completed rides, one per 15-25 rides
	type key struct{ driver, month string }
	rides := map[key]int{}
	for _, tr := range ds.Collection(generic.CollectionTransfers) {
		rides[key{tr.Ref("destination"), generic.MonthKey(tr.Created)}]++
	}
	fills := map[key]int{}
	for _, a := range ds.Collection(rideshare.CollectionAuthorizations) {
		card, ok := ds.Get(rideshare.CollectionCards, a.Ref("card"))
		require.True(t, ok, a.ID)
		assert.Equal(t, card.Ref("account"), a.Ref("account"))
		assert.False(t, a.Created.Before(card.Created))
		assert.GreaterOrEqual(t, a.Amount, cfg.Fuel.Amount[0])
		assert.LessOrEqual(t, a.Amount, cfg.Fuel.Amount[1])
		assert.Equal(t, rideshare.AuthorizationClosed, a.Status)
		fills[key{a.Ref("account"), generic.MonthKey(a.Created)}]++
	}
	require.NotEmpty(t, fills)
	for k, n := range fills {
		completed := rides[k]
		require.Positive(t, completed, "%v fueled without rides", k)
		assert.GreaterOrEqual(t, n, max(1, completed/cfg.Fuel.RidesPerFill[1]), k)
		assert.LessOrEqual(t, n, max(1, completed/cfg.Fuel.RidesPerFill[0]), k)
	}
	for k := range rides {
		assert.Positive(t, fills[k], "%v completed rides without fuel", k)
	}
}

func TestRideshare_PlatformMetrics(t *testing.T) {
	// GIVEN
	ds := run(t, rideshare.DefaultConfig(), generic.BuildOptions{Seed: 8, Periods: 6, Scale: 0.3})

	// WHEN
	summary, err := ds.Summary()
	require.NoError(t, err)
	var m rideshare.PlatformMetrics
	require.NoError(t, generic.DecodeMetrics(summary, &m))

	// THEN: bookings split between platform and drivers, and the counts agree
	// with the collection summaries
	assert.Equal(t, rideshare.ComputeMetrics(ds), m)
	assert.Equal(t, m.GrossBookings, m.PlatformRevenue+m.DriverEarnings)
	assert.LessOrEqual(t, m.DriverPayouts, m.DriverEarnings)

	payments := summary.Collection(generic.CollectionPayments)
	assert.Equal(t, payments.Count, m.TotalRides)
	assert.Equal(t, payments.CountByStatus[rideshare.StatusSucceeded], m.CompletedRides)
	assert.Equal(t, summary.Collection(rideshare.CollectionFraudCases).Count, m.Fraud.Cases)
	assert.Equal(t, summary.Collection(rideshare.CollectionAuthorizations).TotalAmount, m.Fuel.Spend)
	assert.LessOrEqual(t, m.ActiveDrivers, m.TotalDrivers)

	vehicles := 0
	for _, n := range m.Vehicles {
		vehicles += n
	}
	assert.Equal(t, m.TotalRides, vehicles)
	assert.Positive(t, m.Surge.Rides)
	assert.Greater(t, m.Surge.AverageMultiplier, 1.0)
	// a quarter of the surged fare plus the whole booking fee
	assert.Greater(t, m.TakeRate, 0.25)
	assert.Less(t, m.TakeRate, 0.5)
}
