package ecommerce_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/ecommerce"
	"github.com/warp/synth-engine/generic"
)

func run(t *testing.T, v ecommerce.Vertical, opts generic.BuildOptions) *generic.Dataset {
	t.Helper()
	cfg, factory, err := v.Build(opts)
	require.NoError(t, err)
	ds, err := generic.Generate(context.Background(), cfg, factory)
	require.NoError(t, err)
	return ds
}

func defaultVertical() ecommerce.Vertical {
	return ecommerce.Vertical{Config: ecommerce.DefaultConfig()}
}

func TestVertical_Registered(t *testing.T) {
	v, err := generic.LookupVertical(ecommerce.Name)
	require.NoError(t, err)
	assert.Equal(t, "ecommerce", v.Name())
	assert.NotEmpty(t, v.Description())
}

func TestEcommerce_SameSeedSameBytes(t *testing.T) {
	opts := generic.BuildOptions{Seed: 7, Periods: 10, Scale: 0.2}

	a := run(t, defaultVertical(), opts)
	b := run(t, defaultVertical(), opts)

	for _, name := range a.Names() {
		ja, err := json.Marshal(a.Collection(name))
		require.NoError(t, err)
		jb, err := json.Marshal(b.Collection(name))
		require.NoError(t, err)
		assert.Equal(t, string(ja), string(jb), name)
	}
}

func TestEcommerce_ReferencesAndDisputeTiming(t *testing.T) {
	// GIVEN: a full 24-month run at reduced scale
	ds := run(t, defaultVertical(), generic.BuildOptions{Seed: 42, Scale: 0.05})

	payments := ds.Collection(generic.CollectionPayments)
	require.NotEmpty(t, payments)

	// THEN: every payment belongs to a customer who existed by then
	for _, p := range payments {
		c, ok := ds.Get(generic.CollectionCustomers, p.Ref("customer"))
		require.True(t, ok, p.ID)
		assert.False(t, p.Created.Before(c.Created), p.ID)
		assert.Equal(t, p.Stage, p.Meta("lifecycle_stage"))
		assert.Regexp(t, `^ORD-\d{6}$`, p.Meta("order_id"))
	}

	// THEN: disputes follow a succeeded payment by 1 to 30 days
	for _, d := range ds.Collection(generic.CollectionDisputes) {
		p, ok := ds.Get(generic.CollectionPayments, d.Ref("payment_intent"))
		require.True(t, ok, d.ID)
		assert.Equal(t, ecommerce.StatusSucceeded, p.Status)
		assert.Equal(t, p.Amount, d.Amount)
		assert.Equal(t, p.Currency, d.Currency)
		days := generic.DaysBetween(generic.StartOfDay(p.Created), generic.StartOfDay(d.Created))
		assert.GreaterOrEqual(t, days, 1)
		assert.LessOrEqual(t, days, 30)
	}
}

func TestEcommerce_CurrenciesFollowStage(t *testing.T) {
	cfg := ecommerce.DefaultConfig()
	ds := run(t, defaultVertical(), generic.BuildOptions{Seed: 3, Scale: 0.05})

	for _, p := range ds.Collection(generic.CollectionPayments) {
		assert.Contains(t, cfg.StageCurrencies[p.Stage], p.Currency, p.ID)
		if p.Stage == "early" {
			assert.Equal(t, "usd", p.Currency)
		}
	}

	summary, err := ds.Summary()
	require.NoError(t, err)
	byCurrency := summary.Collection(generic.CollectionPayments).AmountByCurrency
	assert.Contains(t, byCurrency, "eur")
	assert.Contains(t, byCurrency, "jpy")
}

func TestEcommerce_FailureRateConverges(t *testing.T) {
	// GIVEN: one early-stage month sized for a tight estimate
	cfg := ecommerce.DefaultConfig()
	cfg.Periods = 1
	cfg.Stages = []generic.Stage{{
		Name: "early", StartMonth: 0, EndMonth: 1, BaseVolume: 20000,
		Rates: map[string]float64{generic.RateFailure: 0.045, generic.RateDispute: 0.008, generic.RateNewCustomer: 0.7},
	}}

	// WHEN
	ds := run(t, ecommerce.Vertical{Config: cfg}, generic.BuildOptions{Seed: 11})

	// THEN
	payments := ds.Collection(generic.CollectionPayments)
	failed := 0
	for _, p := range payments {
		if p.Status == ecommerce.StatusRequiresPaymentMethod {
			failed++
			_, ok := p.Field("last_payment_error")
			assert.True(t, ok)
		}
	}
	rate := float64(failed) / float64(len(payments))
	assert.InDelta(t, 0.045, rate, 0.006)

	newCustomers := float64(ds.Len(generic.CollectionCustomers)) / float64(len(payments))
	assert.InDelta(t, 0.7, newCustomers, 0.02)
}

func TestEcommerce_HolidaySeasonLiftsVolume(t *testing.T) {
	ds := run(t, defaultVertical(), generic.BuildOptions{Seed: 5, Scale: 0.05})

	summary, err := ds.Summary()
	require.NoError(t, err)
	byMonth := summary.Collection(generic.CollectionPayments).CountByMonth

	// GIVEN: 2024-11 is one month after 2024-10 within the mature stage
	assert.Greater(t, byMonth["2024-11"], byMonth["2024-10"])
	assert.Greater(t, byMonth["2024-12"], byMonth["2024-11"])
}

func TestEcommerce_BlackFridaySpike(t *testing.T) {
	ds := run(t, defaultVertical(), generic.BuildOptions{Seed: 9, Scale: 0.05})

	perDay := map[string]int{}
	for _, p := range ds.Collection(generic.CollectionPayments) {
		perDay[generic.DayKey(p.Created)]++
	}
	bf := generic.BlackFriday(2024)
	before := bf.AddDate(0, 0, -7)
	assert.Greater(t, perDay[generic.DayKey(bf)], 2*perDay[generic.DayKey(before)])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *ecommerce.Config)
	}{
		{"missing FX rate", func(c *ecommerce.Config) { delete(c.FXRates, "jpy") }},
		{"inverted category range", func(c *ecommerce.Config) { c.Categories[0].MinAmount = 99999 }},
		{"no categories", func(c *ecommerce.Config) { c.Categories = nil }},
		{"zero dispute delay", func(c *ecommerce.Config) { c.DisputeDelayDays = [2]int{0, 30} }},
		{"empty payment methods", func(c *ecommerce.Config) { c.PaymentMethods = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ecommerce.DefaultConfig()
			tt.modify(&cfg)
			_, err := ecommerce.NewFactory(cfg)
			assert.True(t, generic.IsConfigError(err), "got %v", err)
		})
	}
}

func TestFactory_QueuesDisputesUntilDue(t *testing.T) {
	cfg := ecommerce.DefaultConfig()
	cfg.DisputeDelayDays = [2]int{3, 3}
	f, err := ecommerce.NewFactory(cfg)
	require.NoError(t, err)

	gcfg, _, err := ecommerce.Vertical{Config: cfg}.Build(generic.BuildOptions{Seed: 1, Periods: 1})
	require.NoError(t, err)
	gcfg.Stages = []generic.Stage{{
		Name: "early", StartMonth: 0, EndMonth: 1, BaseVolume: 300,
		Rates: map[string]float64{generic.RateDispute: 1, generic.RateFailure: 0},
	}}
	gcfg.Seasonal = nil

	ds, err := generic.Generate(context.Background(), gcfg, f)
	require.NoError(t, err)

	// THEN: every payment from the last three days is still queued
	disputes := ds.Collection(generic.CollectionDisputes)
	require.NotEmpty(t, disputes)
	last := time.Date(2023, time.January, 29, 0, 0, 0, 0, time.UTC)
	queued := 0
	for _, p := range ds.Collection(generic.CollectionPayments) {
		if !p.Created.Before(last) {
			queued++
		}
	}
	assert.Equal(t, queued, f.Pending())
	assert.Equal(t, len(ds.Collection(generic.CollectionPayments)), len(disputes)+f.Pending())
}

func TestEcommerce_DailyMetrics(t *testing.T) {
	// GIVEN: a short run
	ds := run(t, defaultVertical(), generic.BuildOptions{Seed: 4, Periods: 3, Scale: 0.2})

	// WHEN: the summary metrics are decoded
	summary, err := ds.Summary()
	require.NoError(t, err)
	var got ecommerce.Metrics
	require.NoError(t, generic.DecodeMetrics(summary, &got))

	// THEN: they match a recomputation
	assert.Equal(t, ecommerce.ComputeMetrics(ds), got)

	// AND: daily buckets partition the orders and the succeeded USD volume
	payments := summary.Collection(generic.CollectionPayments)
	assert.Equal(t, payments.Count, got.TotalOrders)
	var orders int
	var volume int64
	for day, d := range got.Daily {
		_, err := time.Parse("2006-01-02", day)
		require.NoError(t, err)
		orders += d.Count
		volume += d.VolumeUSD
		assert.GreaterOrEqual(t, d.SuccessRate, 0.0)
		assert.LessOrEqual(t, d.SuccessRate, 1.0)
	}
	assert.Equal(t, got.TotalOrders, orders)
	assert.Equal(t, got.VolumeUSD, volume)
	assert.Len(t, got.Monthly, 3)

	var failures int
	for _, n := range got.FailureReasons {
		failures += n
	}
	assert.Equal(t, got.TotalOrders-got.SucceededOrders, failures)
	assert.Equal(t, got.TotalOrders, got.Currencies["usd"])
}
