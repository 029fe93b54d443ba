package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

// =============================================================================
// EXAMPLE SCENARIO
// =============================================================================

func TestAssembler_ExampleScenario(t *testing.T) {
	// GIVEN: One stage {early: months 0-2, 10 per period}, no seasonal rules,
	//        statuses {succeeded: 0.9, failed: 0.1}, seed 42
	// WHEN: Running 3 periods
	// THEN: Exactly 30 entities, 10 per month, mostly succeeded

	ds := runToCompletion(t, exampleConfig(42), paymentFactory{dist: paymentStatuses})

	payments := ds.Collection(generic.CollectionPayments)
	require.Len(t, payments, 30)

	summary, err := ds.Summary()
	require.NoError(t, err)
	cs := summary.Collection(generic.CollectionPayments)

	assert.Equal(t, 30, summary.TotalEntities)
	assert.Equal(t, map[string]int{"2024-01": 10, "2024-02": 10, "2024-03": 10}, cs.CountByMonth)
	assert.Equal(t, 30, cs.CountByStatus[generic.StatusSucceeded]+cs.CountByStatus[generic.StatusFailed])
	assert.GreaterOrEqual(t, cs.CountByStatus[generic.StatusSucceeded], 20)
	assert.Equal(t, map[string]int{"early": 30}, cs.CountByStage)
	assert.InDelta(t, float64(cs.CountByStatus[generic.StatusSucceeded])/30, cs.SuccessRate, 1e-9)
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestAssembler_SameSeedIsByteIdentical(t *testing.T) {
	// GIVEN: Two independent runs with the same seed and config
	// WHEN: Serializing every collection
	// THEN: The bytes are identical; a different seed differs

	cfg := exampleConfig(42)
	cfg.Collections = customersAndPayments()
	cfg.Stages[0].BaseVolume = 200

	a := marshalAll(t, runToCompletion(t, cfg, customerPaymentFactory{}))
	b := marshalAll(t, runToCompletion(t, cfg, customerPaymentFactory{}))
	assert.Equal(t, a, b)

	cfg.Seed = 43
	c := marshalAll(t, runToCompletion(t, cfg, customerPaymentFactory{}))
	assert.NotEqual(t, a, c)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAssembler_FinalizeTwiceFails(t *testing.T) {
	// GIVEN: A fully generated dataset
	// WHEN: Finalize is called twice
	// THEN: The second call is an error, and the first summary is unchanged

	a, err := generic.NewAssembler(exampleConfig(1), paymentFactory{dist: paymentStatuses})
	require.NoError(t, err)
	assert.Equal(t, generic.StateNotStarted, a.State())

	_, err = a.Finalize()
	assert.ErrorIs(t, err, generic.ErrInvalidState, "cannot finalize before starting")

	require.NoError(t, a.Start())
	assert.ErrorIs(t, a.Start(), generic.ErrInvalidState, "cannot start twice")

	for i := 0; i < 3; i++ {
		assert.Equal(t, generic.StateGenerating, a.State())
		_, err = a.Finalize()
		assert.ErrorIs(t, err, generic.ErrInvalidState, "cannot finalize mid-run")
		require.NoError(t, a.GeneratePeriod())
	}
	assert.Equal(t, generic.StateFinalizing, a.State())
	assert.ErrorIs(t, a.GeneratePeriod(), generic.ErrInvalidState)

	ds, err := a.Finalize()
	require.NoError(t, err)
	assert.Equal(t, generic.StateComplete, a.State())
	before, _ := ds.Summary()

	_, err = a.Finalize()
	var stateErr *generic.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, generic.StateComplete, stateErr.State)

	after, _ := ds.Summary()
	assert.Same(t, before, after)
	assert.Equal(t, 30, after.TotalEntities)
}

func TestAssembler_SummaryMatchesIndependentPass(t *testing.T) {
	cfg := exampleConfig(11)
	cfg.Stages[0].BaseVolume = 500
	ds := runToCompletion(t, cfg, paymentFactory{dist: paymentStatuses})

	var total int64
	byStatus := map[string]int64{}
	byCategory := map[string]int{}
	for _, e := range ds.Collection(generic.CollectionPayments) {
		total += e.Amount
		byStatus[e.Status] += e.Amount
		byCategory[e.Category]++
	}

	summary, err := ds.Summary()
	require.NoError(t, err)
	cs := summary.Collection(generic.CollectionPayments)
	assert.Equal(t, 1500, cs.Count)
	assert.Equal(t, total, cs.TotalAmount)
	assert.Equal(t, byStatus, cs.AmountByStatus)
	assert.Equal(t, byCategory, cs.CountByCategory)
	assert.Equal(t, total/1500, cs.AverageAmount)
	assert.Equal(t, map[string]int64{"usd": total}, cs.AmountByCurrency)
}

func TestAssembler_SummaryRequiresComplete(t *testing.T) {
	a, err := generic.NewAssembler(exampleConfig(1), paymentFactory{dist: paymentStatuses})
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, a.GeneratePeriod())

	_, err = a.Dataset().Summary()
	assert.ErrorIs(t, err, generic.ErrNotComplete)
}

func TestAssembler_RunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := generic.NewAssembler(exampleConfig(1), paymentFactory{dist: paymentStatuses})
	require.NoError(t, err)
	_, err = a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, generic.StateFailed, a.State())
}

// =============================================================================
// VOLUME
// =============================================================================

func TestAssembler_SeasonalAndGrowthVolume(t *testing.T) {
	// GIVEN: 100/period growing 10%/period, and December doubled
	// WHEN: Running November and December
	// THEN: 100 in November, round(110 * 2) in December

	cfg := generic.Config{
		Vertical: "test",
		Start:    time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC),
		Periods:  2,
		Currency: "usd",
		Stages:   []generic.Stage{{Name: "growth", StartMonth: 0, EndMonth: 2, BaseVolume: 100, Growth: 0.1}},
		Seasonal: []generic.SeasonalRule{
			{Name: "december", Trigger: generic.InMonths(time.December), Multiplier: 2},
		},
		Collections: paymentsOnly(),
	}
	ds := runToCompletion(t, cfg, paymentFactory{dist: paymentStatuses})
	summary, _ := ds.Summary()
	cs := summary.Collection(generic.CollectionPayments)

	assert.Equal(t, 100, cs.CountByMonth["2024-11"])
	assert.Equal(t, 220, cs.CountByMonth["2024-12"])
}

func TestAssembler_WeekendRuleShiftsRecordsToWeekends(t *testing.T) {
	cfg := exampleConfig(3)
	cfg.Periods = 1
	cfg.Stages[0].EndMonth = 1
	cfg.Stages[0].BaseVolume = 3000
	cfg.Seasonal = []generic.SeasonalRule{{Name: "weekend", Trigger: generic.OnWeekends(), Multiplier: 3}}

	ds := runToCompletion(t, cfg, paymentFactory{dist: paymentStatuses})

	perDay := map[string]int{}
	for _, e := range ds.Collection(generic.CollectionPayments) {
		perDay[generic.DayKey(e.Created)]++
	}
	// Jan 6 2024 is a Saturday, Jan 8 a Monday.
	assert.Greater(t, perDay["2024-01-06"], 2*perDay["2024-01-08"])
}

// =============================================================================
// REFERENTIAL INTEGRITY
// =============================================================================

func TestAssembler_ReferencesResolve(t *testing.T) {
	cfg := exampleConfig(8)
	cfg.Collections = customersAndPayments()
	cfg.Stages[0].BaseVolume = 300
	ds := runToCompletion(t, cfg, customerPaymentFactory{})

	payments := ds.Collection(generic.CollectionPayments)
	require.Len(t, payments, 900)
	for _, p := range payments {
		_, ok := ds.Get(generic.CollectionCustomers, p.Ref("customer"))
		require.True(t, ok, "payment %s references missing customer %s", p.ID, p.Ref("customer"))
	}
	assert.Greater(t, ds.Len(generic.CollectionCustomers), 0)
}

func TestAssembler_DanglingReferenceAborts(t *testing.T) {
	cfg := exampleConfig(1)
	cfg.Collections = customersAndPayments()
	bad := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		id, err := bc.NewID("pi_", 24)
		if err != nil {
			return nil, err
		}
		return []generic.Entity{{
			ID: id, Collection: generic.CollectionPayments, Created: bc.Timestamp(),
			Refs: map[string]string{"customer": "cus_missing"},
		}}, nil
	})

	_, err := generic.Generate(context.Background(), cfg, bad)
	assert.ErrorIs(t, err, generic.ErrDanglingReference)

	var genErr *generic.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, generic.CollectionPayments, genErr.Collection)
	assert.Equal(t, 0, genErr.Period)
	assert.Equal(t, "early", genErr.Stage)
}

func TestAssembler_PrerequisiteMissing(t *testing.T) {
	// GIVEN: A factory that references a customer before any exist
	// WHEN: Generating
	// THEN: PrerequisiteMissingError with the stage/period diagnostic

	cfg := exampleConfig(1)
	cfg.Collections = customersAndPayments()
	f := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		_, err := bc.Pick(generic.CollectionCustomers, "payment.customer")
		return nil, err
	})

	a, err := generic.NewAssembler(cfg, f)
	require.NoError(t, err)
	_, err = a.Run(context.Background())

	var preErr *generic.PrerequisiteMissingError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, generic.CollectionCustomers, preErr.Collection)

	var genErr *generic.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "early", genErr.Stage)
	assert.Equal(t, generic.StateFailed, a.State())
}

func TestAssembler_TimestampOutsideDayRejected(t *testing.T) {
	f := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		id, _ := bc.NewID("pi_", 24)
		return []generic.Entity{{ID: id, Collection: generic.CollectionPayments, Created: bc.Date.Add(25 * time.Hour)}}, nil
	})
	_, err := generic.Generate(context.Background(), exampleConfig(1), f)
	var genErr *generic.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

func TestAssembler_UndeclaredCollectionRejected(t *testing.T) {
	f := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		return []generic.Entity{{ID: "x_1", Collection: "refunds", Created: bc.Timestamp()}}, nil
	})
	_, err := generic.Generate(context.Background(), exampleConfig(1), f)
	assert.True(t, errors.Is(err, generic.ErrConfiguration))
}

func TestConfig_Validate(t *testing.T) {
	cfg := exampleConfig(1)
	require.NoError(t, cfg.Validate())

	cfg.Collections = []generic.CollectionSpec{{Name: "payments", Refs: map[string]string{"customer": "customers"}}}
	assert.ErrorIs(t, cfg.Validate(), generic.ErrConfiguration)

	cfg = exampleConfig(1)
	cfg.Stages = append(cfg.Stages, generic.Stage{Name: "late", StartMonth: 2, EndMonth: 4})
	assert.ErrorIs(t, cfg.Validate(), generic.ErrConfiguration, "overlapping stages fail before generation")
}

// =============================================================================
// PERIOD HOOKS
// =============================================================================

// monthlyFeeFactory charges one fee per period from BeginPeriod and nothing
// from Create.
type monthlyFeeFactory struct{}

func (monthlyFeeFactory) Create(*generic.BuildContext) ([]generic.Entity, error) { return nil, nil }

func (monthlyFeeFactory) BeginPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	id, err := bc.NewID("in_", 24)
	if err != nil {
		return nil, err
	}
	return []generic.Entity{{
		ID: id, Collection: generic.CollectionPayments, Amount: 4900, Status: generic.StatusSucceeded,
		Created: bc.Timestamp(),
	}}, nil
}

func TestAssembler_PeriodHookRunsOncePerPeriod(t *testing.T) {
	cfg := exampleConfig(5)
	cfg.Periods = 12
	cfg.Stages[0].EndMonth = 12

	ds := runToCompletion(t, cfg, monthlyFeeFactory{})
	summary, _ := ds.Summary()
	cs := summary.Collection(generic.CollectionPayments)

	assert.Equal(t, 12, cs.Count)
	assert.Len(t, cs.CountByMonth, 12)
	assert.Equal(t, int64(12*4900), cs.TotalAmount)
}

// sweepFactory emits one payment per Create and, at period end, one refund
// per payment of the period dated on the period's last day.
type sweepFactory struct {
	paymentFactory
	seen []string
}

func (f *sweepFactory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	batch, err := f.paymentFactory.Create(bc)
	if err == nil {
		f.seen = append(f.seen, batch[0].ID)
	}
	return batch, err
}

func (f *sweepFactory) EndPeriod(bc *generic.BuildContext) ([]generic.Entity, error) {
	last := generic.PeriodDays(bc.Date, 0)
	day := last[len(last)-1]
	out := make([]generic.Entity, 0, len(f.seen))
	for _, id := range f.seen {
		rid, err := bc.NewID("re_", 24)
		if err != nil {
			return nil, err
		}
		out = append(out, generic.Entity{
			ID: rid, Collection: "refunds", Amount: 100, Status: generic.StatusSucceeded,
			Created: day.Add(bc.Sampler.Jitter()),
			Refs:    map[string]string{"payment_intent": id},
		})
	}
	f.seen = f.seen[:0]
	return out, nil
}

func TestAssembler_PeriodEndHookSeesWholePeriod(t *testing.T) {
	cfg := exampleConfig(8)
	cfg.Collections = append(paymentsOnly(), generic.CollectionSpec{
		Name: "refunds", Object: "refund", Prefix: "re_",
		Refs: map[string]string{"payment_intent": generic.CollectionPayments},
	})

	ds := runToCompletion(t, cfg, &sweepFactory{paymentFactory: paymentFactory{dist: paymentStatuses}})

	refunds := ds.Collection("refunds")
	require.Len(t, refunds, 30)
	for _, r := range refunds {
		p, ok := ds.Get(generic.CollectionPayments, r.Ref("payment_intent"))
		require.True(t, ok)
		assert.Equal(t, generic.MonthKey(p.Created), generic.MonthKey(r.Created))
		assert.Equal(t, generic.StartOfMonth(r.Created).AddDate(0, 1, -1), generic.StartOfDay(r.Created))
	}
}
