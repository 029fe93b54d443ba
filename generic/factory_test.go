package generic_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

var earlyStage = generic.Stage{Name: "early", StartMonth: 0, EndMonth: 3, BaseVolume: 10}

func TestBuildContext_NewID_CollisionBudget(t *testing.T) {
	// GIVEN: A sampler whose source always yields the same bytes
	// WHEN: Asking for a second id in the same call
	// THEN: It retries, then fails with IdentifierCollisionError

	s := generic.NewSamplerFromSource(constSource{})
	bc := generic.NewContext(earlyStage, jan2024, 0, s, nil)

	first, err := bc.NewID("pi_", 24)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "pi_"))
	assert.Len(t, first, len("pi_")+24)

	_, err = bc.NewID("pi_", 24)
	var collErr *generic.IdentifierCollisionError
	require.ErrorAs(t, err, &collErr)
	assert.Equal(t, generic.MaxIDAttempts, collErr.Attempts)
	assert.True(t, generic.IsRetryable(err))
}

func TestBuildContext_NewID_OddLengthAndDefault(t *testing.T) {
	bc := generic.NewContext(earlyStage, jan2024, 0, generic.NewSampler(1), nil)

	id, err := bc.NewID("cus_", 13)
	require.NoError(t, err)
	assert.Len(t, id, len("cus_")+13)

	id, err = bc.NewID("acct_", 0)
	require.NoError(t, err)
	assert.Len(t, id, len("acct_")+generic.DefaultIDLength)
}

func TestBuildContext_UUIDFollowsSeed(t *testing.T) {
	a := generic.NewContext(earlyStage, jan2024, 0, generic.NewSampler(9), nil)
	b := generic.NewContext(earlyStage, jan2024, 0, generic.NewSampler(9), nil)
	ua, ub := a.UUID(), b.UUID()
	assert.Equal(t, ua, ub)
	assert.Len(t, ua, 36)
	assert.Equal(t, byte('4'), ua[14], "version 4")
}

func TestBuildContext_TimestampStaysOnDay(t *testing.T) {
	day := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	bc := generic.NewContext(earlyStage, day.Add(5*time.Hour), 0, generic.NewSampler(4), nil)
	for i := 0; i < 1000; i++ {
		require.True(t, generic.SameDay(day, bc.Timestamp()))
	}
}

func TestBuildContext_PickFromEmptyPool(t *testing.T) {
	bc := generic.NewContext(earlyStage, jan2024, 0, generic.NewSampler(4), nil)
	_, err := bc.Pick(generic.CollectionCustomers, "payment.customer")
	assert.ErrorIs(t, err, generic.ErrPrerequisiteMissing)

	_, err = bc.PickRecent(generic.CollectionCustomers, "payment.customer", 10)
	assert.ErrorIs(t, err, generic.ErrPrerequisiteMissing)
}

func TestBuildContext_PickRecentWindow(t *testing.T) {
	cfg := exampleConfig(2)
	cfg.Collections = customersAndPayments()
	cfg.Stages[0].BaseVolume = 100
	ds := runToCompletion(t, cfg, customerPaymentFactory{})
	n := ds.Len(generic.CollectionCustomers)
	require.Greater(t, n, 5)

	bc := generic.NewContext(earlyStage, jan2024, 0, generic.NewSampler(4), ds)
	recent := map[string]bool{}
	for i := n - 5; i < n; i++ {
		recent[ds.At(generic.CollectionCustomers, i).ID] = true
	}
	for i := 0; i < 200; i++ {
		c, err := bc.PickRecent(generic.CollectionCustomers, "payment.customer", 5)
		require.NoError(t, err)
		require.True(t, recent[c.ID])
	}
}

func TestEntity_MarshalJSON(t *testing.T) {
	e := generic.Entity{
		ID:       "pi_abc",
		Object:   "payment_intent",
		Amount:   4200,
		Currency: "usd",
		Status:   "succeeded",
		Created:  time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
		Refs:     map[string]string{"customer": "cus_1"},
		Fields:   map[string]any{"livemode": false},
	}
	b, err := e.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "pi_abc", "object": "payment_intent", "amount": 4200, "currency": "usd",
		"status": "succeeded", "created": 1704164645, "customer": "cus_1",
		"livemode": false, "metadata": {}
	}`, string(b))
	assert.True(t, strings.HasPrefix(string(b), `{"amount":4200,"created":1704164645,"currency":"usd","customer"`),
		"keys are emitted sorted")
}
