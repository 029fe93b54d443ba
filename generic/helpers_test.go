package generic_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var jan2024 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var paymentStatuses = generic.Distribution{
	{Status: generic.StatusSucceeded, Probability: 0.9},
	{Status: generic.StatusFailed, Probability: 0.1},
}

func paymentsOnly() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_", SuccessStatus: generic.StatusSucceeded},
	}
}

func customersAndPayments() []generic.CollectionSpec {
	return []generic.CollectionSpec{
		{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
		{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_",
			SuccessStatus: generic.StatusSucceeded,
			Refs:          map[string]string{"customer": generic.CollectionCustomers}},
	}
}

// exampleConfig is one stage of 10 records per period over 3 periods.
func exampleConfig(seed uint64) generic.Config {
	return generic.Config{
		Vertical:    "test",
		Seed:        seed,
		Start:       jan2024,
		Periods:     3,
		Currency:    "usd",
		Stages:      []generic.Stage{{Name: "early", StartMonth: 0, EndMonth: 3, BaseVolume: 10}},
		Collections: paymentsOnly(),
	}
}

// paymentFactory emits one payment per call.
type paymentFactory struct {
	dist generic.Distribution
}

func (f paymentFactory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	id, err := bc.NewID("pi_", 24)
	if err != nil {
		return nil, err
	}
	status, err := bc.Sampler.StatusFrom(f.dist)
	if err != nil {
		return nil, err
	}
	amount, err := bc.Sampler.AmountInRange(500, 25000)
	if err != nil {
		return nil, err
	}
	category, err := bc.Sampler.WeightedChoice(generic.WeightTable{
		{Label: "apparel", Weight: 3}, {Label: "shoes", Weight: 1},
	})
	if err != nil {
		return nil, err
	}
	return []generic.Entity{{
		ID:         id,
		Collection: generic.CollectionPayments,
		Object:     "payment_intent",
		Amount:     amount,
		Status:     status,
		Created:    bc.Timestamp(),
		Category:   category,
		Metadata:   generic.Metadata{"sequence": strconv.Itoa(bc.Sequence)},
	}}, nil
}

// customerPaymentFactory creates a customer on roughly a third of calls and
// always a payment referencing some customer.
type customerPaymentFactory struct{}

func (customerPaymentFactory) Create(bc *generic.BuildContext) ([]generic.Entity, error) {
	var batch []generic.Entity
	var customerID string
	if bc.Related.Len(generic.CollectionCustomers) == 0 || bc.Sampler.Chance(0.3) {
		id, err := bc.NewID("cus_", 14)
		if err != nil {
			return nil, err
		}
		batch = append(batch, generic.Entity{
			ID: id, Collection: generic.CollectionCustomers, Object: "customer", Created: bc.Timestamp(),
		})
		customerID = id
	} else {
		c, err := bc.Pick(generic.CollectionCustomers, "payment.customer")
		if err != nil {
			return nil, err
		}
		customerID = c.ID
	}
	id, err := bc.NewID("pi_", 24)
	if err != nil {
		return nil, err
	}
	batch = append(batch, generic.Entity{
		ID:         id,
		Collection: generic.CollectionPayments,
		Amount:     1000,
		Status:     generic.StatusSucceeded,
		Created:    bc.Timestamp(),
		Refs:       map[string]string{"customer": customerID},
	})
	return batch, nil
}

func runToCompletion(t *testing.T, cfg generic.Config, f generic.EntityFactory) *generic.Dataset {
	t.Helper()
	ds, err := generic.Generate(context.Background(), cfg, f)
	require.NoError(t, err)
	require.True(t, ds.Complete())
	return ds
}

func marshalAll(t *testing.T, ds *generic.Dataset) []byte {
	t.Helper()
	out := map[string][]generic.Entity{}
	for _, name := range ds.Names() {
		out[name] = ds.Collection(name)
	}
	b, err := json.Marshal(out)
	require.NoError(t, err)
	return b
}
