package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func customersAndPayments() generic.EntityFactory {
	return generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		cusID, err := bc.NewID("cus_", 14)
		if err != nil {
			return nil, err
		}
		piID, err := bc.NewID("pi_", 24)
		if err != nil {
			return nil, err
		}
		at := bc.Timestamp()
		return []generic.Entity{
			{ID: cusID, Collection: generic.CollectionCustomers, Created: at},
			{ID: piID, Collection: generic.CollectionPayments, Amount: 2500, Status: generic.StatusSucceeded,
				Created: at, Refs: map[string]string{"customer": cusID}},
		}, nil
	})
}

func testConfig(vertical string) generic.Config {
	return generic.Config{
		Vertical: vertical,
		Seed:     1<<63 + 5,
		Start:    time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Periods:  3,
		Currency: "usd",
		Stages:   []generic.Stage{{Name: "early", StartMonth: 0, EndMonth: 3, BaseVolume: 4}},
		Collections: []generic.CollectionSpec{
			{Name: generic.CollectionCustomers, Object: "customer", Prefix: "cus_"},
			{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_",
				SuccessStatus: generic.StatusSucceeded, Refs: map[string]string{"customer": generic.CollectionCustomers}},
		},
	}
}

func generate(t *testing.T, vertical string) *generic.Dataset {
	t.Helper()
	ds, err := generic.Generate(context.Background(), testConfig(vertical), customersAndPayments())
	require.NoError(t, err)
	return ds
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN: a finalized dataset of 12 customers and 12 payments
	ds := generate(t, "shop")
	rec := generic.NewRunRecord("run-1", ds, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	// WHEN: it is saved
	require.NoError(t, s.SaveDataset(ctx, rec, ds))

	// THEN: the record round-trips, including a seed above MaxInt64
	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63+5), got.Seed)
	assert.Equal(t, "shop", got.Vertical)
	assert.True(t, rec.Start.Equal(got.Start))
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, 3, got.Periods)
	assert.Equal(t, 24, got.Entities)

	// THEN: collections come back in generation order
	all, err := s.LoadCollection(ctx, "run-1", generic.CollectionPayments, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 12)
	for i, raw := range all {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(raw, &obj))
		assert.Equal(t, ds.Collection(generic.CollectionPayments)[i].ID, obj["id"])
		assert.Equal(t, "payment_intent", obj["object"])
	}

	page, err := s.LoadCollection(ctx, "run-1", generic.CollectionPayments, 5, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	empty, err := s.LoadCollection(ctx, "run-1", "refunds", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	summary, err := s.LoadSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 24, summary.TotalEntities)
	assert.Equal(t, int64(12*2500), summary.Collection(generic.CollectionPayments).TotalAmount)
}

func TestStore_RunIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ds := generate(t, "shop")
	rec := generic.NewRunRecord("run-1", ds, time.Now())

	require.NoError(t, s.SaveDataset(ctx, rec, ds))
	assert.Error(t, s.SaveDataset(ctx, rec, ds))

	runs, err := s.ListRuns(ctx, generic.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_RefusesIncompleteDataset(t *testing.T) {
	a, err := generic.NewAssembler(testConfig("shop"), customersAndPayments())
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, a.GeneratePeriod())

	s := newStore(t)
	err = s.SaveDataset(context.Background(), generic.RunRecord{ID: "partial"}, a.Dataset())
	assert.ErrorIs(t, err, generic.ErrNotComplete)

	_, err = s.GetRun(context.Background(), "partial")
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, v := range []string{"shop", "saas", "shop"} {
		ds := generate(t, v)
		rec := generic.NewRunRecord(string(rune('a'+i)), ds, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.SaveDataset(ctx, rec, ds))
	}

	runs, err := s.ListRuns(ctx, generic.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	shops, err := s.ListRuns(ctx, generic.RunFilter{Vertical: "shop", Limit: 1})
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "c", shops[0].ID)
}

func TestStore_DeleteRunCascades(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ds := generate(t, "shop")
	require.NoError(t, s.SaveDataset(ctx, generic.NewRunRecord("run-1", ds, time.Now()), ds))

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	assert.ErrorIs(t, s.DeleteRun(ctx, "run-1"), generic.ErrRunNotFound)

	_, err := s.LoadCollection(ctx, "run-1", generic.CollectionPayments, 0, 0)
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
	_, err = s.LoadSummary(ctx, "run-1")
	assert.ErrorIs(t, err, generic.ErrRunNotFound)

	// THEN: the same dataset can be saved again under the freed id
	require.NoError(t, s.SaveDataset(ctx, generic.NewRunRecord("run-1", ds, time.Now()), ds))
}

func TestStore_Specs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveSpec(ctx, "fitstream", []byte(`{"name":"fitstream","periods":12}`)))
	require.NoError(t, s.SaveSpec(ctx, "edutech", []byte(`{"name":"edutech"}`)))
	require.NoError(t, s.SaveSpec(ctx, "fitstream", []byte(`{"name":"fitstream","periods":24}`)))

	got, err := s.GetSpec(ctx, "fitstream")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"fitstream","periods":24}`, string(got.Body))

	specs, err := s.ListSpecs(ctx)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "edutech", specs[0].Name)

	require.NoError(t, s.DeleteSpec(ctx, "edutech"))
	_, err = s.GetSpec(ctx, "edutech")
	assert.ErrorIs(t, err, sqlite.ErrSpecNotFound)
}
