package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/generic/store"
)

func onePaymentPerCall() generic.EntityFactory {
	return generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		id, err := bc.NewID("pi_", 24)
		if err != nil {
			return nil, err
		}
		return []generic.Entity{{
			ID: id, Collection: generic.CollectionPayments, Amount: 1000,
			Status: generic.StatusSucceeded, Created: bc.Timestamp(),
		}}, nil
	})
}

func testConfig() generic.Config {
	return generic.Config{
		Vertical: "test",
		Seed:     42,
		Start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Periods:  2,
		Currency: "usd",
		Stages:   []generic.Stage{{Name: "early", StartMonth: 0, EndMonth: 2, BaseVolume: 5}},
		Collections: []generic.CollectionSpec{
			{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_", SuccessStatus: generic.StatusSucceeded},
		},
	}
}

func TestMemory_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	ds, err := generic.Generate(ctx, testConfig(), onePaymentPerCall())
	require.NoError(t, err)

	rec := generic.NewRunRecord("run-1", ds, time.Now())
	require.NoError(t, m.SaveDataset(ctx, rec, ds))
	assert.Error(t, m.SaveDataset(ctx, rec, ds), "run ids are unique")

	got, err := m.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Entities)

	page, err := m.LoadCollection(ctx, "run-1", generic.CollectionPayments, 3, 8)
	require.NoError(t, err)
	require.Len(t, page, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(page[0], &first))
	assert.Equal(t, ds.Collection(generic.CollectionPayments)[8].ID, first["id"])

	summary, err := m.LoadSummary(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), summary.Collection(generic.CollectionPayments).TotalAmount)

	require.NoError(t, m.DeleteRun(ctx, "run-1"))
	_, err = m.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
}

func TestMemory_RefusesIncompleteDataset(t *testing.T) {
	a, err := generic.NewAssembler(testConfig(), onePaymentPerCall())
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, a.GeneratePeriod())

	m := store.NewMemory()
	err = m.SaveDataset(context.Background(), generic.RunRecord{ID: "partial"}, a.Dataset())
	assert.ErrorIs(t, err, generic.ErrNotComplete)

	runs, err := m.ListRuns(context.Background(), generic.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
