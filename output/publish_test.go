package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

func smallDataset(t *testing.T, vertical string) *generic.Dataset {
	t.Helper()
	cfg := generic.Config{
		Vertical: vertical,
		Seed:     9,
		Start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Periods:  1,
		Currency: "usd",
		Stages:   []generic.Stage{{Name: "early", StartMonth: 0, EndMonth: 1, BaseVolume: 2}},
		Collections: []generic.CollectionSpec{
			{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_", SuccessStatus: generic.StatusSucceeded},
		},
	}
	f := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		id, err := bc.NewID("pi_", 24)
		if err != nil {
			return nil, err
		}
		return []generic.Entity{{ID: id, Collection: generic.CollectionPayments, Amount: 700,
			Status: generic.StatusSucceeded, Created: bc.Timestamp()}}, nil
	})
	ds, err := generic.Generate(context.Background(), cfg, f)
	require.NoError(t, err)
	return ds
}

func TestWriter_FailedPublishRestoresEverything(t *testing.T) {
	// GIVEN: previous output for two verticals
	dir := t.TempDir()
	for _, name := range []string{"shop", "mart"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name, "marker.txt"), []byte(name), 0o644))
	}

	// GIVEN: the second vertical cannot be moved into place
	renameDir = func(from, to string) error {
		if filepath.Base(to) == "mart" {
			return errors.New("disk full")
		}
		return os.Rename(from, to)
	}
	t.Cleanup(func() { renameDir = os.Rename })

	// WHEN
	_, err := NewWriter(dir, nil).Write(smallDataset(t, "shop"), smallDataset(t, "mart"))
	require.Error(t, err)

	// THEN: both verticals still hold their previous output
	for _, name := range []string{"shop", "mart"} {
		assert.FileExists(t, filepath.Join(dir, name, "marker.txt"))
		assert.NoFileExists(t, filepath.Join(dir, name, "payments.json"))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
