package runner_test

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
	"github.com/warp/synth-engine/output"
	"github.com/warp/synth-engine/runner"
)

var errBoom = errors.New("boom")

// stubVertical emits one payment per call and fails once it reaches failAt.
type stubVertical struct {
	name   string
	failAt int // period index; < 0 never fails
}

func (v stubVertical) Name() string        { return v.name }
func (v stubVertical) Description() string { return "runner test vertical" }
func (v stubVertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	cfg := generic.Config{
		Vertical: v.name,
		Start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Periods:  4,
		Currency: "usd",
		Stages:   []generic.Stage{{Name: "early", StartMonth: 0, EndMonth: 4, BaseVolume: 10}},
		Collections: []generic.CollectionSpec{
			{Name: generic.CollectionPayments, Object: "payment_intent", Prefix: "pi_", SuccessStatus: generic.StatusSucceeded},
		},
	}
	f := generic.FactoryFunc(func(bc *generic.BuildContext) ([]generic.Entity, error) {
		if v.failAt >= 0 && bc.Period >= v.failAt {
			return nil, errBoom
		}
		id, err := bc.NewID("pi_", 24)
		if err != nil {
			return nil, err
		}
		return []generic.Entity{{ID: id, Collection: generic.CollectionPayments, Amount: 100,
			Status: generic.StatusSucceeded, Created: bc.Timestamp()}}, nil
	})
	return generic.ApplyOptions(cfg, opts), f, nil
}

func init() {
	generic.RegisterVertical(stubVertical{name: "runner-ok", failAt: -1})
	generic.RegisterVertical(stubVertical{name: "runner-ok-2", failAt: -1})
	generic.RegisterVertical(stubVertical{name: "runner-fails", failAt: 2})
}

func TestRunner_RunsJobsInOrder(t *testing.T) {
	r := runner.New(2, nil)

	datasets, err := r.Run(context.Background(),
		runner.Job{Vertical: "runner-ok", Options: generic.BuildOptions{Seed: 1}},
		runner.Job{Vertical: "runner-ok-2", Options: generic.BuildOptions{Seed: 2, Periods: 2}},
	)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "runner-ok", datasets[0].Vertical)
	assert.Equal(t, 40, datasets[0].Total())
	assert.Equal(t, 20, datasets[1].Total())
	assert.True(t, datasets[1].Complete())
}

func TestRunner_MatchesSequentialGeneration(t *testing.T) {
	opts := generic.BuildOptions{Seed: 77}
	a, err := generic.NewRun("runner-ok", opts)
	require.NoError(t, err)
	want, err := a.Run(context.Background())
	require.NoError(t, err)

	got, err := runner.New(0, nil).Run(context.Background(),
		runner.Job{Vertical: "runner-ok-2", Options: opts},
		runner.Job{Vertical: "runner-ok", Options: opts},
	)
	require.NoError(t, err)
	assert.Equal(t, want.Collection(generic.CollectionPayments), got[1].Collection(generic.CollectionPayments))
}

func TestRunner_UnknownVerticalFailsBeforeWork(t *testing.T) {
	_, err := runner.New(1, nil).Run(context.Background(),
		runner.Job{Vertical: "runner-ok"},
		runner.Job{Vertical: "no-such-vertical"},
	)
	assert.ErrorIs(t, err, generic.ErrUnknownVertical)
}

func TestRunner_FailureWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	// WHEN: one of three verticals fails mid-run
	_, err := runner.New(3, nil).RunAndWrite(context.Background(), output.NewWriter(dir, nil),
		runner.Job{Vertical: "runner-ok"},
		runner.Job{Vertical: "runner-fails"},
		runner.Job{Vertical: "runner-ok-2"},
	)

	// THEN: the failure surfaces with its diagnostic and the disk is untouched
	require.ErrorIs(t, err, errBoom)
	var genErr *generic.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "runner-fails", genErr.Vertical)
	assert.Equal(t, 2, genErr.Period)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.New(1, nil).Run(ctx, runner.Job{Vertical: "runner-ok"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RunAndWrite(t *testing.T) {
	dir := t.TempDir()
	results, err := runner.New(2, nil).RunAndWrite(context.Background(), output.NewWriter(dir, nil),
		runner.Job{Vertical: "runner-ok"},
		runner.Job{Vertical: "runner-ok-2"},
	)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, name := range []string{"runner-ok", "runner-ok-2"} {
		_, err := os.Stat(filepath.Join(dir, name, "payments.json"))
		assert.NoError(t, err, name)
	}
}
