package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
)

type testVertical struct{}

func (testVertical) Name() string        { return "registry-test" }
func (testVertical) Description() string { return "three months of payments" }
func (testVertical) Build(opts generic.BuildOptions) (generic.Config, generic.EntityFactory, error) {
	return generic.ApplyOptions(exampleConfig(0), opts), paymentFactory{dist: paymentStatuses}, nil
}

func TestRegistry_LookupAndRun(t *testing.T) {
	generic.RegisterVertical(testVertical{})

	v, err := generic.LookupVertical("registry-test")
	require.NoError(t, err)
	assert.Equal(t, "three months of payments", v.Description())

	names := []string{}
	for _, v := range generic.ListVerticals() {
		names = append(names, v.Name())
	}
	assert.Contains(t, names, "registry-test")

	a, err := generic.NewRun("registry-test", generic.BuildOptions{Seed: 42, Periods: 2})
	require.NoError(t, err)
	ds, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ds.Seed)
	assert.Equal(t, 20, ds.Total())
}

func TestRegistry_UnknownVertical(t *testing.T) {
	_, err := generic.LookupVertical("no-such-vertical")
	assert.ErrorIs(t, err, generic.ErrUnknownVertical)
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsClientError(err))
}

type namedVertical struct{ testVertical }

func (namedVertical) Name() string { return "../escape" }

func TestValidateName(t *testing.T) {
	for _, name := range []string{"shop", "api-test", "runner_ok_2", "9lives"} {
		assert.NoError(t, generic.ValidateName(name), name)
	}
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "Shop", "-shop", "shop.json", "shop name"} {
		assert.True(t, generic.IsConfigError(generic.ValidateName(name)), name)
	}
}

func TestRegistry_RejectsUnsafeNames(t *testing.T) {
	assert.Panics(t, func() { generic.RegisterVertical(namedVertical{}) })
	_, err := generic.LookupVertical("../escape")
	assert.ErrorIs(t, err, generic.ErrUnknownVertical)

	// GIVEN: a config whose vertical name is a path
	cfg := exampleConfig(1)
	cfg.Vertical = ".."
	assert.True(t, generic.IsConfigError(cfg.Validate()))
}
