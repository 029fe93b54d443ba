package factory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/factory"
	"github.com/warp/synth-engine/generic"
)

const specJSON = `{
  "name": "test-shop",
  "start": "2024-01-01",
  "periods": 3,
  "collection": {"name": "charges", "object": "charge", "prefix": "ch_"},
  "success_status": "succeeded",
  "statuses": {"succeeded": 0.9, "failed": 0.1},
  "stages": [
    {"name": "early", "start_month": 0, "end_month": 2, "base_volume": 200},
    {"name": "late", "start_month": 2, "end_month": 3, "base_volume": 200,
     "statuses": {"failed": 1.0, "succeeded": 0.0}}
  ],
  "categories": [
    {"label": "small", "weight": 3, "min_amount": 100, "max_amount": 500},
    {"label": "large", "weight": 1, "min_amount": 10000, "max_amount": 20000}
  ],
  "fee": {"rate": 0.1, "fixed": 30},
  "customers": {"new_customer_rate": 0.2},
  "seasonal": [{"name": "weekend", "weekdays": ["Saturday", "sunday"], "multiplier": 1.5}],
  "metadata": {"platform": "test"}
}`

const specYAML = `
name: test-shop
start: "2024-01-01"
periods: 3
collection: {name: charges, object: charge, prefix: ch_}
success_status: succeeded
statuses: {succeeded: 0.9, failed: 0.1}
stages:
  - {name: early, start_month: 0, end_month: 2, base_volume: 200}
  - name: late
    start_month: 2
    end_month: 3
    base_volume: 200
    statuses: {failed: 1.0, succeeded: 0.0}
categories:
  - {label: small, weight: 3, min_amount: 100, max_amount: 500}
  - {label: large, weight: 1, min_amount: 10000, max_amount: 20000}
fee: {rate: 0.1, fixed: 30}
customers: {new_customer_rate: 0.2}
seasonal:
  - {name: weekend, weekdays: [Saturday, sunday], multiplier: 1.5}
metadata: {platform: test}
`

func generate(t *testing.T, spec factory.VerticalSpec, seed uint64) *generic.Dataset {
	t.Helper()
	v, err := factory.NewSpecVertical(spec)
	require.NoError(t, err)
	cfg, f, err := v.Build(generic.BuildOptions{Seed: seed})
	require.NoError(t, err)
	ds, err := generic.Generate(context.Background(), cfg, f)
	require.NoError(t, err)
	return ds
}

func TestParse_JSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := factory.ParseJSON([]byte(specJSON))
	require.NoError(t, err)
	fromYAML, err := factory.ParseYAML([]byte(specYAML))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)
}

func TestSpecVertical_Generates(t *testing.T) {
	spec, err := factory.ParseJSON([]byte(specJSON))
	require.NoError(t, err)
	ds := generate(t, spec, 42)

	charges := ds.Collection("charges")
	require.NotEmpty(t, charges)
	for _, c := range charges {
		assert.Equal(t, "charge", c.Object)
		assert.Equal(t, "test", c.Meta("platform"))

		// THEN: amounts follow the category range
		switch c.Category {
		case "small":
			assert.True(t, c.Amount >= 100 && c.Amount <= 500, c.ID)
		case "large":
			assert.True(t, c.Amount >= 10000 && c.Amount <= 20000, c.ID)
		default:
			t.Fatalf("unexpected category %q", c.Category)
		}
		fee, ok := c.Field("application_fee_amount")
		require.True(t, ok)
		assert.Equal(t, generic.ProcessingFee(c.Amount, generic.Percent(10), 30), fee)

		cus, ok := ds.Get(generic.CollectionCustomers, c.Ref("customer"))
		require.True(t, ok)
		assert.False(t, cus.Created.After(c.Created), c.ID)

		// THEN: the last stage overrides the global distribution
		if c.Stage == "late" {
			assert.Equal(t, "failed", c.Status)
		}
	}
	assert.Less(t, ds.Len(generic.CollectionCustomers), len(charges))
}

func TestSpecVertical_SameSeedSameDataset(t *testing.T) {
	spec, err := factory.ParseYAML([]byte(specYAML))
	require.NoError(t, err)

	a := generate(t, spec, 9)
	b := generate(t, spec, 9)
	assert.Equal(t, a.Collection("charges"), b.Collection("charges"))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yml")
	require.NoError(t, os.WriteFile(path, []byte(specYAML), 0o644))

	spec, err := factory.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test-shop", spec.Name)

	bad := filepath.Join(dir, "shop.toml")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
	_, err = factory.ParseFile(bad)
	assert.True(t, generic.IsConfigError(err))
}

func TestNewSpecVertical_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*factory.VerticalSpec)
	}{
		{"missing name", func(s *factory.VerticalSpec) { s.Name = "" }},
		{"parent directory name", func(s *factory.VerticalSpec) { s.Name = ".." }},
		{"name with separator", func(s *factory.VerticalSpec) { s.Name = "shops/../../etc" }},
		{"uppercase name", func(s *factory.VerticalSpec) { s.Name = "TestShop" }},
		{"prefix without underscore", func(s *factory.VerticalSpec) { s.Collection.Prefix = "ch" }},
		{"statuses do not sum to one", func(s *factory.VerticalSpec) { s.Statuses = map[string]float64{"succeeded": 0.5} }},
		{"unknown success status", func(s *factory.VerticalSpec) { s.SuccessStatus = "paid" }},
		{"inverted amount range", func(s *factory.VerticalSpec) { s.Categories[0].MaxAmount = 1 }},
		{"stage gap", func(s *factory.VerticalSpec) { s.Stages[1].StartMonth = 3 }},
		{"two triggers", func(s *factory.VerticalSpec) { s.Seasonal[0].Months = []int{12} }},
		{"unknown holiday", func(s *factory.VerticalSpec) {
			s.Seasonal = []factory.SeasonalJSON{{Name: "x", Holiday: "arbor_day", Multiplier: 2}}
		}},
		{"fee rate of one", func(s *factory.VerticalSpec) { s.Fee.Rate = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := factory.ParseJSON([]byte(specJSON))
			require.NoError(t, err)
			tt.mutate(&spec)

			_, err = factory.NewSpecVertical(spec)
			assert.True(t, generic.IsConfigError(err), "got %v", err)
		})
	}
}

func TestPresets_Registered(t *testing.T) {
	specs, err := factory.Presets()
	require.NoError(t, err)
	require.Len(t, specs, 5)

	for _, spec := range specs {
		v, err := generic.LookupVertical(spec.Name)
		require.NoError(t, err, spec.Name)

		cfg, f, err := v.Build(generic.BuildOptions{Seed: 1, Periods: 2, Scale: 0.1})
		require.NoError(t, err)
		ds, err := generic.Generate(context.Background(), cfg, f)
		require.NoError(t, err, spec.Name)
		assert.Positive(t, ds.Len(spec.Collection.Name), spec.Name)
	}
}
