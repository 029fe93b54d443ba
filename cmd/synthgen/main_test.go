package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/synth-engine/generic"
	"github.com/warp/synth-engine/output"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerate_WritesVertical(t *testing.T) {
	// GIVEN an empty output directory
	dir := t.TempDir()

	// WHEN saas is generated for three months
	stdout, err := execute(t, "generate", "--vertical", "saas", "--months", "3", "--seed", "8", "--out", dir)
	require.NoError(t, err)

	// THEN the collections and the summary are on disk
	assert.Contains(t, stdout, "wrote 1 vertical(s)")
	data, err := os.ReadFile(filepath.Join(dir, "saas", output.SummaryFile))
	require.NoError(t, err)
	var sum generic.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, "saas", sum.Vertical)
	assert.Equal(t, uint64(8), sum.Seed)
	assert.Equal(t, 3, sum.Periods)
	assert.FileExists(t, filepath.Join(dir, "saas", generic.CollectionSubscriptions+".json"))
}

func TestGenerate_SpecFile(t *testing.T) {
	// GIVEN a custom spec derived from a preset
	preset, err := os.ReadFile(filepath.Join("..", "..", "factory", "presets", "fitstream.yaml"))
	require.NoError(t, err)
	specPath := filepath.Join(t.TempDir(), "cli-custom.yaml")
	custom := strings.Replace(string(preset), "name: fitstream", "name: cli-custom", 1)
	require.NoError(t, os.WriteFile(specPath, []byte(custom), 0o644))
	t.Cleanup(func() { generic.UnregisterVertical("cli-custom") })
	dir := t.TempDir()

	// WHEN only --spec is given
	stdout, err := execute(t, "generate", "--spec", specPath, "--months", "2", "--scale", "0.05", "--out", dir)
	require.NoError(t, err)

	// THEN the spec's vertical is generated
	assert.Contains(t, stdout, "cli-custom")
	assert.DirExists(t, filepath.Join(dir, "cli-custom"))
	assert.NoDirExists(t, filepath.Join(dir, "fitstream"))
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no vertical", []string{"generate"}},
		{"unknown vertical", []string{"generate", "--vertical", "saas", "--vertical", "bakery"}},
		{"bad start", []string{"generate", "--vertical", "saas", "--start", "March"}},
		{"negative scale", []string{"generate", "--vertical", "saas", "--scale", "-1"}},
		{"missing spec", []string{"generate", "--spec", "does-not-exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			_, err := execute(t, append(tt.args, "--out", dir)...)
			require.Error(t, err)
			assert.NoDirExists(t, dir)
		})
	}
}

func TestVerticals_Lists(t *testing.T) {
	stdout, err := execute(t, "verticals")
	require.NoError(t, err)

	for _, name := range []string{"ecommerce", "saas", "marketplace", "rideshare", "nonprofit", "fitstream"} {
		assert.Contains(t, stdout, name)
	}
}

func TestValidate(t *testing.T) {
	stdout, err := execute(t, "validate", filepath.Join("..", "..", "factory", "presets", "fitstream.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fitstream: ok, 3 stage(s), 24 month(s) from 2023-01\n", stdout)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("description: no name\n"), 0o644))
	_, err = execute(t, "validate", bad)
	assert.True(t, generic.IsConfigError(err))
}
