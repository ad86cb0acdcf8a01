package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/holefill/internal/metric"
	"github.com/cwbudde/holefill/internal/synth"
)

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Params.PatchSize)
	assert.Equal(t, metric.SSD, opts.Params.Metric)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "holefill.yaml")
	cfg := DefaultConfig()
	cfg.Solver.PatchSize = 7
	cfg.Solver.Metric = "zeromean"
	cfg.Pyramid.Refine = false
	cfg.Synthesis.Offset = 7

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	opts, err := loaded.Options()
	require.NoError(t, err)
	assert.Equal(t, metric.ZeroMeanSSD, opts.Params.Metric)
	assert.False(t, opts.Refine)
}

func TestLoadConfig_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  searchSteps: 12\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Solver.SearchSteps)
	assert.Equal(t, 5, cfg.Solver.PatchSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("solver: [unclosed"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	even := filepath.Join(dir, "even.yaml")
	require.NoError(t, os.WriteFile(even, []byte("solver:\n  patchSize: 4\n"), 0644))
	_, err = LoadConfig(even)
	assert.True(t, errors.Is(err, synth.ErrInvalidPatchSize), "got %v", err)

	unknown := filepath.Join(dir, "metric.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("solver:\n  metric: ncc\n"), 0644))
	_, err = LoadConfig(unknown)
	assert.ErrorIs(t, err, metric.ErrUnknownKind)
}
