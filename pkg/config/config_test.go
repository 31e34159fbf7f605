package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointsetmatch/pkg/matching"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.Matching.MaximumDifferenceInNumberOfPoints)
	assert.Equal(t, 0.1, cfg.Matching.TolerableDistanceErrorMultiple)
	assert.Equal(t, 0.05, cfg.Matching.AmbiguityDistanceErrorMultiple)
	assert.Equal(t, 8, cfg.Matching.MaximumPointsForSearch)
	assert.Equal(t, FormatYAML, cfg.Output.Format)
	assert.True(t, cfg.Input.SelectedOnly)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Matching.MaximumDifferenceInNumberOfPoints = 1
	cfg.Output.Format = FormatText
	cfg.Logging.Verbosity = 2
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "matching:\n  tolerableDistanceErrorMultiple: 0.2\noutput:\n  format: text\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Matching.TolerableDistanceErrorMultiple)
	assert.Equal(t, 0.05, cfg.Matching.AmbiguityDistanceErrorMultiple)
	assert.Equal(t, FormatText, cfg.Output.Format)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matching: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matching.MaximumDifferenceInNumberOfPoints = -1
	cfg.Matching.TolerableDistanceErrorMultiple = -0.3
	cfg.Matching.AmbiguityDistanceErrorMultiple = -0.02
	cfg.Matching.MaximumPointsForSearch = 20
	cfg.Logging.Verbosity = -4
	cfg.Output.Format = "json"

	cfg.Validate(logr.Discard())
	assert.Equal(t, 1, cfg.Matching.MaximumDifferenceInNumberOfPoints)
	assert.Equal(t, 0.3, cfg.Matching.TolerableDistanceErrorMultiple)
	assert.Equal(t, 0.02, cfg.Matching.AmbiguityDistanceErrorMultiple)
	assert.Equal(t, matching.SearchPointLimit, cfg.Matching.MaximumPointsForSearch)
	assert.Equal(t, 0, cfg.Logging.Verbosity)
	assert.Equal(t, FormatYAML, cfg.Output.Format)
}

func TestApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matching.MaximumDifferenceInNumberOfPoints = 0
	cfg.Matching.TolerableDistanceErrorMultiple = 0.25
	cfg.Matching.AmbiguityDistanceErrorMultiple = 0.01
	cfg.Matching.MaximumPointsForSearch = 6

	m := matching.NewMatcher(logr.Discard())
	cfg.Apply(m)
	assert.Equal(t, 0, m.MaximumDifferenceInNumberOfPoints())
	assert.Equal(t, 0.25, m.TolerableDistanceErrorMultiple())
	assert.Equal(t, 0.01, m.AmbiguityDistanceErrorMultiple())
	assert.Equal(t, 6, m.MaximumPointsForSearch())
}
