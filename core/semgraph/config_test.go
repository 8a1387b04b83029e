package semgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	defaults := Config{}.applyDefaults()
	assert.Equal(t, DefaultConfig(), defaults)

	partial := Config{KNN: 8}.applyDefaults()
	assert.Equal(t, 8, partial.KNN)
	assert.Equal(t, FullGraphThreshold, partial.FullGraphThreshold)
	assert.Equal(t, DefaultSimCacheSize, partial.SimCacheSize)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.FullGraphThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.KNNMinSimilarity = 2
	assert.Error(t, bad.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"full_graph_threshold: 0.8\nknn: 7\n"), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, config.FullGraphThreshold)
	assert.Equal(t, 7, config.KNN)
	// Unset fields come from defaults.
	assert.Equal(t, BackfillThreshold, config.BackfillThreshold)
	assert.Equal(t, KNNMinSimilarity, config.KNNMinSimilarity)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("knn: [not a number"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("full_graph_threshold: 3.0\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
