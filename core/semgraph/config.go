package semgraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the engine's tunable knobs. Zero values fall back to the
// named policy constants, so an empty Config behaves like DefaultConfig().
//
// The thresholds are stratified per operation on purpose; see constants.go.
type Config struct {
	// FullGraphThreshold is the edge materialization floor for batch
	// rebuilds.
	FullGraphThreshold float64 `yaml:"full_graph_threshold"`

	// BackfillThreshold is the edge materialization floor for the backfill
	// recovery pass.
	BackfillThreshold float64 `yaml:"backfill_threshold"`

	// KNN is the per-node neighbor list length fed to layout springs.
	KNN int `yaml:"knn"`

	// KNNMinSimilarity is the qualification floor for KNN slots.
	KNNMinSimilarity float64 `yaml:"knn_min_similarity"`

	// SimCacheSize bounds the pairwise similarity LRU cache.
	SimCacheSize int `yaml:"sim_cache_size"`
}

// DefaultConfig returns the tuned defaults the rest of the system expects.
func DefaultConfig() Config {
	return Config{
		FullGraphThreshold: FullGraphThreshold,
		BackfillThreshold:  BackfillThreshold,
		KNN:                DefaultKNN,
		KNNMinSimilarity:   KNNMinSimilarity,
		SimCacheSize:       DefaultSimCacheSize,
	}
}

// applyDefaults fills unset fields from DefaultConfig.
func (c Config) applyDefaults() Config {
	defaults := DefaultConfig()
	if c.FullGraphThreshold <= 0 {
		c.FullGraphThreshold = defaults.FullGraphThreshold
	}
	if c.BackfillThreshold <= 0 {
		c.BackfillThreshold = defaults.BackfillThreshold
	}
	if c.KNN <= 0 {
		c.KNN = defaults.KNN
	}
	if c.KNNMinSimilarity <= 0 {
		c.KNNMinSimilarity = defaults.KNNMinSimilarity
	}
	if c.SimCacheSize <= 0 {
		c.SimCacheSize = defaults.SimCacheSize
	}
	return c
}

// Validate rejects configurations the algorithms cannot honor.
func (c Config) Validate() error {
	if c.FullGraphThreshold > 1 {
		return fmt.Errorf("config: full_graph_threshold must be <= 1, got %v", c.FullGraphThreshold)
	}
	if c.BackfillThreshold > 1 {
		return fmt.Errorf("config: backfill_threshold must be <= 1, got %v", c.BackfillThreshold)
	}
	if c.KNNMinSimilarity > 1 {
		return fmt.Errorf("config: knn_min_similarity must be <= 1, got %v", c.KNNMinSimilarity)
	}
	return nil
}

// LoadConfig reads a yaml config file, applying defaults for unset fields.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	config = config.applyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
