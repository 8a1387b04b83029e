package semgraph

import "time"

// Similarity thresholds. These are deliberately stratified per operation; the
// clustering and visual tuning downstream depends on the specific values, so
// they must not be unified into a single knob.
const (
	// InsertEdgeThreshold is the minimum similarity for edges materialized
	// on the synchronous single-node insert path.
	InsertEdgeThreshold = 0.5

	// BackfillThreshold is the minimum similarity for edges created by the
	// one-shot backfill recovery pass.
	BackfillThreshold = 0.75

	// FullGraphThreshold is the minimum similarity for edges produced by a
	// full batch rebuild.
	FullGraphThreshold = 0.78

	// KNNMinSimilarity is the floor below which a candidate never enters a
	// node's KNN list, regardless of rank.
	KNNMinSimilarity = 0.5

	// BridgeSimilarityThreshold is the minimum cross-cluster similarity for
	// a bridge insight. Stricter than the general edge thresholds: bridges
	// must be unusually strong links.
	BridgeSimilarityThreshold = 0.82
)

// Neighbor list sizing. Insert-time edge materialization and layout springs
// use different K values on purpose.
const (
	// DefaultKNN is the per-node neighbor list length consumed by the
	// layout simulator's spring forces.
	DefaultKNN = 5

	// InsertEdgeTopK bounds how many candidate neighbors are considered for
	// edge materialization when a single node is inserted.
	InsertEdgeTopK = 10
)

// Insight policy knobs.
const (
	// EchoClusterSize is the node count above which a cluster is flagged as
	// an echo chamber.
	EchoClusterSize = 15

	// VoidUnclusteredCount is the unclustered node count above which a
	// single void insight is emitted.
	VoidUnclusteredCount = 5
)

// Community detection.
const (
	// CommunityMaxIterations bounds the greedy reassignment passes.
	CommunityMaxIterations = 10

	// CommunityMinNodes is the smallest embedded node count worth
	// clustering. Below it detection is skipped entirely.
	CommunityMinNodes = 3

	// ClusterMinSize is the smallest community persisted as a cluster.
	// Smaller communities leave their members unclustered.
	ClusterMinSize = 2
)

// Importance scoring.
const (
	// ImportanceMaxDegree is the connection count at which the connectivity
	// term saturates.
	ImportanceMaxDegree = 10

	// ImportanceRecencyHalfLife controls how quickly the recency term
	// decays with node age.
	ImportanceRecencyHalfLife = 7 * 24 * time.Hour
)

// Similarity cache.
const (
	// DefaultSimCacheSize bounds the LRU pairwise-similarity cache.
	DefaultSimCacheSize = 16384
)
