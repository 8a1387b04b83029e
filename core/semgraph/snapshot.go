package semgraph

import (
	"sync/atomic"
	"time"
)

// GraphSnapshot is one consistent view of the derived graph state: the node
// set, its similarity matrix and edges, and the per-node KNN lists, all
// computed together in a single batch pass.
//
// Snapshots are immutable after publication. The layout simulator may keep
// reading a stale snapshot for several ticks while a recompute is in flight;
// it picks up the replacement on its next read with no handoff protocol
// beyond the atomic pointer swap. Never mutate a published snapshot in
// place — readers would see torn state mid-tick.
type GraphSnapshot struct {
	// Nodes is the node set, ordered by ID, that all indexes refer to.
	Nodes []*Node

	// Matrix is the dense pairwise similarity over Nodes.
	Matrix [][]float64

	// Edges holds the thresholded similarity edges.
	Edges []*Edge

	// KNN holds, per node index, the DefaultKNN ranked neighbor indexes
	// with KNNSentinel padding.
	KNN [][]int

	// Clusters is the persisted cluster set at snapshot time.
	Clusters []*Cluster

	// CreatedAt is when the snapshot was derived.
	CreatedAt time.Time
}

// SnapshotRef is an atomically swappable reference to the current snapshot.
// Writers publish a fully built snapshot with Store; readers get whichever
// complete snapshot was most recently published.
type SnapshotRef struct {
	ptr atomic.Pointer[GraphSnapshot]
}

// Load returns the current snapshot, or nil before the first publication.
func (r *SnapshotRef) Load() *GraphSnapshot {
	return r.ptr.Load()
}

// Store publishes a new snapshot.
func (r *SnapshotRef) Store(snapshot *GraphSnapshot) {
	r.ptr.Store(snapshot)
}
