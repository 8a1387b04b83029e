package semgraph

import (
	"time"
)

// =============================================================================
// Node Types
// =============================================================================

// NodeType classifies a snippet by what kind of thought it captures.
// The type affects importance weighting only; it never changes graph topology.
type NodeType string

const (
	// NodeTypeFact represents an observed or stated piece of information.
	NodeTypeFact NodeType = "fact"

	// NodeTypeFeeling represents an emotional or subjective statement.
	NodeTypeFeeling NodeType = "feeling"

	// NodeTypeGoal represents an intention or desired outcome.
	NodeTypeGoal NodeType = "goal"

	// NodeTypeQuestion represents an open question the user raised.
	NodeTypeQuestion NodeType = "question"

	// NodeTypeIdea represents a creative or speculative thought.
	NodeTypeIdea NodeType = "idea"
)

// ValidNodeTypes returns all valid NodeType values.
func ValidNodeTypes() []NodeType {
	return []NodeType{
		NodeTypeFact,
		NodeTypeFeeling,
		NodeTypeGoal,
		NodeTypeQuestion,
		NodeTypeIdea,
	}
}

// IsValid returns true if the node type is a recognized value.
func (nt NodeType) IsValid() bool {
	for _, valid := range ValidNodeTypes() {
		if nt == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the node type.
func (nt NodeType) String() string {
	return string(nt)
}

// =============================================================================
// Core Data Structures
// =============================================================================

// Node is a single embedded snippet in the semantic graph.
//
// Two embedding tiers exist: EmbeddingRich is the full-dimensional vector used
// for accurate batch similarity, EmbeddingFast is a lower-dimensional vector
// for interactive, latency-sensitive comparisons. Both encode the same content;
// a node may legitimately carry only one tier (or neither, in which case it
// contributes no similarity edges).
type Node struct {
	// ID is the unique, immutable identifier assigned by the store.
	ID int64 `json:"id"`

	// Content is the snippet text. Opaque to the graph algorithms.
	Content string `json:"content"`

	// NodeType classifies the snippet for importance weighting.
	NodeType NodeType `json:"node_type"`

	// EmbeddingRich is the high-dimensional embedding tier.
	EmbeddingRich []float32 `json:"embedding_rich,omitempty"`

	// EmbeddingFast is the low-dimensional embedding tier.
	EmbeddingFast []float32 `json:"embedding_fast,omitempty"`

	// Importance is derived from type weight, connectivity, and recency.
	// Mutable; recalculated whenever graph structure changes. Range [0, 1].
	Importance float64 `json:"importance"`

	// Connections counts materialized similarity edges touching this node.
	Connections int `json:"connections"`

	// ClusterID references the node's cluster, or nil when unclustered.
	ClusterID *int64 `json:"cluster_id,omitempty"`

	// CreatedAt is the snippet creation time. Drives recency weighting and
	// the layout simulator's age-derived depth plane.
	CreatedAt time.Time `json:"created_at"`
}

// HasRichEmbedding reports whether the rich tier is present and non-empty.
func (n *Node) HasRichEmbedding() bool {
	return len(n.EmbeddingRich) > 0
}

// Age returns the node's age relative to now.
func (n *Node) Age(now time.Time) time.Duration {
	return now.Sub(n.CreatedAt)
}

// Edge is a materialized semantic similarity link between two nodes.
//
// Similarity is symmetric, so edges are stored once per unordered pair with
// SourceID < TargetID as the canonical ordering. Weight is the cosine
// similarity at materialization time and always satisfies
// weight >= the threshold of the operation that created it.
type Edge struct {
	// ID is the unique identifier for this edge row.
	ID int64 `json:"id"`

	// SourceID is the lower node ID of the pair.
	SourceID int64 `json:"source_id"`

	// TargetID is the higher node ID of the pair.
	TargetID int64 `json:"target_id"`

	// Weight is the cosine similarity in [0, 1].
	Weight float64 `json:"weight"`

	// CreatedAt is when the edge was materialized.
	CreatedAt time.Time `json:"created_at"`
}

// Cluster is a persisted community of two or more nodes.
type Cluster struct {
	// ID is the unique identifier assigned by the store.
	ID int64 `json:"id"`

	// Label is a human-readable name produced by an external labeler.
	// Stored opaquely; empty until labeling completes.
	Label string `json:"label"`

	// NodeCount is the current member count. Updated on every membership
	// change, on both the old and the new cluster.
	NodeCount int `json:"node_count"`

	// UpdatedAt is when the cluster was last recomputed or relabeled.
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// Insights
// =============================================================================

// InsightType identifies the structural pattern an insight describes.
type InsightType string

const (
	// InsightBridge marks an unusually strong link between two nodes that
	// live in different clusters.
	InsightBridge InsightType = "bridge"

	// InsightEcho marks a cluster that has grown past the concentration
	// threshold, signaling an echo chamber.
	InsightEcho InsightType = "echo"

	// InsightVoid marks an aggregate of unclustered nodes, signaling a
	// region of the graph with no community structure.
	InsightVoid InsightType = "void"
)

// IsValid returns true if the insight type is a recognized value.
func (it InsightType) IsValid() bool {
	switch it {
	case InsightBridge, InsightEcho, InsightVoid:
		return true
	default:
		return false
	}
}

// String returns the string representation of the insight type.
func (it InsightType) String() string {
	return string(it)
}

// Insight is an ephemeral, typed pattern detected over the current graph.
// Insights are recomputed per request and never persisted.
type Insight struct {
	// ID is a per-derivation unique identifier.
	ID string `json:"id"`

	// Type is the pattern category.
	Type InsightType `json:"type"`

	// NodeIDs references exactly two nodes for a bridge, or the set of
	// unclustered nodes for a void. Empty for echo insights.
	NodeIDs []int64 `json:"node_ids,omitempty"`

	// ClusterID references the oversized cluster for an echo insight.
	ClusterID int64 `json:"cluster_id,omitempty"`

	// Description is a short human-readable summary of the pattern.
	Description string `json:"description"`
}

// =============================================================================
// KNN Index
// =============================================================================

// KNNSentinel fills unqualified neighbor slots in a KNN list.
const KNNSentinel = -1

// Neighbor is one ranked entry of a vector similarity query result.
type Neighbor struct {
	ID         int64
	Similarity float64
}
