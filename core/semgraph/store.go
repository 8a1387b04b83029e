package semgraph

import (
	"context"
	"errors"
)

// Sentinel errors for store operations. Use errors.Is() to check error types.
var (
	// ErrNodeNotFound indicates the requested node ID does not exist.
	ErrNodeNotFound = errors.New("semgraph: node not found")

	// ErrClusterNotFound indicates the requested cluster ID does not exist.
	ErrClusterNotFound = errors.New("semgraph: cluster not found")

	// ErrInvalidNodeType indicates an unrecognized node type.
	ErrInvalidNodeType = errors.New("semgraph: invalid node type")

	// ErrSelfEdge indicates an attempt to link a node to itself.
	ErrSelfEdge = errors.New("semgraph: self edges are forbidden")

	// ErrInvalidWeight indicates an edge weight outside [0, 1].
	ErrInvalidWeight = errors.New("semgraph: edge weight must be in [0, 1]")
)

// GraphStore persists nodes, edges, and clusters for the semantic graph.
//
// The engine treats the store as its single source of truth for graph
// structure; layout state is never persisted here. Implementations must
// propagate storage failures to the caller rather than swallowing them —
// silent data loss corrupts the graph's invariants.
type GraphStore interface {
	// InsertNode persists a new node and assigns its ID.
	InsertNode(ctx context.Context, node *Node) error

	// GetNode returns the node with the given ID, or ErrNodeNotFound.
	GetNode(ctx context.Context, id int64) (*Node, error)

	// ListNodes returns all nodes, embeddings included, ordered by ID.
	ListNodes(ctx context.Context) ([]*Node, error)

	// UpdateNodeImportance writes a recalculated importance score and
	// connection count for one node.
	UpdateNodeImportance(ctx context.Context, id int64, importance float64, connections int) error

	// UpdateNodeCluster assigns a node to a cluster, or clears the
	// assignment when clusterID is nil.
	UpdateNodeCluster(ctx context.Context, nodeID int64, clusterID *int64) error

	// QueryNeighbors ranks stored nodes by cosine similarity against the
	// query embedding, descending, and returns the top k.
	QueryNeighbors(ctx context.Context, embedding []float32, k int) ([]Neighbor, error)

	// InsertEdge materializes a similarity edge. Idempotent: reinserting an
	// existing pair is a no-op. Self edges are rejected with ErrSelfEdge.
	InsertEdge(ctx context.Context, sourceID, targetID int64, weight float64) error

	// ListEdges returns all edges with weight >= minWeight.
	ListEdges(ctx context.Context, minWeight float64) ([]*Edge, error)

	// CountEdges returns the total number of persisted edges.
	CountEdges(ctx context.Context) (int64, error)

	// UpsertCluster creates a cluster when id is nil, otherwise updates the
	// existing cluster's label and node count. Returns the cluster ID.
	UpsertCluster(ctx context.Context, id *int64, label string, nodeCount int) (int64, error)

	// ListClusters returns all persisted clusters ordered by ID.
	ListClusters(ctx context.Context) ([]*Cluster, error)

	// DeleteEmptyClusters removes clusters whose node count reached zero.
	DeleteEmptyClusters(ctx context.Context) error

	// Close releases the underlying storage resources.
	Close() error
}
