package semgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/adalundhe/constel/core/semgraph/vecmath"
)

// SimilarityGraph is the in-memory result of a full pairwise rebuild: the
// node slice the indexes refer to, a dense similarity matrix over it, and the
// edges that cleared the threshold.
type SimilarityGraph struct {
	// Nodes is the node set the matrix rows and columns index into.
	Nodes []*Node

	// Matrix holds cosine similarity for every ordered index pair.
	// Matrix[i][j] == Matrix[j][i]; rows for nodes without a rich embedding
	// are all zero.
	Matrix [][]float64

	// Edges lists every unordered pair at or above the rebuild threshold.
	Edges []*Edge
}

// IndexOf returns the matrix index for a node ID, or -1 if absent.
func (g *SimilarityGraph) IndexOf(id int64) int {
	for i, node := range g.Nodes {
		if node.ID == id {
			return i
		}
	}
	return -1
}

// Builder converts a node set with embeddings into a sparse similarity graph
// plus per-node KNN lists, and extends the persisted graph for single-node
// inserts.
type Builder struct {
	store  GraphStore
	cache  *SimCache
	logger *slog.Logger
}

// NewBuilder creates a Builder over the given store.
// A nil logger falls back to slog.Default().
func NewBuilder(store GraphStore, cache *SimCache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NewSimCache(DefaultSimCacheSize)
	}
	return &Builder{store: store, cache: cache, logger: logger}
}

// ComputeFullGraph computes cosine similarity for all unordered node pairs
// and materializes an edge for every pair at or above threshold.
//
// Complexity is O(n²) in node count — the dominant cost of a batch rebuild
// and the reason the incremental insert path exists. Nodes without a rich
// embedding contribute no edges and an all-zero matrix row; partial data
// never aborts the pass.
func ComputeFullGraph(nodes []*Node, threshold float64) *SimilarityGraph {
	n := len(nodes)
	graph := &SimilarityGraph{Nodes: nodes, Matrix: make([][]float64, n)}

	vectors := make([][]float32, n)
	for i, node := range nodes {
		vectors[i] = node.EmbeddingRich
	}
	index := vecmath.NewSimilarityIndex(vectors)

	for i := 0; i < n; i++ {
		row := index.Row(i)
		matrixRow := make([]float64, n)
		for j, sim := range row {
			matrixRow[j] = float64(sim)
		}
		graph.Matrix[i] = matrixRow

		for j := i + 1; j < n; j++ {
			weight := matrixRow[j]
			if weight >= threshold {
				graph.Edges = append(graph.Edges, &Edge{
					SourceID: nodes[i].ID,
					TargetID: nodes[j].ID,
					Weight:   weight,
				})
			}
		}
	}
	return graph
}

// ComputeKNN returns the k nearest neighbor indexes for the node at
// nodeIndex, ranked by similarity descending with index ascending as the
// deterministic tie-break. Slots without a qualifying neighbor (similarity
// <= minSimilarity is disqualifying) hold KNNSentinel.
func ComputeKNN(nodeIndex int, matrix [][]float64, k int, minSimilarity float64) []int {
	neighbors := make([]int, k)
	for i := range neighbors {
		neighbors[i] = KNNSentinel
	}
	if nodeIndex < 0 || nodeIndex >= len(matrix) {
		return neighbors
	}

	row := matrix[nodeIndex]
	candidates := make([]int, 0, len(row))
	for j, sim := range row {
		if j == nodeIndex {
			continue
		}
		if sim > minSimilarity {
			candidates = append(candidates, j)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if row[candidates[a]] != row[candidates[b]] {
			return row[candidates[a]] > row[candidates[b]]
		}
		return candidates[a] < candidates[b]
	})

	for i := 0; i < k && i < len(candidates); i++ {
		neighbors[i] = candidates[i]
	}
	return neighbors
}

// ComputeAllKNN derives the KNN list for every node in the graph.
func ComputeAllKNN(graph *SimilarityGraph, k int, minSimilarity float64) [][]int {
	lists := make([][]int, len(graph.Nodes))
	for i := range graph.Nodes {
		lists[i] = ComputeKNN(i, graph.Matrix, k, minSimilarity)
	}
	return lists
}

// InsertNode is the synchronous write-time path for a single new node: probe
// the store for the InsertEdgeTopK most-similar existing nodes, persist a
// bidirectional edge for every candidate at or above InsertEdgeThreshold, and
// bump the connectivity counters on both sides.
//
// Runs exactly once per new node, before the node is considered onboarded.
// Storage failures propagate to the caller; a node without a rich embedding
// simply materializes no edges.
func (b *Builder) InsertNode(ctx context.Context, node *Node) ([]*Edge, error) {
	if !node.HasRichEmbedding() {
		b.logger.Debug("insert: node has no rich embedding, skipping edges", "node_id", node.ID)
		return nil, nil
	}

	neighbors, err := b.store.QueryNeighbors(ctx, node.EmbeddingRich, InsertEdgeTopK+1)
	if err != nil {
		return nil, fmt.Errorf("insert node %d: query neighbors: %w", node.ID, err)
	}

	var edges []*Edge
	for _, neighbor := range neighbors {
		if neighbor.ID == node.ID {
			continue
		}
		if neighbor.Similarity < InsertEdgeThreshold {
			continue
		}
		if len(edges) >= InsertEdgeTopK {
			break
		}
		if err := b.store.InsertEdge(ctx, node.ID, neighbor.ID, neighbor.Similarity); err != nil {
			return nil, fmt.Errorf("insert node %d: edge to %d: %w", node.ID, neighbor.ID, err)
		}
		edges = append(edges, &Edge{
			SourceID: node.ID,
			TargetID: neighbor.ID,
			Weight:   neighbor.Similarity,
		})
	}

	if len(edges) > 0 {
		if err := b.bumpConnections(ctx, node, edges); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("insert: materialized edges", "node_id", node.ID, "edges", len(edges))
	return edges, nil
}

func (b *Builder) bumpConnections(ctx context.Context, node *Node, edges []*Edge) error {
	node.Connections += len(edges)
	if err := b.store.UpdateNodeImportance(ctx, node.ID, node.Importance, node.Connections); err != nil {
		return fmt.Errorf("insert node %d: update connectivity: %w", node.ID, err)
	}
	for _, edge := range edges {
		other, err := b.store.GetNode(ctx, edge.TargetID)
		if err != nil {
			return fmt.Errorf("insert node %d: load neighbor %d: %w", node.ID, edge.TargetID, err)
		}
		err = b.store.UpdateNodeImportance(ctx, other.ID, other.Importance, other.Connections+1)
		if err != nil {
			return fmt.Errorf("insert node %d: update neighbor %d: %w", node.ID, other.ID, err)
		}
	}
	return nil
}

// Backfill recovers the edge set when nodes with embeddings exist but the
// edge store is empty: one full O(n²) pairwise pass persisting every edge at
// or above threshold.
//
// Idempotent: when any edges already exist (checked via edge count, not
// re-derived) the call is a no-op and returns 0.
func (b *Builder) Backfill(ctx context.Context, threshold float64) (int, error) {
	count, err := b.store.CountEdges(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill: count edges: %w", err)
	}
	if count > 0 {
		b.logger.Debug("backfill: edges already present, skipping", "edge_count", count)
		return 0, nil
	}

	nodes, err := b.store.ListNodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfill: list nodes: %w", err)
	}

	graph := ComputeFullGraph(nodes, threshold)
	for _, edge := range graph.Edges {
		if err := b.store.InsertEdge(ctx, edge.SourceID, edge.TargetID, edge.Weight); err != nil {
			return 0, fmt.Errorf("backfill: edge %d->%d: %w", edge.SourceID, edge.TargetID, err)
		}
	}

	b.logger.Info("backfill: rebuilt edge set", "nodes", len(nodes), "edges", len(graph.Edges))
	return len(graph.Edges), nil
}
