package semgraph

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// InsightEngine derives typed pattern records from the current node, cluster,
// and similarity state. Derivation is pure recompute-on-demand: nothing is
// maintained incrementally and nothing is persisted.
type InsightEngine struct {
	cache  *SimCache
	logger *slog.Logger
}

// NewInsightEngine creates an InsightEngine. A nil cache gets a private one;
// a nil logger falls back to slog.Default().
func NewInsightEngine(cache *SimCache, logger *slog.Logger) *InsightEngine {
	if cache == nil {
		cache = NewSimCache(DefaultSimCacheSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightEngine{cache: cache, logger: logger}
}

// Derive computes all insights over the given nodes and clusters: bridges,
// echo chambers, then a single void. Bridge detection is O(n²) in node count
// — acceptable only at moderate graph sizes, the same caveat as a full graph
// rebuild.
func (ie *InsightEngine) Derive(nodes []*Node, clusters []*Cluster) []Insight {
	insights := ie.detectBridges(nodes)
	insights = append(insights, ie.detectEchoChambers(clusters)...)
	insights = append(insights, ie.detectVoids(nodes)...)

	ie.logger.Debug("derived insights",
		"nodes", len(nodes), "clusters", len(clusters), "insights", len(insights))
	return insights
}

// detectBridges emits one insight per node pair that sits in different
// clusters yet exceeds BridgeSimilarityThreshold — links that are unusually
// strong for a cross-cluster pair.
func (ie *InsightEngine) detectBridges(nodes []*Node) []Insight {
	var insights []Insight
	for i := 0; i < len(nodes); i++ {
		a := nodes[i]
		if a.ClusterID == nil || !a.HasRichEmbedding() {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			if b.ClusterID == nil || !b.HasRichEmbedding() {
				continue
			}
			if *a.ClusterID == *b.ClusterID {
				continue
			}
			sim := ie.cache.Similarity(a, b)
			if sim > BridgeSimilarityThreshold {
				insights = append(insights, Insight{
					ID:      uuid.NewString(),
					Type:    InsightBridge,
					NodeIDs: []int64{a.ID, b.ID},
					Description: fmt.Sprintf(
						"nodes %d and %d bridge two clusters with similarity %.2f",
						a.ID, b.ID, sim),
				})
			}
		}
	}
	return insights
}

// detectEchoChambers emits one insight per cluster whose membership exceeds
// EchoClusterSize, signaling over-concentration around one theme.
func (ie *InsightEngine) detectEchoChambers(clusters []*Cluster) []Insight {
	var insights []Insight
	for _, cluster := range clusters {
		if cluster.NodeCount > EchoClusterSize {
			insights = append(insights, Insight{
				ID:        uuid.NewString(),
				Type:      InsightEcho,
				ClusterID: cluster.ID,
				Description: fmt.Sprintf(
					"cluster %d holds %d nodes, well past the concentration threshold",
					cluster.ID, cluster.NodeCount),
			})
		}
	}
	return insights
}

// detectVoids emits a single aggregate insight when more than
// VoidUnclusteredCount nodes have no cluster — one record for the whole
// isolated region, not one per node.
func (ie *InsightEngine) detectVoids(nodes []*Node) []Insight {
	var unclustered []int64
	for _, node := range nodes {
		if node.ClusterID == nil {
			unclustered = append(unclustered, node.ID)
		}
	}
	if len(unclustered) <= VoidUnclusteredCount {
		return nil
	}
	return []Insight{{
		ID:      uuid.NewString(),
		Type:    InsightVoid,
		NodeIDs: unclustered,
		Description: fmt.Sprintf(
			"%d nodes sit outside every cluster", len(unclustered)),
	}}
}
