package semgraph

import (
	"log/slog"
	"math/rand"
)

// CommunityDetector partitions nodes into communities by iterative greedy
// reassignment over the weighted similarity graph.
//
// This is a deliberately simplified, single-level variant of Louvain: the
// gain criterion is raw summed edge weight toward each candidate community,
// not the modularity delta with a null-model/resolution term, and there is no
// multi-level coarsening. The cluster sizing and labeling thresholds
// downstream are tuned against this heuristic's typical community sizes, so
// it must not be "upgraded" to textbook modularity optimization without
// re-tuning those constants.
type CommunityDetector struct {
	rng    *rand.Rand
	logger *slog.Logger
}

// NewCommunityDetector creates a detector. Visit order is shuffled each pass
// to avoid systematic bias; pass a seeded rng for deterministic tests, or nil
// to use the global source.
func NewCommunityDetector(rng *rand.Rand, logger *slog.Logger) *CommunityDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommunityDetector{rng: rng, logger: logger}
}

type weightedNeighbor struct {
	peer   int64
	weight float64
}

// Detect computes the node -> community assignment for the given graph.
// Community IDs are drawn from node IDs (each community is named after one of
// its members). Returns nil when fewer than CommunityMinNodes nodes carry an
// embedding — too little signal to cluster. A fully disconnected graph
// leaves every node in its own singleton community; that is correct output,
// not an error.
func (cd *CommunityDetector) Detect(nodes []*Node, edges []*Edge) map[int64]int64 {
	embedded := 0
	for _, node := range nodes {
		if node.HasRichEmbedding() {
			embedded++
		}
	}
	if embedded < CommunityMinNodes {
		cd.logger.Debug("community detection skipped", "embedded_nodes", embedded)
		return nil
	}

	communities := make(map[int64]int64, len(nodes))
	for _, node := range nodes {
		communities[node.ID] = node.ID
	}

	adjacency := make(map[int64][]weightedNeighbor, len(nodes))
	for _, edge := range edges {
		adjacency[edge.SourceID] = append(adjacency[edge.SourceID], weightedNeighbor{edge.TargetID, edge.Weight})
		adjacency[edge.TargetID] = append(adjacency[edge.TargetID], weightedNeighbor{edge.SourceID, edge.Weight})
	}

	order := make([]int64, 0, len(nodes))
	for _, node := range nodes {
		order = append(order, node.ID)
	}

	for iteration := 0; iteration < CommunityMaxIterations; iteration++ {
		cd.shuffle(order)

		improved := false
		for _, id := range order {
			if cd.reassign(id, communities, adjacency) {
				improved = true
			}
		}
		if !improved {
			cd.logger.Debug("community detection converged", "iterations", iteration+1)
			break
		}
	}

	return communities
}

// reassign moves one node to the neighbor community with the highest
// aggregate edge weight, if that strictly beats the node's weight into its
// current community. Returns true when the node moved.
func (cd *CommunityDetector) reassign(id int64, communities map[int64]int64, adjacency map[int64][]weightedNeighbor) bool {
	neighbors := adjacency[id]
	if len(neighbors) == 0 {
		return false
	}

	current := communities[id]

	// Aggregate edge weight into each adjacent community. The node's own
	// membership never contributes: only edges to other members count.
	weights := make(map[int64]float64, len(neighbors))
	for _, neighbor := range neighbors {
		weights[communities[neighbor.peer]] += neighbor.weight
	}

	currentWeight := weights[current]
	bestCommunity := current
	bestWeight := 0.0
	for community, weight := range weights {
		if community == current {
			continue
		}
		if weight > bestWeight || (weight == bestWeight && bestCommunity != current && community < bestCommunity) {
			bestWeight = weight
			bestCommunity = community
		}
	}

	if bestCommunity != current && bestWeight > currentWeight {
		communities[id] = bestCommunity
		return true
	}
	return false
}

func (cd *CommunityDetector) shuffle(order []int64) {
	swap := func(i, j int) { order[i], order[j] = order[j], order[i] }
	if cd.rng != nil {
		cd.rng.Shuffle(len(order), swap)
		return
	}
	rand.Shuffle(len(order), swap)
}

// CommunitySizes groups an assignment into community ID -> member node IDs.
func CommunitySizes(communities map[int64]int64) map[int64][]int64 {
	members := make(map[int64][]int64)
	for node, community := range communities {
		members[community] = append(members[community], node)
	}
	return members
}
