package semgraph

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Embedder produces the two embedding tiers for a snippet's text. It is an
// external collaborator: latency, batching, and transport are its business.
type Embedder interface {
	Embed(ctx context.Context, text string) (rich, fast []float32, err error)
}

// ClusterLabeler names a newly formed cluster from its member nodes. External
// and typically AI-driven; the engine calls it once per new cluster and
// stores the returned string opaquely.
type ClusterLabeler interface {
	Label(ctx context.Context, members []*Node) (string, error)
}

// Engine orchestrates the semantic graph: the synchronous per-snippet write
// path, the batch recompute (similarity graph, communities, clusters,
// importance), insight derivation, and snapshot publication for the layout
// simulator.
//
// AddSnippet is synchronous and must complete before the snippet counts as
// persisted. Recompute is a batch operation that may take seconds at scale;
// run it off the render path. Both may run concurrently with layout ticks:
// the simulator only ever sees complete snapshots through the atomic swap.
type Engine struct {
	store    GraphStore
	builder  *Builder
	detector *CommunityDetector
	insights *InsightEngine
	cache    *SimCache
	embedder Embedder
	labeler  ClusterLabeler
	config   Config
	logger   *slog.Logger
	rng      *rand.Rand
	snapshot SnapshotRef
}

// EngineOption is a functional option for configuring an Engine.
type EngineOption func(*Engine)

// WithConfig overrides the default engine configuration.
func WithConfig(config Config) EngineOption {
	return func(e *Engine) { e.config = config.applyDefaults() }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEmbedder sets the external embedding provider used when AddSnippet is
// called without precomputed vectors.
func WithEmbedder(embedder Embedder) EngineOption {
	return func(e *Engine) { e.embedder = embedder }
}

// WithLabeler sets the external cluster labeler. Without one, new clusters
// get a deterministic fallback label.
func WithLabeler(labeler ClusterLabeler) EngineOption {
	return func(e *Engine) { e.labeler = labeler }
}

// WithRand seeds community detection's visit-order shuffle, for
// deterministic tests.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

// NewEngine creates an Engine over the given store.
func NewEngine(store GraphStore, opts ...EngineOption) *Engine {
	engine := &Engine{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(engine)
	}

	// Collaborators are built after the options loop so every one of them
	// sees the final logger and config, whatever order the options came in.
	engine.cache = NewSimCache(engine.config.SimCacheSize)
	engine.builder = NewBuilder(store, engine.cache, engine.logger)
	engine.insights = NewInsightEngine(engine.cache, engine.logger)
	engine.detector = NewCommunityDetector(engine.rng, engine.logger)
	return engine
}

// AddSnippet is the synchronous write path for one new snippet: persist the
// node, materialize its insert-time edges, and refresh importance for every
// node the new edges touched. Storage failures propagate to the caller —
// the snippet is not onboarded until this returns nil.
//
// When rich is nil and an Embedder is configured, both tiers are fetched
// from it first.
func (e *Engine) AddSnippet(ctx context.Context, content string, nodeType NodeType, rich, fast []float32) (*Node, error) {
	if rich == nil && e.embedder != nil {
		var err error
		rich, fast, err = e.embedder.Embed(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("add snippet: embed: %w", err)
		}
	}

	now := time.Now()
	node := &Node{
		Content:       content,
		NodeType:      nodeType,
		EmbeddingRich: rich,
		EmbeddingFast: fast,
		CreatedAt:     now,
	}
	node.Importance = ComputeImportance(node, now)

	if err := e.store.InsertNode(ctx, node); err != nil {
		return nil, fmt.Errorf("add snippet: %w", err)
	}

	edges, err := e.builder.InsertNode(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("add snippet: %w", err)
	}

	touched := []int64{node.ID}
	for _, edge := range edges {
		touched = append(touched, edge.TargetID)
	}
	if err := e.refreshImportance(ctx, touched, now); err != nil {
		return nil, fmt.Errorf("add snippet: %w", err)
	}

	e.logger.Info("snippet added", "node_id", node.ID, "type", nodeType, "edges", len(edges))
	return node, nil
}

// refreshImportance recalculates and persists importance for the given nodes.
func (e *Engine) refreshImportance(ctx context.Context, ids []int64, now time.Time) error {
	for _, id := range ids {
		node, err := e.store.GetNode(ctx, id)
		if err != nil {
			return fmt.Errorf("refresh importance of node %d: %w", id, err)
		}
		score := ComputeImportance(node, now)
		if err := e.store.UpdateNodeImportance(ctx, id, score, node.Connections); err != nil {
			return fmt.Errorf("refresh importance of node %d: %w", id, err)
		}
	}
	return nil
}

// Backfill recovers the edge set after data loss; see Builder.Backfill.
func (e *Engine) Backfill(ctx context.Context) (int, error) {
	return e.builder.Backfill(ctx, e.config.BackfillThreshold)
}

// Recompute runs the full batch pass: pairwise similarity graph, community
// detection, cluster persistence (with labeling for newly formed clusters),
// importance refresh, KNN derivation, and finally atomic publication of a
// new snapshot.
//
// O(n²) in node count; legitimately takes hundreds of milliseconds to
// seconds at scale. Invoke it off the render path. The layout simulator
// keeps consuming the previous snapshot until the swap.
func (e *Engine) Recompute(ctx context.Context) (*GraphSnapshot, error) {
	nodes, err := e.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}

	graph := ComputeFullGraph(nodes, e.config.FullGraphThreshold)
	for _, edge := range graph.Edges {
		if err := e.store.InsertEdge(ctx, edge.SourceID, edge.TargetID, edge.Weight); err != nil {
			return nil, fmt.Errorf("recompute: persist edge %d->%d: %w", edge.SourceID, edge.TargetID, err)
		}
	}

	communities := e.detector.Detect(nodes, graph.Edges)
	if communities != nil {
		if err := e.applyCommunities(ctx, nodes, communities); err != nil {
			return nil, fmt.Errorf("recompute: %w", err)
		}
	}

	if err := e.refreshStructure(ctx, nodes, graph); err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}

	clusters, err := e.store.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}

	snapshot := &GraphSnapshot{
		Nodes:     nodes,
		Matrix:    graph.Matrix,
		Edges:     graph.Edges,
		KNN:       ComputeAllKNN(graph, e.config.KNN, e.config.KNNMinSimilarity),
		Clusters:  clusters,
		CreatedAt: time.Now(),
	}
	e.snapshot.Store(snapshot)

	e.logger.Info("recompute complete",
		"nodes", len(nodes), "edges", len(graph.Edges), "clusters", len(clusters))
	return snapshot, nil
}

// applyCommunities converts a community assignment into persisted clusters.
//
// Communities below ClusterMinSize are discarded: their members end up
// unclustered. Each surviving community is matched to the existing cluster
// holding the plurality of its members, so stable groups keep their identity
// and label across recomputes; unmatched communities become new clusters and
// get labeled once. Node counts are rewritten from the final assignment,
// which covers both the old and new cluster of every moved node.
func (e *Engine) applyCommunities(ctx context.Context, nodes []*Node, communities map[int64]int64) error {
	byID := make(map[int64]*Node, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	counts := make(map[int64]int)
	assignments := make(map[int64]*int64, len(nodes))

	for communityID, memberIDs := range CommunitySizes(communities) {
		if len(memberIDs) < ClusterMinSize {
			for _, id := range memberIDs {
				assignments[id] = nil
			}
			continue
		}

		members := make([]*Node, 0, len(memberIDs))
		for _, id := range memberIDs {
			if node := byID[id]; node != nil {
				members = append(members, node)
			}
		}

		clusterID, err := e.resolveCluster(ctx, communityID, members)
		if err != nil {
			return err
		}
		for _, id := range memberIDs {
			cid := clusterID
			assignments[id] = &cid
		}
		// Two communities can resolve to the same surviving cluster; their
		// member counts accumulate.
		counts[clusterID] += len(memberIDs)
	}

	for _, node := range nodes {
		target, ok := assignments[node.ID]
		if !ok {
			target = nil
		}
		if !sameClusterRef(node.ClusterID, target) {
			if err := e.store.UpdateNodeCluster(ctx, node.ID, target); err != nil {
				return err
			}
			node.ClusterID = target
		}
	}

	for clusterID, count := range counts {
		id := clusterID
		if _, err := e.store.UpsertCluster(ctx, &id, "", count); err != nil {
			return err
		}
	}
	return e.pruneClusters(ctx, counts)
}

// resolveCluster finds the persisted cluster for a community: the existing
// cluster where the plurality of members already live, or a freshly created,
// freshly labeled one.
func (e *Engine) resolveCluster(ctx context.Context, communityID int64, members []*Node) (int64, error) {
	votes := make(map[int64]int)
	for _, member := range members {
		if member.ClusterID != nil {
			votes[*member.ClusterID]++
		}
	}
	var best int64
	bestVotes := 0
	for clusterID, count := range votes {
		if count > bestVotes || (count == bestVotes && bestVotes > 0 && clusterID < best) {
			best = clusterID
			bestVotes = count
		}
	}
	if bestVotes > 0 {
		return best, nil
	}

	label := e.labelCluster(ctx, communityID, members)
	clusterID, err := e.store.UpsertCluster(ctx, nil, label, len(members))
	if err != nil {
		return 0, fmt.Errorf("create cluster for community %d: %w", communityID, err)
	}
	return clusterID, nil
}

func (e *Engine) labelCluster(ctx context.Context, communityID int64, members []*Node) string {
	if e.labeler == nil {
		return fmt.Sprintf("cluster-%d", communityID)
	}
	label, err := e.labeler.Label(ctx, members)
	if err != nil || label == "" {
		// Labeling is cosmetic; a failed labeler never blocks the recompute.
		e.logger.Warn("cluster labeling failed, using fallback",
			"community", communityID, "error", err)
		return fmt.Sprintf("cluster-%d", communityID)
	}
	return label
}

// pruneClusters zeroes out and deletes clusters that lost all members.
func (e *Engine) pruneClusters(ctx context.Context, live map[int64]int) error {
	clusters, err := e.store.ListClusters(ctx)
	if err != nil {
		return err
	}
	for _, cluster := range clusters {
		if _, ok := live[cluster.ID]; ok {
			continue
		}
		id := cluster.ID
		if _, err := e.store.UpsertCluster(ctx, &id, cluster.Label, 0); err != nil {
			return err
		}
	}
	return e.store.DeleteEmptyClusters(ctx)
}

// refreshStructure rewrites connection counts from the fresh graph degree
// and recalculates importance for every node.
func (e *Engine) refreshStructure(ctx context.Context, nodes []*Node, graph *SimilarityGraph) error {
	degrees := make(map[int64]int, len(nodes))
	for _, edge := range graph.Edges {
		degrees[edge.SourceID]++
		degrees[edge.TargetID]++
	}

	now := time.Now()
	for _, node := range nodes {
		node.Connections = degrees[node.ID]
		node.Importance = ComputeImportance(node, now)
		if err := e.store.UpdateNodeImportance(ctx, node.ID, node.Importance, node.Connections); err != nil {
			return err
		}
	}
	return nil
}

// Insights derives the current insight set from stored nodes and clusters.
func (e *Engine) Insights(ctx context.Context) ([]Insight, error) {
	nodes, err := e.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	clusters, err := e.store.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	return e.insights.Derive(nodes, clusters), nil
}

// Snapshot returns the most recently published graph snapshot, or nil before
// the first Recompute.
func (e *Engine) Snapshot() *GraphSnapshot {
	return e.snapshot.Load()
}

func sameClusterRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
