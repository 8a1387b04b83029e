package semgraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestNode(t *testing.T, db *DB, content string, nodeType NodeType, rich []float32) *Node {
	t.Helper()
	node := &Node{
		Content:       content,
		NodeType:      nodeType,
		EmbeddingRich: rich,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, db.InsertNode(context.Background(), node))
	require.Greater(t, node.ID, int64(0))
	return node
}

func TestDBConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DBConfig)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *DBConfig) {}},
		{name: "empty path", mutate: func(c *DBConfig) { c.Path = "" }, wantErr: true},
		{name: "zero open conns", mutate: func(c *DBConfig) { c.MaxOpenConns = 0 }, wantErr: true},
		{name: "excessive open conns", mutate: func(c *DBConfig) { c.MaxOpenConns = 500 }, wantErr: true},
		{name: "idle exceeds open", mutate: func(c *DBConfig) { c.MaxIdleConns = 50 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultDBConfig("test.db")
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNodeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	inserted := insertTestNode(t, db, "the sky was red tonight", NodeTypeFact, []float32{0.1, 0.2, 0.3})

	loaded, err := db.GetNode(ctx, inserted.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, loaded.ID)
	assert.Equal(t, "the sky was red tonight", loaded.Content)
	assert.Equal(t, NodeTypeFact, loaded.NodeType)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, loaded.EmbeddingRich)
	assert.Nil(t, loaded.EmbeddingFast)
	assert.Nil(t, loaded.ClusterID)
}

func TestGetNodeNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetNode(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestInsertNodeInvalidType(t *testing.T) {
	db := openTestDB(t)

	err := db.InsertNode(context.Background(), &Node{Content: "x", NodeType: "nonsense"})
	assert.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestListNodesOrderedByID(t *testing.T) {
	db := openTestDB(t)

	first := insertTestNode(t, db, "a", NodeTypeFact, nil)
	second := insertTestNode(t, db, "b", NodeTypeGoal, []float32{1, 0})

	nodes, err := db.ListNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, first.ID, nodes[0].ID)
	assert.Equal(t, second.ID, nodes[1].ID)
	assert.False(t, nodes[0].HasRichEmbedding())
	assert.True(t, nodes[1].HasRichEmbedding())
}

func TestUpdateNodeImportance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	node := insertTestNode(t, db, "a", NodeTypeFact, nil)
	require.NoError(t, db.UpdateNodeImportance(ctx, node.ID, 0.75, 3))

	loaded, err := db.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, loaded.Importance, 1e-9)
	assert.Equal(t, 3, loaded.Connections)

	assert.ErrorIs(t, db.UpdateNodeImportance(ctx, 999, 0.5, 0), ErrNodeNotFound)
}

func TestUpdateNodeCluster(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	node := insertTestNode(t, db, "a", NodeTypeFact, nil)
	clusterID, err := db.UpsertCluster(ctx, nil, "dreams", 1)
	require.NoError(t, err)

	require.NoError(t, db.UpdateNodeCluster(ctx, node.ID, &clusterID))
	loaded, err := db.GetNode(ctx, node.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.ClusterID)
	assert.Equal(t, clusterID, *loaded.ClusterID)

	require.NoError(t, db.UpdateNodeCluster(ctx, node.ID, nil))
	loaded, err = db.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.ClusterID)

	// A cluster reference must point at an existing cluster row.
	missing := int64(424242)
	assert.Error(t, db.UpdateNodeCluster(ctx, node.ID, &missing))
}

func TestInsertEdgeIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := insertTestNode(t, db, "a", NodeTypeFact, nil)
	b := insertTestNode(t, db, "b", NodeTypeFact, nil)

	require.NoError(t, db.InsertEdge(ctx, a.ID, b.ID, 0.9))
	// Same pair, both orders: still one row.
	require.NoError(t, db.InsertEdge(ctx, a.ID, b.ID, 0.8))
	require.NoError(t, db.InsertEdge(ctx, b.ID, a.ID, 0.7))

	count, err := db.CountEdges(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	edges, err := db.ListEdges(ctx, 0)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, a.ID, edges[0].SourceID)
	assert.Equal(t, b.ID, edges[0].TargetID)
	assert.InDelta(t, 0.9, edges[0].Weight, 1e-9, "first write wins")
}

func TestInsertEdgeRejectsSelfEdge(t *testing.T) {
	db := openTestDB(t)

	node := insertTestNode(t, db, "a", NodeTypeFact, nil)
	assert.ErrorIs(t, db.InsertEdge(context.Background(), node.ID, node.ID, 0.9), ErrSelfEdge)
}

func TestInsertEdgeRejectsBadWeight(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := insertTestNode(t, db, "a", NodeTypeFact, nil)
	b := insertTestNode(t, db, "b", NodeTypeFact, nil)

	assert.ErrorIs(t, db.InsertEdge(ctx, a.ID, b.ID, 1.5), ErrInvalidWeight)
	assert.ErrorIs(t, db.InsertEdge(ctx, a.ID, b.ID, -0.1), ErrInvalidWeight)
}

func TestListEdgesMinWeight(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := insertTestNode(t, db, "a", NodeTypeFact, nil)
	b := insertTestNode(t, db, "b", NodeTypeFact, nil)
	c := insertTestNode(t, db, "c", NodeTypeFact, nil)

	require.NoError(t, db.InsertEdge(ctx, a.ID, b.ID, 0.95))
	require.NoError(t, db.InsertEdge(ctx, b.ID, c.ID, 0.6))

	edges, err := db.ListEdges(ctx, 0.75)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.95, edges[0].Weight, 1e-9)
}

func TestQueryNeighborsRanksBySimilarity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insertTestNode(t, db, "parallel", NodeTypeFact, []float32{1, 0, 0})
	insertTestNode(t, db, "close", NodeTypeFact, []float32{0.9, 0.1, 0})
	insertTestNode(t, db, "orthogonal", NodeTypeFact, []float32{0, 1, 0})
	insertTestNode(t, db, "no embedding", NodeTypeFact, nil)

	neighbors, err := db.QueryNeighbors(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 3, "nodes without embeddings never appear")

	for i := 1; i < len(neighbors); i++ {
		assert.GreaterOrEqual(t, neighbors[i-1].Similarity, neighbors[i].Similarity,
			"results must be ranked descending")
	}
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-5)

	top, err := db.QueryNeighbors(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestQueryNeighborsDegenerateInput(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	neighbors, err := db.QueryNeighbors(ctx, nil, 5)
	require.NoError(t, err)
	assert.Nil(t, neighbors)

	neighbors, err = db.QueryNeighbors(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, neighbors)
}

func TestUpsertCluster(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.UpsertCluster(ctx, nil, "morning pages", 4)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	updated, err := db.UpsertCluster(ctx, &id, "morning pages", 6)
	require.NoError(t, err)
	assert.Equal(t, id, updated)

	clusters, err := db.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "morning pages", clusters[0].Label)
	assert.Equal(t, 6, clusters[0].NodeCount)

	// A count-only rewrite with an empty label keeps the stored label.
	_, err = db.UpsertCluster(ctx, &id, "", 9)
	require.NoError(t, err)
	clusters, err = db.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "morning pages", clusters[0].Label)
	assert.Equal(t, 9, clusters[0].NodeCount)

	missing := int64(999)
	_, err = db.UpsertCluster(ctx, &missing, "x", 0)
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestDeleteEmptyClusters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	emptyID, err := db.UpsertCluster(ctx, nil, "empty", 0)
	require.NoError(t, err)
	liveID, err := db.UpsertCluster(ctx, nil, "live", 2)
	require.NoError(t, err)

	require.NoError(t, db.DeleteEmptyClusters(ctx))

	clusters, err := db.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, liveID, clusters[0].ID)
	assert.NotEqual(t, emptyID, clusters[0].ID)
}

func TestCorruptTimestampsSurfaceErrors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := insertTestNode(t, db, "a", NodeTypeFact, nil)
	b := insertTestNode(t, db, "b", NodeTypeFact, nil)
	require.NoError(t, db.InsertEdge(ctx, a.ID, b.ID, 0.9))
	_, err := db.UpsertCluster(ctx, nil, "c", 1)
	require.NoError(t, err)

	// A corrupted timestamp column must fail the read loudly, not degrade to
	// a zero time.
	_, err = db.db.ExecContext(ctx, `UPDATE nodes SET created_at = 'not-a-time' WHERE id = ?`, a.ID)
	require.NoError(t, err)
	_, err = db.GetNode(ctx, a.ID)
	assert.ErrorContains(t, err, "created_at")

	_, err = db.db.ExecContext(ctx, `UPDATE edges SET created_at = 'not-a-time'`)
	require.NoError(t, err)
	_, err = db.ListEdges(ctx, 0)
	assert.ErrorContains(t, err, "created_at")

	_, err = db.db.ExecContext(ctx, `UPDATE clusters SET updated_at = 'not-a-time'`)
	require.NoError(t, err)
	_, err = db.ListClusters(ctx)
	assert.ErrorContains(t, err, "updated_at")
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, 3.14159, -2.71828}
	decoded := bytesToFloat32s(float32sToBytes(values))
	require.Len(t, decoded, len(values))
	for i := range values {
		assert.Equal(t, values[i], decoded[i])
	}

	assert.Nil(t, bytesToFloat32s(nil))
	assert.Nil(t, bytesToFloat32s([]byte{1, 2, 3}), "truncated blob decodes to nil")
}
