package semgraph

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/adalundhe/constel/core/semgraph/vecmath"
)

// InsertNode persists a new node and assigns its ID from the store's
// auto-increment sequence. Missing embedding tiers are stored as NULL.
func (d *DB) InsertNode(ctx context.Context, node *Node) error {
	if !node.NodeType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidNodeType, node.NodeType)
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO nodes (content, node_type, importance, connections, cluster_id, embedding_rich, embedding_fast, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, node.Content, node.NodeType, node.Importance, node.Connections,
		nullID(node.ClusterID), nullBlob(node.EmbeddingRich), nullBlob(node.EmbeddingFast),
		node.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert node (type=%v): %w", node.NodeType, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("fetch node id: %w", err)
	}
	node.ID = id
	return nil
}

// GetNode returns the node with the given ID, or ErrNodeNotFound.
func (d *DB) GetNode(ctx context.Context, id int64) (*Node, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, content, node_type, importance, connections, cluster_id, embedding_rich, embedding_fast, created_at
		FROM nodes WHERE id = ?
	`, id)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNodeNotFound
	}
	return node, err
}

// ListNodes returns all nodes ordered by ID, embeddings included.
func (d *DB) ListNodes(ctx context.Context) ([]*Node, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, content, node_type, importance, connections, cluster_id, embedding_rich, embedding_fast, created_at
		FROM nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// UpdateNodeImportance writes a recalculated importance score and connection
// count for one node.
func (d *DB) UpdateNodeImportance(ctx context.Context, id int64, importance float64, connections int) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE nodes SET importance = ?, connections = ? WHERE id = ?
	`, importance, connections, id)
	if err != nil {
		return fmt.Errorf("update node %d importance: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node %d importance: %w", id, err)
	}
	if affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// UpdateNodeCluster assigns a node to a cluster, or clears the assignment
// when clusterID is nil.
func (d *DB) UpdateNodeCluster(ctx context.Context, nodeID int64, clusterID *int64) error {
	result, err := d.db.ExecContext(ctx, `
		UPDATE nodes SET cluster_id = ? WHERE id = ?
	`, nullID(clusterID), nodeID)
	if err != nil {
		return fmt.Errorf("update node %d cluster: %w", nodeID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node %d cluster: %w", nodeID, err)
	}
	if affected == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// QueryNeighbors ranks all stored nodes by cosine similarity against the
// query embedding, descending, and returns the top k.
//
// This is a brute-force scan over every stored rich embedding: O(n) dot
// products per query. Adequate at the node counts this engine targets; a
// vector index becomes worthwhile well past that.
func (d *DB) QueryNeighbors(ctx context.Context, embedding []float32, k int) ([]Neighbor, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, embedding_rich FROM nodes WHERE embedding_rich IS NOT NULL ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	queryMag := vecmath.Magnitude(embedding)
	var results []Neighbor
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("query neighbors: %w", err)
		}
		candidate := bytesToFloat32s(blob)
		sim := vecmath.CosineWithMagnitudes(embedding, candidate, queryMag, vecmath.Magnitude(candidate))
		results = append(results, Neighbor{ID: id, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var node Node
	var clusterID sql.NullInt64
	var rich, fast []byte
	var createdAt string

	err := row.Scan(&node.ID, &node.Content, &node.NodeType, &node.Importance,
		&node.Connections, &clusterID, &rich, &fast, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	if clusterID.Valid {
		id := clusterID.Int64
		node.ClusterID = &id
	}
	node.EmbeddingRich = bytesToFloat32s(rich)
	node.EmbeddingFast = bytesToFloat32s(fast)
	node.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse node %d created_at: %w", node.ID, err)
	}
	return &node, nil
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullBlob(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return float32sToBytes(v)
}

func float32sToBytes(f []float32) []byte {
	result := make([]byte, len(f)*4)
	for i, v := range f {
		bits := math.Float32bits(v)
		result[i*4] = byte(bits)
		result[i*4+1] = byte(bits >> 8)
		result[i*4+2] = byte(bits >> 16)
		result[i*4+3] = byte(bits >> 24)
	}
	return result
}

func bytesToFloat32s(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	result := make([]float32, len(b)/4)
	for i := range result {
		bits := uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
