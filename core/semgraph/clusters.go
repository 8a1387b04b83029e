package semgraph

import (
	"context"
	"fmt"
	"time"
)

// UpsertCluster creates a cluster when id is nil, otherwise updates the
// existing cluster's label and node count. An empty label on update keeps
// the stored label, so count-only rewrites never erase a name. Returns the
// cluster ID.
func (d *DB) UpsertCluster(ctx context.Context, id *int64, label string, nodeCount int) (int64, error) {
	now := time.Now().Format(time.RFC3339Nano)

	if id == nil {
		result, err := d.db.ExecContext(ctx, `
			INSERT INTO clusters (label, node_count, updated_at) VALUES (?, ?, ?)
		`, label, nodeCount, now)
		if err != nil {
			return 0, fmt.Errorf("insert cluster: %w", err)
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("fetch cluster id: %w", err)
		}
		return newID, nil
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE clusters
		SET label = COALESCE(NULLIF(?, ''), label), node_count = ?, updated_at = ?
		WHERE id = ?
	`, label, nodeCount, now, *id)
	if err != nil {
		return 0, fmt.Errorf("update cluster %d: %w", *id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update cluster %d: %w", *id, err)
	}
	if affected == 0 {
		return 0, ErrClusterNotFound
	}
	return *id, nil
}

// ListClusters returns all persisted clusters ordered by ID.
func (d *DB) ListClusters(ctx context.Context) ([]*Cluster, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, label, node_count, updated_at FROM clusters ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*Cluster
	for rows.Next() {
		var cluster Cluster
		var updatedAt string
		if err := rows.Scan(&cluster.ID, &cluster.Label, &cluster.NodeCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse cluster %d updated_at: %w", cluster.ID, err)
		}
		cluster.UpdatedAt = parsed
		clusters = append(clusters, &cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	return clusters, nil
}

// DeleteEmptyClusters removes clusters whose node count reached zero after a
// recompute reassigned all their members.
func (d *DB) DeleteEmptyClusters(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM clusters WHERE node_count <= 0`)
	if err != nil {
		return fmt.Errorf("delete empty clusters: %w", err)
	}
	return nil
}
