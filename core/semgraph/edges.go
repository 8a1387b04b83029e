package semgraph

import (
	"context"
	"fmt"
	"time"
)

// InsertEdge materializes a similarity edge between two nodes.
//
// Edges are symmetric, so the pair is stored once in canonical
// (low ID, high ID) order. Idempotent: reinserting an existing pair is a
// no-op via the unique pair index, which keeps the write path safe to retry.
func (d *DB) InsertEdge(ctx context.Context, sourceID, targetID int64, weight float64) error {
	if sourceID == targetID {
		return fmt.Errorf("%w: node %d", ErrSelfEdge, sourceID)
	}
	if weight < 0 || weight > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidWeight, weight)
	}

	lo, hi := sourceID, targetID
	if lo > hi {
		lo, hi = hi, lo
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO edges (source_id, target_id, weight, created_at)
		VALUES (?, ?, ?, ?)
	`, lo, hi, weight, time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert edge %d->%d (weight=%.3f): %w", lo, hi, weight, err)
	}
	return nil
}

// ListEdges returns all edges with weight >= minWeight, ordered by ID.
func (d *DB) ListEdges(ctx context.Context, minWeight float64) ([]*Edge, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, weight, created_at
		FROM edges WHERE weight >= ? ORDER BY id
	`, minWeight)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var edge Edge
		var createdAt string
		if err := rows.Scan(&edge.ID, &edge.SourceID, &edge.TargetID, &edge.Weight, &createdAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse edge %d created_at: %w", edge.ID, err)
		}
		edge.CreatedAt = parsed
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return edges, nil
}

// CountEdges returns the total number of persisted edges.
func (d *DB) CountEdges(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return count, nil
}
