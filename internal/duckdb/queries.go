package duckdb

import (
	"context"
	"fmt"
	"time"
)

// Run is one row of the runs table.
type Run struct {
	ID        string
	CreatedAt time.Time
	Files     int
	Named     int
	Failed    int
	Successes int64
	Errors    int64
	Nodes     int
}

// NodeTotal summarizes one node of a run.
type NodeTotal struct {
	Node        string
	Peers       int
	Bytes       int64
	FirstSecond int
	LastSecond  int
}

// LatestRun returns the most recently exported run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, created_at, files, named_files, failed, successes, errors, nodes
		 FROM runs ORDER BY created_at DESC LIMIT 1`,
	).Scan(&r.ID, &r.CreatedAt, &r.Files, &r.Named, &r.Failed, &r.Successes, &r.Errors, &r.Nodes)
	if err != nil {
		return Run{}, fmt.Errorf("duckdb: latest run: %w", err)
	}
	return r, nil
}

// NodeTotals returns per-node byte totals for runID ordered by node.
func (s *Store) NodeTotals(ctx context.Context, runID string) ([]NodeTotal, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT node, peers, bytes, first_second, last_second
		 FROM node_totals WHERE run_id = ? ORDER BY node`, runID)
	if err != nil {
		return nil, fmt.Errorf("duckdb: node totals: %w", err)
	}
	defer rows.Close()

	var out []NodeTotal
	for rows.Next() {
		var n NodeTotal
		if err := rows.Scan(&n.Node, &n.Peers, &n.Bytes, &n.FirstSecond, &n.LastSecond); err != nil {
			return nil, fmt.Errorf("duckdb: scan node total: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// PeerSeries reads back the non-zero buckets of one node and peer as a
// map from simulated second to bytes.
func (s *Store) PeerSeries(ctx context.Context, runID, node, peer string) (map[int]int64, error) {
	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT second, bytes FROM server_bytes
		 WHERE run_id = ? AND node = ? AND peer = ? ORDER BY second`, runID, node, peer)
	if err != nil {
		return nil, fmt.Errorf("duckdb: peer series: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int64)
	for rows.Next() {
		var second int
		var bytes int64
		if err := rows.Scan(&second, &bytes); err != nil {
			return nil, fmt.Errorf("duckdb: scan peer series: %w", err)
		}
		out[second] = bytes
	}
	return out, rows.Err()
}
