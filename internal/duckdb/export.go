package duckdb

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/tgenstats/internal/model"
)

// ExportAggregate records agg as a new run: one runs row plus one
// server_bytes row per non-zero bucket. Rows are written in node, peer,
// second order inside a single transaction, so a failed export leaves no
// partial run. It returns the number of server_bytes rows written.
func (s *Store) ExportAggregate(ctx context.Context, agg *model.AggregateResult) (int64, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("duckdb: begin export: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	t := agg.Totals
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, files, named_files, failed, successes, errors, nodes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), t.Files, t.NamedFiles, t.FailedFiles, t.Successes, t.Errors, len(agg.Nodes),
	); err != nil {
		return 0, fmt.Errorf("duckdb: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO server_bytes (run_id, node, peer, second, bytes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("duckdb: prepare series insert: %w", err)
	}
	defer stmt.Close()

	var rows int64
	for _, node := range sortedKeys(agg.Nodes) {
		peers := agg.Nodes[node]
		for _, peer := range sortedKeys(peers) {
			for i, bytes := range peers[peer] {
				if bytes == 0 {
					continue
				}
				if _, err := stmt.ExecContext(ctx, runID, node, peer, model.BucketOrigin+i, bytes); err != nil {
					return 0, fmt.Errorf("duckdb: insert %s/%s: %w", node, peer, err)
				}
				rows++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("duckdb: commit export: %w", err)
	}
	committed = true
	log.Printf("duckdb: run %s: %d series rows for %d nodes", runID, rows, len(agg.Nodes))
	return rows, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
