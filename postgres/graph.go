package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/noisegraph"
)

// SaveGraph stores a graph document, replacing any previous version.
func (s *PGStore) SaveGraph(ctx context.Context, graphID string, doc *noisegraph.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("noisegraph: encode graph %s: %w", graphID, err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO noise_graphs (id, document, node_count) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET document = EXCLUDED.document, node_count = EXCLUDED.node_count, updated_at = NOW()`,
		graphID, data, len(doc.Nodes),
	)
	if err != nil {
		return fmt.Errorf("noisegraph: save graph %s: %w", graphID, err)
	}
	return nil
}

// GetGraph fetches a graph document by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetGraph(ctx context.Context, graphID string) (*noisegraph.Document, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT document FROM noise_graphs WHERE id = $1`, graphID,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("noisegraph: get graph: %w", err)
	}

	var doc noisegraph.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("noisegraph: decode graph %s: %w", graphID, err)
	}
	return &doc, nil
}

// DeleteGraph removes a graph document and every snapshot compiled from it.
// No error if the graphID doesn't exist.
func (s *PGStore) DeleteGraph(ctx context.Context, graphID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("noisegraph: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM noise_snapshots WHERE graph_id = $1`, graphID); err != nil {
		return fmt.Errorf("noisegraph: delete snapshots: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM noise_graphs WHERE id = $1`, graphID); err != nil {
		return fmt.Errorf("noisegraph: delete graph: %w", err)
	}

	return tx.Commit(ctx)
}

// ListGraphs returns every stored graph, ordered by id.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListGraphs(ctx context.Context) ([]noisegraph.GraphInfo, error) {
	rows, err := s.db.Query(ctx, `SELECT id, node_count FROM noise_graphs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("noisegraph: list graphs: %w", err)
	}
	defer rows.Close()

	graphs := []noisegraph.GraphInfo{}
	for rows.Next() {
		var g noisegraph.GraphInfo
		if err := rows.Scan(&g.ID, &g.Nodes); err != nil {
			return nil, fmt.Errorf("noisegraph: scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("noisegraph: rows graphs: %w", err)
	}

	return graphs, nil
}
