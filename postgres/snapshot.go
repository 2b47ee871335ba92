package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/noisegraph"
)

// SaveSnapshot stores a snapshot wholesale, replacing any previous one.
func (s *PGStore) SaveSnapshot(ctx context.Context, snapshotID string, snap *noisegraph.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("noisegraph: encode snapshot %s: %w", snapshotID, err)
	}
	var version string
	if snap.Artifact != nil {
		version = snap.Artifact.Version
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO noise_snapshots (id, graph_id, version, data) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET graph_id = EXCLUDED.graph_id, version = EXCLUDED.version, data = EXCLUDED.data, updated_at = NOW()`,
		snapshotID, snap.GraphRef, version, data,
	)
	if err != nil {
		return fmt.Errorf("noisegraph: save snapshot %s: %w", snapshotID, err)
	}
	return nil
}

// GetSnapshot fetches a snapshot by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetSnapshot(ctx context.Context, snapshotID string) (*noisegraph.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM noise_snapshots WHERE id = $1`, snapshotID,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("noisegraph: get snapshot: %w", err)
	}

	var snap noisegraph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("noisegraph: decode snapshot %s: %w", snapshotID, err)
	}
	return &snap, nil
}

// DeleteSnapshot deletes a snapshot by its ID.
// No error if the snapshot doesn't exist.
func (s *PGStore) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM noise_snapshots WHERE id = $1`, snapshotID)
	if err != nil {
		return fmt.Errorf("noisegraph: delete snapshot: %w", err)
	}
	return nil
}
