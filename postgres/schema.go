package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS noise_graphs (
    id         TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    node_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS noise_snapshots (
    id         TEXT PRIMARY KEY,
    graph_id   TEXT NOT NULL DEFAULT '',
    version    TEXT NOT NULL DEFAULT '',
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_noise_snapshots_graph_id ON noise_snapshots(graph_id);
`

// CreateSchema creates the noise_graphs and noise_snapshots tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the noise_snapshots and noise_graphs tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS noise_snapshots, noise_graphs CASCADE;`)
	return err
}
