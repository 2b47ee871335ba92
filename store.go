package noisegraph

import "context"

// GraphInfo summarises a stored graph for listings.
type GraphInfo struct {
	ID    string `json:"id"`
	Nodes int    `json:"nodes"`
}

// Store defines the contract for persisting graph documents and the runtime
// snapshots compiled from them.
// Get methods return nil, nil when the id is unknown; deletes of unknown ids
// are not errors.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Graphs
	SaveGraph(ctx context.Context, graphID string, doc *Document) error
	GetGraph(ctx context.Context, graphID string) (*Document, error)
	DeleteGraph(ctx context.Context, graphID string) error
	ListGraphs(ctx context.Context) ([]GraphInfo, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, snapshotID string, s *Snapshot) error
	GetSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}
