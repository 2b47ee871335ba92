// Package memstore provides an in-memory noisegraph.Store for tests,
// the example walkthrough and servers started without a database.
//
// Documents and snapshots are kept in their JSON form, so callers never
// share memory with the store and round trips behave like the postgres
// store's JSONB columns.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/meikuraledutech/noisegraph"
)

// Store is a mutex-guarded map store. The zero value is not usable; call New.
type Store struct {
	mu        sync.RWMutex
	ready     bool
	graphs    map[string][]byte
	nodes     map[string]int
	snapshots map[string][]byte
}

var _ noisegraph.Store = (*Store)(nil)

// New returns an empty store with its schema already created.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.ready = true
	s.graphs = make(map[string][]byte)
	s.nodes = make(map[string]int)
	s.snapshots = make(map[string][]byte)
}

// CreateSchema makes the store usable after DropSchema.
func (s *Store) CreateSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		s.reset()
	}
	return nil
}

// DropSchema discards everything. Other calls fail until CreateSchema.
func (s *Store) DropSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.graphs, s.nodes, s.snapshots = nil, nil, nil
	return nil
}

var errNoSchema = errors.New("memstore: schema not created")

func (s *Store) SaveGraph(ctx context.Context, graphID string, doc *noisegraph.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "memstore: encode graph %s", graphID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errNoSchema
	}
	s.graphs[graphID] = data
	s.nodes[graphID] = len(doc.Nodes)
	return nil
}

func (s *Store) GetGraph(ctx context.Context, graphID string) (*noisegraph.Document, error) {
	s.mu.RLock()
	data, ok := s.graphs[graphID]
	ready := s.ready
	s.mu.RUnlock()
	if !ready {
		return nil, errNoSchema
	}
	if !ok {
		return nil, nil
	}
	var doc noisegraph.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "memstore: decode graph %s", graphID)
	}
	return &doc, nil
}

// DeleteGraph removes the graph and every snapshot compiled from it.
func (s *Store) DeleteGraph(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errNoSchema
	}
	delete(s.graphs, graphID)
	delete(s.nodes, graphID)
	for id, data := range s.snapshots {
		var ref struct {
			GraphRef string `json:"graph_ref"`
		}
		if err := json.Unmarshal(data, &ref); err == nil && ref.GraphRef == graphID {
			delete(s.snapshots, id)
		}
	}
	return nil
}

// ListGraphs returns every stored graph, ordered by id.
func (s *Store) ListGraphs(ctx context.Context) ([]noisegraph.GraphInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, errNoSchema
	}
	graphs := make([]noisegraph.GraphInfo, 0, len(s.graphs))
	for id := range s.graphs {
		graphs = append(graphs, noisegraph.GraphInfo{ID: id, Nodes: s.nodes[id]})
	}
	sort.Slice(graphs, func(i, j int) bool { return graphs[i].ID < graphs[j].ID })
	return graphs, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshotID string, snap *noisegraph.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "memstore: encode snapshot %s", snapshotID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errNoSchema
	}
	s.snapshots[snapshotID] = data
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, snapshotID string) (*noisegraph.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[snapshotID]
	ready := s.ready
	s.mu.RUnlock()
	if !ready {
		return nil, errNoSchema
	}
	if !ok {
		return nil, nil
	}
	var snap noisegraph.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "memstore: decode snapshot %s", snapshotID)
	}
	return &snap, nil
}

func (s *Store) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return errNoSchema
	}
	delete(s.snapshots, snapshotID)
	return nil
}
