package noisegraph

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Runtime ties a Store to a Compiler: it recompiles stored graphs into
// stored snapshots, keeping the parameter values users already set.
//
// Rebuild, SetParam and SetPreview read a snapshot, change it and write it
// back. Calls on the same snapshot id are serialised within one Runtime so
// none of them overwrites another's change. Two processes sharing a store
// are not coordinated.
type Runtime struct {
	store    Store
	compiler *Compiler
	log      zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRuntime creates a Runtime.
func NewRuntime(store Store, compiler *Compiler, log zerolog.Logger) *Runtime {
	return &Runtime{
		store:    store,
		compiler: compiler,
		log:      log.With().Str("component", "runtime").Logger(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock holds the per-snapshot mutex until the returned func is called.
func (r *Runtime) lock(snapshotID string) func() {
	r.mu.Lock()
	l, ok := r.locks[snapshotID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[snapshotID] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Compiler returns the compiler used for rebuilds.
func (r *Runtime) Compiler() *Compiler { return r.compiler }

// Load fetches and decodes a stored graph.
func (r *Runtime) Load(ctx context.Context, graphID string) (*Graph, error) {
	doc, err := r.store.GetGraph(ctx, graphID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.Wrapf(ErrGraphNotFound, "%q", graphID)
	}
	g, err := Decode(doc, r.compiler.Registry())
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Source = graphID
		}
		return nil, err
	}
	return g, nil
}

// SaveGraph validates g and stores it.
func (r *Runtime) SaveGraph(ctx context.Context, graphID string, g *Graph) error {
	if err := g.Validate(r.compiler.Registry()); err != nil {
		return err
	}
	return r.store.SaveGraph(ctx, graphID, Encode(g))
}

// Rebuild compiles graphID and merges the result into snapshotID, creating
// the snapshot if needed. The artifact is named after shaderPath.
//
// On any failure the stored snapshot is left as it was, so a broken graph
// never replaces the last good artifact.
func (r *Runtime) Rebuild(ctx context.Context, snapshotID, graphID, shaderPath string) (*Snapshot, error) {
	defer r.lock(snapshotID)()

	prev, err := r.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		fresh := NewSnapshot()
		prev = &fresh
	}

	log := r.log.With().Str("snapshot", snapshotID).Str("graph", graphID).Logger()

	g, err := r.Load(ctx, graphID)
	if err != nil {
		log.Warn().Err(err).Msg("graph could not be loaded, keeping previous artifact")
		return nil, err
	}
	artifact, err := r.compiler.Compile(g, ArtifactName(shaderPath))
	if err != nil {
		log.Warn().Err(err).Msg("compile failed, keeping previous artifact")
		return nil, err
	}
	params, err := extract(g, r.compiler.Registry(), nil)
	if err != nil {
		return nil, err
	}

	next := Merge(*prev, params).WithArtifact(graphID, artifact).WithPreview(prev.Preview)
	if err := r.store.SaveSnapshot(ctx, snapshotID, &next); err != nil {
		return nil, err
	}
	log.Info().
		Str("artifact", artifact.Name).
		Str("version", artifact.Version[:12]).
		Bool("changed", prev.Stale(artifact)).
		Int("params", len(next.Params)).
		Msg("snapshot rebuilt")
	return &next, nil
}

// Snapshot fetches a stored snapshot.
func (r *Runtime) Snapshot(ctx context.Context, snapshotID string) (*Snapshot, error) {
	s, err := r.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Wrapf(ErrSnapshotNotFound, "%q", snapshotID)
	}
	return s, nil
}

// SetParam stores a user-entered parameter value.
func (r *Runtime) SetParam(ctx context.Context, snapshotID, name string, v Value) (*Snapshot, error) {
	defer r.lock(snapshotID)()

	s, err := r.Snapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	next, err := s.SetValue(name, v)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveSnapshot(ctx, snapshotID, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// SetPreview stores new preview settings.
func (r *Runtime) SetPreview(ctx context.Context, snapshotID string, p Preview) (*Snapshot, error) {
	defer r.lock(snapshotID)()

	s, err := r.Snapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	next := s.WithPreview(p)
	if err := r.store.SaveSnapshot(ctx, snapshotID, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ListGraphs lists the stored graphs available for selection.
func (r *Runtime) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	return r.store.ListGraphs(ctx)
}
