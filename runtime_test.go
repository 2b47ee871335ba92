package noisegraph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/meikuraledutech/noisegraph"
	"github.com/meikuraledutech/noisegraph/memstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) (*noisegraph.Runtime, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	compiler := noisegraph.NewCompiler(noisegraph.DefaultRegistry())
	return noisegraph.NewRuntime(store, compiler, zerolog.Nop()), store
}

func paramNode(t *testing.T, g *noisegraph.Graph, cfg noisegraph.FloatParamConfig) noisegraph.NodeID {
	t.Helper()
	custom, err := json.Marshal(cfg)
	require.NoError(t, err)
	return g.AddNode("FloatParam", nil, custom)
}

func TestRebuildPreservesValues(t *testing.T) {
	ctx := context.Background()
	rt, _ := newRuntime(t)

	g := noisegraph.New()
	scale := paramNode(t, g, noisegraph.FloatParamConfig{Name: "Scale", Default: 1})
	unused := paramNode(t, g, noisegraph.FloatParamConfig{Name: "Unused", Default: 3})
	uv := g.AddNode("UV_X", nil, nil)
	mul := g.AddNode("Multiply", []noisegraph.Input{noisegraph.Reference(uv), noisegraph.Reference(scale)}, nil)
	g.SetOutput(noisegraph.Reference(mul))
	require.NoError(t, rt.SaveGraph(ctx, "g", g))

	snap, err := rt.Rebuild(ctx, "s", "g", "Assets/Noise.shader")
	require.NoError(t, err)
	assert.Equal(t, "Hidden/Noise", snap.Artifact.Name)
	assert.Equal(t, "g", snap.GraphRef)
	require.Len(t, snap.Params, 2)
	assert.Equal(t, noisegraph.DefaultPreviewSize, snap.Preview.Width)

	_, err = rt.SetParam(ctx, "s", "Scale", noisegraph.ScalarValue(2.5))
	require.NoError(t, err)

	g.RemoveNode(unused)
	paramNode(t, g, noisegraph.FloatParamConfig{Name: "Offset"})
	require.NoError(t, rt.SaveGraph(ctx, "g", g))

	snap, err = rt.Rebuild(ctx, "s", "g", "Assets/Noise.shader")
	require.NoError(t, err)
	require.Len(t, snap.Params, 2)
	assert.Equal(t, "Scale", snap.Params[0].Name)
	assert.Equal(t, noisegraph.ScalarValue(2.5), snap.Params[0].Value)
	assert.Equal(t, noisegraph.ScalarValue(1), snap.Params[0].Default)
	assert.Equal(t, "Offset", snap.Params[1].Name)
	assert.Equal(t, noisegraph.ScalarValue(0), snap.Params[1].Value)

	stored, err := rt.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, snap, stored)
}

func TestFailedRebuildKeepsStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	rt, store := newRuntime(t)

	g := noisegraph.New()
	a := g.AddNode("UV_X", nil, nil)
	g.SetOutput(noisegraph.Reference(a))
	require.NoError(t, rt.SaveGraph(ctx, "g", g))
	good, err := rt.Rebuild(ctx, "s", "g", "Good.shader")
	require.NoError(t, err)

	// A cyclic document written behind the runtime's back.
	bad := &noisegraph.Document{
		Nodes: []noisegraph.NodeDoc{
			{ID: "x", Op: "Sin", Inputs: []noisegraph.InputDoc{{Ref: "y"}}},
			{ID: "y", Op: "Cos", Inputs: []noisegraph.InputDoc{{Ref: "x"}}},
		},
		Output: noisegraph.InputDoc{Ref: "x"},
	}
	require.NoError(t, store.SaveGraph(ctx, "g", bad))

	_, err = rt.Rebuild(ctx, "s", "g", "Good.shader")
	require.ErrorIs(t, err, noisegraph.ErrLoad)
	assert.ErrorIs(t, err, noisegraph.ErrCycleDetected)
	var le *noisegraph.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "g", le.Source)

	stored, err := rt.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, good.Artifact.Version, stored.Artifact.Version)
}

func TestRebuildMissingGraph(t *testing.T) {
	ctx := context.Background()
	rt, _ := newRuntime(t)

	_, err := rt.Rebuild(ctx, "s", "nope", "X.shader")
	assert.ErrorIs(t, err, noisegraph.ErrGraphNotFound)

	_, err = rt.Snapshot(ctx, "s")
	assert.ErrorIs(t, err, noisegraph.ErrSnapshotNotFound)
}

func TestSaveGraphValidates(t *testing.T) {
	ctx := context.Background()
	rt, _ := newRuntime(t)

	g := noisegraph.New()
	g.SetOutput(noisegraph.Reference("ghost"))
	assert.ErrorIs(t, rt.SaveGraph(ctx, "g", g), noisegraph.ErrDanglingReference)

	graphs, err := rt.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Empty(t, graphs)
}

func TestSetParamAndPreview(t *testing.T) {
	ctx := context.Background()
	rt, _ := newRuntime(t)

	_, err := rt.SetParam(ctx, "s", "Scale", noisegraph.ScalarValue(1))
	assert.ErrorIs(t, err, noisegraph.ErrSnapshotNotFound)

	g := noisegraph.New()
	p := paramNode(t, g, noisegraph.FloatParamConfig{Name: "Scale", Default: 1})
	g.SetOutput(noisegraph.Reference(p))
	require.NoError(t, rt.SaveGraph(ctx, "g", g))
	_, err = rt.Rebuild(ctx, "s", "g", "P.shader")
	require.NoError(t, err)

	_, err = rt.SetParam(ctx, "s", "Scale", noisegraph.TextureValue("white"))
	assert.ErrorIs(t, err, noisegraph.ErrKindMismatch)

	snap, err := rt.SetPreview(ctx, "s", noisegraph.Preview{Width: 512, Height: 0, Scale: 0.001})
	require.NoError(t, err)
	assert.Equal(t, noisegraph.Preview{Width: 512, Height: 1, Scale: noisegraph.MinPreviewScale}, snap.Preview)

	snap, err = rt.Rebuild(ctx, "s", "g", "P.shader")
	require.NoError(t, err)
	assert.Equal(t, 512, snap.Preview.Width)
}

func TestConcurrentEditsAreNotLost(t *testing.T) {
	ctx := context.Background()
	rt, _ := newRuntime(t)

	const n = 8
	g := noisegraph.New()
	var last noisegraph.NodeID
	for i := 0; i < n; i++ {
		last = paramNode(t, g, noisegraph.FloatParamConfig{Name: fmt.Sprintf("P%d", i)})
	}
	g.SetOutput(noisegraph.Reference(last))
	require.NoError(t, rt.SaveGraph(ctx, "g", g))
	_, err := rt.Rebuild(ctx, "s", "g", "P.shader")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := rt.SetParam(ctx, "s", fmt.Sprintf("P%d", i), noisegraph.ScalarValue(float64(i+1)))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := rt.Rebuild(ctx, "s", "g", "P.shader")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := rt.Snapshot(ctx, "s")
	require.NoError(t, err)
	require.Len(t, snap.Params, n)
	for i, p := range snap.Params {
		assert.Equal(t, noisegraph.ScalarValue(float64(i+1)), p.Value, p.Name)
	}
}
