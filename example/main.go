package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/noisegraph"
	"github.com/meikuraledutech/noisegraph/memstore"
	"github.com/meikuraledutech/noisegraph/postgres"
	"github.com/rs/zerolog"
)

func main() {
	ctx := context.Background()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Use postgres when DATABASE_URL is set, otherwise keep everything in memory.
	var store noisegraph.Store = memstore.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	reg := noisegraph.DefaultRegistry()
	compiler := noisegraph.NewCompiler(reg, noisegraph.WithLogger(logger))
	rt := noisegraph.NewRuntime(store, compiler, logger)

	// ── Build a graph ─────────────────────────────────────────────────
	// clouds = Perlin2D(UV_X * Scale, UV_Y * Scale) blended with a texture
	g := noisegraph.New()
	u := g.AddNode("UV_X", nil, nil)
	v := g.AddNode("UV_Y", nil, nil)
	scale := g.AddNode("FloatParam", nil, mustJSON(noisegraph.FloatParamConfig{
		Name: "Scale", Default: 4, Slider: &noisegraph.Range{Min: 1, Max: 16},
	}))
	su := g.AddNode("Multiply", []noisegraph.Input{noisegraph.Reference(u), noisegraph.Reference(scale)}, nil)
	sv := g.AddNode("Multiply", []noisegraph.Input{noisegraph.Reference(v), noisegraph.Reference(scale)}, nil)
	perlin := g.AddNode("Perlin2D", []noisegraph.Input{noisegraph.Reference(su), noisegraph.Reference(sv)}, nil)
	mask := g.AddNode("Tex2DParam", []noisegraph.Input{noisegraph.Reference(u), noisegraph.Reference(v)},
		mustJSON(noisegraph.Tex2DParamConfig{Name: "Mask"}))
	lerp, _ := reg.Operation("Lerp")
	blend := g.AddNode("Lerp", lerp.Defaults(), nil)

	// 2. Wire it up interactively: pick the Lerp's A slot, then the source.
	var rc noisegraph.Reconnect
	must(rc.PickInput(g, blend, 0))
	must(rc.PickSource(g, perlin))
	must(rc.PickSource(g, mask))
	must(rc.PickInput(g, blend, 1))
	must(rc.PickGraphOutput(g))
	must(rc.PickSource(g, blend))

	// Feeding the Lerp back into the noise would close a loop.
	must(rc.PickSource(g, blend))
	if err := rc.PickInput(g, su, 0); err != nil {
		fmt.Println("refused:", err)
	}

	// 3. Save and compile
	if err := rt.SaveGraph(ctx, "clouds", g); err != nil {
		log.Fatalf("save graph: %v", err)
	}
	snap, err := rt.Rebuild(ctx, "main", "clouds", "Assets/Shaders/Clouds.shader")
	if err != nil {
		log.Fatalf("rebuild: %v", err)
	}
	fmt.Println(snap.Artifact.Source)
	printParams(snap)

	// 4. The user moves the slider
	snap, err = rt.SetParam(ctx, "main", "Scale", noisegraph.ScalarValue(9))
	if err != nil {
		log.Fatalf("set param: %v", err)
	}

	// 5. Edit the graph: drop the texture mask, add a gain parameter.
	must(noisegraph.DisconnectInput(g, reg, blend, 1))
	g.RemoveNode(mask)
	gain := g.AddNode("FloatParam", nil, mustJSON(noisegraph.FloatParamConfig{Name: "Gain", Default: 1}))
	must(g.RewireInput(blend, 2, noisegraph.Reference(gain)))
	if err := rt.SaveGraph(ctx, "clouds", g); err != nil {
		log.Fatalf("save graph: %v", err)
	}

	// 6. Rebuild: Scale keeps 9, Mask is gone, Gain starts at its default.
	snap, err = rt.Rebuild(ctx, "main", "clouds", "Assets/Shaders/Clouds.shader")
	if err != nil {
		log.Fatalf("rebuild: %v", err)
	}
	printParams(snap)

	// 7. Graphs available for selection
	graphs, err := rt.ListGraphs(ctx)
	if err != nil {
		log.Fatalf("list graphs: %v", err)
	}
	for _, info := range graphs {
		fmt.Printf("graph %s: %d nodes\n", info.ID, info.Nodes)
	}

	// 8. Clean up
	if err := store.DeleteGraph(ctx, "clouds"); err != nil {
		log.Fatalf("delete graph: %v", err)
	}
	fmt.Println("graph deleted")
}

func printParams(s *noisegraph.Snapshot) {
	fmt.Printf("artifact %s version %s\n", s.Artifact.Name, s.Artifact.Version[:12])
	for _, p := range s.Params {
		switch p.Kind {
		case noisegraph.Texture:
			fmt.Printf("  %-8s texture %s\n", p.Name, p.Value.Texture)
		default:
			fmt.Printf("  %-8s scalar  %g (default %g)\n", p.Name, p.Value.Scalar, p.Default.Scalar)
		}
	}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Fatal(err)
	}
	return data
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
