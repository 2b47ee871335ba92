package main

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/noisegraph"
	"github.com/rs/zerolog"
)

type operationInfo struct {
	Name   string             `json:"name"`
	Params []noisegraph.Param `json:"params"`
}

type rebuildRequest struct {
	GraphID    string `json:"graph_id" validate:"required"`
	ShaderPath string `json:"shader_path" validate:"required"`
}

type paramRequest struct {
	Name  string           `json:"name" validate:"required"`
	Value noisegraph.Value `json:"value"`
}

type previewRequest struct {
	Width  int     `json:"width" validate:"gte=1,lte=4096"`
	Height int     `json:"height" validate:"gte=1,lte=4096"`
	Scale  float64 `json:"scale"`
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, noisegraph.ErrGraphNotFound),
		errors.Is(err, noisegraph.ErrSnapshotNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, noisegraph.ErrLoad),
		errors.Is(err, noisegraph.ErrInvalidGraph),
		errors.Is(err, noisegraph.ErrUnknownOperation),
		errors.Is(err, noisegraph.ErrEmitFailure),
		errors.Is(err, noisegraph.ErrUnknownParameter),
		errors.Is(err, noisegraph.ErrKindMismatch),
		errors.Is(err, noisegraph.ErrInvalidValue):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		body["hints"] = hints
	}
	return c.Status(statusOf(err)).JSON(body)
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("took", time.Since(start)).
			Msg("request")
		return err
	}
}

// newApp wires the HTTP API over a store and a runtime built on it.
func newApp(store noisegraph.Store, reg *noisegraph.Registry, rt *noisegraph.Runtime, log zerolog.Logger) *fiber.App {
	validate := validator.New()
	app := fiber.New()
	app.Use(requestLogger(log))

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Operations ────────────────────────────────────────────────────
	app.Get("/operations", func(c fiber.Ctx) error {
		names := reg.List()
		ops := make([]operationInfo, 0, len(names))
		for _, name := range names {
			op, _ := reg.Operation(name)
			ops = append(ops, operationInfo{Name: op.Name, Params: op.Params})
		}
		return c.JSON(ops)
	})

	// ── Graphs ────────────────────────────────────────────────────────
	app.Get("/graphs", func(c fiber.Ctx) error {
		graphs, err := rt.ListGraphs(c.Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(graphs)
	})

	app.Put("/graphs/:id", func(c fiber.Ctx) error {
		var doc noisegraph.Document
		if err := c.Bind().JSON(&doc); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		g, err := noisegraph.Decode(&doc, reg)
		if err != nil {
			return fail(c, err)
		}
		if err := rt.SaveGraph(c.Context(), c.Params("id"), g); err != nil {
			return fail(c, err)
		}
		return c.JSON(noisegraph.GraphInfo{ID: c.Params("id"), Nodes: g.Len()})
	})

	app.Get("/graphs/:id", func(c fiber.Ctx) error {
		doc, err := store.GetGraph(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		if doc == nil {
			return c.Status(404).JSON(fiber.Map{"error": "graph not found"})
		}
		return c.JSON(doc)
	})

	app.Delete("/graphs/:id", func(c fiber.Ctx) error {
		if err := store.DeleteGraph(c.Context(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	app.Get("/graphs/:id/parameters", func(c fiber.Ctx) error {
		g, err := rt.Load(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		params, err := noisegraph.ExtractParameters(g, reg)
		if err != nil {
			return fail(c, err)
		}
		if params == nil {
			params = []noisegraph.Parameter{}
		}
		return c.JSON(params)
	})

	app.Post("/graphs/:id/compile", func(c fiber.Ctx) error {
		g, err := rt.Load(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		name := c.Query("name", noisegraph.ArtifactName(c.Params("id")))
		artifact, err := rt.Compiler().Compile(g, name)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(artifact)
	})

	// ── Snapshots ─────────────────────────────────────────────────────
	app.Post("/snapshots/:id/rebuild", func(c fiber.Ctx) error {
		var req rebuildRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		snap, err := rt.Rebuild(c.Context(), c.Params("id"), req.GraphID, req.ShaderPath)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(snap)
	})

	app.Get("/snapshots/:id", func(c fiber.Ctx) error {
		snap, err := rt.Snapshot(c.Context(), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(snap)
	})

	app.Delete("/snapshots/:id", func(c fiber.Ctx) error {
		if err := store.DeleteSnapshot(c.Context(), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.SendStatus(204)
	})

	app.Patch("/snapshots/:id/params", func(c fiber.Ctx) error {
		var req paramRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		snap, err := rt.SetParam(c.Context(), c.Params("id"), req.Name, req.Value)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(snap)
	})

	app.Patch("/snapshots/:id/preview", func(c fiber.Ctx) error {
		var req previewRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		p := noisegraph.Preview{Width: req.Width, Height: req.Height, Scale: req.Scale}
		snap, err := rt.SetPreview(c.Context(), c.Params("id"), p)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(snap)
	})

	return app
}
