package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/noisegraph"
	"github.com/meikuraledutech/noisegraph/config"
	"github.com/meikuraledutech/noisegraph/memstore"
	"github.com/meikuraledutech/noisegraph/postgres"
)

func main() {
	cfg, err := config.Load("noisegraph")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := cfg.Logging.Logger(os.Stdout, cfg.Service)

	var store noisegraph.Store
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(context.Background(), cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect")
		}
		defer pool.Close()
		store = postgres.New(pool)
		if err := store.CreateSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("create schema")
		}
	default:
		store = memstore.New()
		log.Warn().Msg("using in-memory store, data is lost on exit")
	}

	reg := noisegraph.DefaultRegistry()
	compiler := noisegraph.NewCompiler(reg, noisegraph.WithLogger(log))
	rt := noisegraph.NewRuntime(store, compiler, log)

	app := newApp(store, reg, rt, log)

	log.Info().Str("addr", cfg.HTTP.Addr).Str("store", cfg.Store.Driver).Msg("listening")
	if err := app.Listen(cfg.HTTP.Addr); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
