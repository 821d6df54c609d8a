// Command catalogctl runs catalog searches locally, without the HTTP
// service, against the configured catalog or a file given on the command
// line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/sqlite"
)

func main() {
	app := &cli.Command{
		Name:  "catalogctl",
		Usage: "Query a product catalog from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: "configs/development.yaml",
			},
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Catalog file (json, yaml, toml, optionally .zst); overrides the configured source",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level := "warn"
			if c.Bool("debug") {
				level = "debug"
			}
			slog.SetDefault(slog.New(logger.NewHandler(os.Stderr, level, "text")))
			return ctx, nil
		},
		Commands: []*cli.Command{
			searchCommand(),
			recommendCommand(),
			decomposeCommand(),
			statsCommand(),
			validateCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

type session struct {
	cfg    *config.Config
	engine *indexer.Engine
	exec   *executor.Executor
	close  func() error
}

// openSession loads the catalog once and indexes it.
func openSession(ctx context.Context, c *cli.Command) (*session, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		// A missing config file is fine when the catalog is given directly.
		if c.String("catalog") == "" {
			return nil, err
		}
		cfg = config.Default()
	}
	loader, closeFn, err := newLoader(cfg, c.String("catalog"))
	if err != nil {
		return nil, err
	}
	engine := indexer.NewEngine(loader)
	if _, err := engine.Reload(ctx); err != nil {
		closeFn()
		return nil, err
	}
	slog.Debug("catalog ready", "products", len(engine.Snapshot().Products))
	return &session{
		cfg:    cfg,
		engine: engine,
		exec:   executor.New(engine, cfg.Search, nil),
		close:  closeFn,
	}, nil
}

func newLoader(cfg *config.Config, path string) (catalog.Loader, func() error, error) {
	noop := func() error { return nil }
	if path != "" {
		return catalog.NewFileLoader(path), noop, nil
	}
	switch cfg.Catalog.Source {
	case config.SourceFile:
		return catalog.NewFileLoader(cfg.Catalog.Path), noop, nil
	case config.SourceSQLite:
		client, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		loader, err := catalog.NewSQLLoader(client.DB, cfg.Catalog.Table, cfg.Catalog.LoadTimeout)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return loader, client.Close, nil
	}
	return nil, nil, fmt.Errorf("catalogctl reads file and sqlite catalogs; use --catalog for %s sources", cfg.Catalog.Source)
}
