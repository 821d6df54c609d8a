package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/sqlite"
)

// catalogSource is the configured origin of the product catalog. db is nil
// for file catalogs.
type catalogSource struct {
	loader  catalog.Loader
	db      *sql.DB
	dialect analytics.Dialect
	ping    func(ctx context.Context) error
	close   func() error
}

func openCatalogSource(cfg *config.Config) (*catalogSource, error) {
	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		loader, err := catalog.NewSQLLoader(client.DB, cfg.Catalog.Table, cfg.Catalog.LoadTimeout)
		if err != nil {
			client.Close()
			return nil, err
		}
		slog.Info("catalog source: postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database, "table", cfg.Catalog.Table)
		return &catalogSource{loader: loader, db: client.DB, dialect: analytics.DialectPostgres, ping: client.Ping, close: client.Close}, nil
	case config.SourceSQLite:
		client, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		loader, err := catalog.NewSQLLoader(client.DB, cfg.Catalog.Table, cfg.Catalog.LoadTimeout)
		if err != nil {
			client.Close()
			return nil, err
		}
		slog.Info("catalog source: sqlite", "path", client.Path(), "table", cfg.Catalog.Table)
		return &catalogSource{loader: loader, db: client.DB, dialect: analytics.DialectSQLite, ping: client.Ping, close: client.Close}, nil
	case config.SourceFile:
		loader := catalog.NewFileLoader(cfg.Catalog.Path)
		slog.Info("catalog source: file", "path", loader.Path(), "watch", cfg.Catalog.Watch)
		return &catalogSource{
			loader: loader,
			ping: func(context.Context) error {
				_, err := os.Stat(loader.Path())
				return err
			},
			close: func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported catalog source %q", cfg.Catalog.Source)
}

// meteredCatalog counts reload outcomes for every reload path: HTTP, the
// file watcher and catalog events.
type meteredCatalog struct {
	*indexer.Engine
	metrics *metrics.Metrics
}

func (c *meteredCatalog) Reload(ctx context.Context) (*indexer.Snapshot, error) {
	snap, err := c.Engine.Reload(ctx)
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.CatalogReloadsTotal.WithLabelValues(status).Inc()
	return snap, err
}
