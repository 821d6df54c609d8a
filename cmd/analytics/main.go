// Command analytics runs search analytics as its own service for deployments
// with several search replicas. It consumes the search event topic from
// Kafka, aggregates every replica's events, and serves the combined report.
// Snapshots go to the catalog database when the catalog source is postgres or
// sqlite.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8083]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/sqlite"
)

const defaultHistoryLimit = 24

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8083, "HTTP port for the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *port); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config, port int) error {
	if !cfg.Kafka.Enabled {
		return errors.New("the analytics service needs kafka.enabled; without Kafka each search replica aggregates its own events")
	}
	slog.Info("starting analytics service", "port", port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()
	g, gctx := errgroup.WithContext(ctx)

	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	g.Go(func() error { return events.Start(gctx) })

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if store != nil {
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing analytics store: %w", err)
		}
		interval := cfg.Analytics.SnapshotInterval
		if interval <= 0 {
			interval = time.Minute
		}
		g.Go(func() error {
			store.RunSnapshots(gctx, agg, interval)
			return nil
		})
		checker.Register("snapshot_store", health.Ping(store.Ping, true))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Get("/api/v1/analytics", analytics.NewHandler(agg).Stats)
	r.Get("/api/v1/analytics/history", historyHandler(store))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore returns a nil store for file catalogs, which have no database.
func openStore(cfg *config.Config) (*analytics.Store, func() error, error) {
	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return analytics.NewStore(client.DB, analytics.DialectPostgres), client.Close, nil
	case config.SourceSQLite:
		client, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return analytics.NewStore(client.DB, analytics.DialectSQLite), client.Close, nil
	}
	slog.Info("file catalog source, analytics snapshots disabled")
	return nil, func() error { return nil }, nil
}

func historyHandler(store *analytics.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"analytics snapshots are disabled"}`))
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"limit must be a positive integer"}`))
				return
			}
			limit = n
		}
		reports, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			slog.Error("listing analytics snapshots failed", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"listing snapshots failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]any{"snapshots": reports}); err != nil {
			slog.Error("failed to write history response", "error", err)
		}
	}
}
