package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	slog.Info("starting search service", "port", cfg.Server.Port, "catalog_source", cfg.Catalog.Source)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	src, err := openCatalogSource(cfg)
	if err != nil {
		return fmt.Errorf("opening catalog source: %w", err)
	}
	defer src.close()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Cache.Enabled {
		opts := cache.Options{
			TTL:            cfg.Cache.TTL,
			EmptyResultTTL: cfg.Cache.EmptyResultTTL,
			MaxEntries:     cfg.Cache.MaxEntries,
			Metrics:        m,
		}
		if cfg.Redis.Enabled {
			redisClient, err = pkgredis.NewClient(cfg.Redis)
			if err != nil {
				slog.Warn("redis unavailable, shared cache tier disabled", "error", err)
			} else {
				defer redisClient.Close()
				opts.Shared = redisClient
				opts.Breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
					FailureThreshold: 5,
					ResetTimeout:     30 * time.Second,
					OnStateChange: func(name string, to resilience.State) {
						m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
					},
				})
				slog.Info("shared cache tier enabled", "addr", cfg.Redis.Addr)
			}
		}
		queryCache = cache.New(opts)
		slog.Info("search cache enabled", "ttl", cfg.Cache.TTL, "max_entries", cfg.Cache.MaxEntries)
	}

	engine := indexer.NewEngine(src.loader)
	cat := &meteredCatalog{Engine: engine, metrics: m}
	engine.OnReload(func(s *indexer.Snapshot) {
		stats := s.Index.Stats()
		m.CatalogProducts.Set(float64(len(s.Products)))
		m.CatalogTerms.Set(float64(stats.Terms))
		if queryCache == nil {
			return
		}
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queryCache.Clear(clearCtx); err != nil {
			slog.Warn("cache clear after catalog reload failed", "error", err)
		}
	})

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Catalog.LoadTimeout)
	snap, err := cat.Reload(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}
	slog.Info("catalog loaded", "products", len(snap.Products), "terms", snap.Index.Stats().Terms)

	exec := executor.New(engine, cfg.Search, m)
	g, gctx := errgroup.WithContext(ctx)

	var tracker handler.Tracker
	var analyticsHandler *analytics.Handler
	var producer *kafka.Producer
	if cfg.Analytics.Enabled {
		agg := analytics.NewAggregator()
		analyticsHandler = analytics.NewHandler(agg)
		var collector *analytics.Collector
		if cfg.Kafka.Enabled {
			producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			collector = analytics.NewCollector(producer, nil, cfg.Analytics.BufferSize, cfg.Analytics.FlushInterval)
			eventConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
			g.Go(func() error { return eventConsumer.Start(gctx) })
			slog.Info("analytics events routed through kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		} else {
			collector = analytics.NewCollector(nil, agg, cfg.Analytics.BufferSize, cfg.Analytics.FlushInterval)
		}
		tracker = collector
		g.Go(func() error {
			collector.Run(gctx)
			return nil
		})

		if src.db != nil && cfg.Analytics.SnapshotInterval > 0 {
			store := analytics.NewStore(src.db, src.dialect)
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("preparing analytics store: %w", err)
			}
			if last, err := store.LatestSnapshot(ctx); err != nil {
				slog.Warn("reading last analytics snapshot failed", "error", err)
			} else if last != nil {
				slog.Info("previous analytics snapshot found", "total_searches", last.TotalSearches, "since", last.Since)
			}
			g.Go(func() error {
				store.RunSnapshots(gctx, agg, cfg.Analytics.SnapshotInterval)
				return nil
			})
		}
	}

	if cfg.Kafka.Enabled {
		updates := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates, consumer.HandleMessage(cat, engine.Snapshot))
		g.Go(func() error { return updates.Start(gctx) })
		slog.Info("listening for catalog updates", "topic", cfg.Kafka.Topics.CatalogUpdates)
	}

	if cfg.Catalog.Source == config.SourceFile && cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Path, 0, func(ctx context.Context) {
			if _, err := cat.Reload(ctx); err != nil {
				slog.Error("catalog reload after file change failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	if queryCache != nil {
		g.Go(func() error {
			queryCache.RunJanitor(gctx, cfg.Cache.CleanupInterval)
			return nil
		})
	}

	checker := health.NewChecker()
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		s := engine.Snapshot()
		if len(s.Products) == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "catalog is empty"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d products, version %d", len(s.Products), s.Version)}
	})
	checker.Register("catalog_source", health.Ping(src.ping, false))
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, true))
	}

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Prune()
				}
			}
		})
	}

	h := handler.New(exec, cat, queryCache, tracker, m)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.NewRouter(h, handler.RouterConfig{
			Analytics:      analyticsHandler,
			Health:         checker,
			Metrics:        m,
			Limiter:        limiter,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = m.StartServer(cfg.Metrics.Port)
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
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
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	err = g.Wait()
	if producer != nil {
		if cerr := producer.Close(); cerr != nil {
			slog.Error("closing analytics producer", "error", cerr)
		}
	}
	return err
}
