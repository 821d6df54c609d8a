package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/middleware"
)

// RouterConfig carries the cross-cutting pieces mounted around the search
// routes. Nil fields are skipped.
type RouterConfig struct {
	Analytics      *analytics.Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	Limiter        *middleware.Limiter
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter builds the service handler.
//
// Middleware chain (outermost first):
//
//	RequestID → Recoverer → Metrics → CORS → RateLimit → Timeout → routes
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}
	if cfg.Analytics != nil {
		r.Get("/api/v1/analytics", cfg.Analytics.Stats)
	}
	h.RegisterRoutes(r)
	return r
}
