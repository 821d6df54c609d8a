// Package indexer owns the active catalog snapshot: the product list and the
// lexical index built from it. Readers take the current snapshot with one
// atomic load; a reload builds a complete replacement off to the side and
// publishes it with one atomic store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer/index"
)

// Snapshot pairs a product list with the index built from exactly that list.
// Index document i is Products[i]. Snapshots are never modified.
type Snapshot struct {
	Products []catalog.Product
	Index    *index.Index
	LoadedAt time.Time
	Version  uint64
}

// Listener is notified after a new snapshot becomes active.
type Listener func(s *Snapshot)

type Engine struct {
	loader    catalog.Loader
	current   atomic.Pointer[Snapshot]
	reloadMu  sync.Mutex
	version   uint64
	listeners []Listener
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates an engine serving an empty catalog until the first
// Reload or Rebuild.
func NewEngine(loader catalog.Loader) *Engine {
	e := &Engine{
		loader: loader,
		now:    time.Now,
		logger: slog.Default().With("component", "indexer"),
	}
	e.current.Store(&Snapshot{Index: index.Build(nil), LoadedAt: e.now()})
	return e
}

// OnReload registers fn to run after every snapshot swap. Listeners must be
// registered before the engine is shared between goroutines.
func (e *Engine) OnReload(fn Listener) {
	e.listeners = append(e.listeners, fn)
}

// Snapshot returns the active snapshot. It is never nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Reload fetches the catalog from the loader, drops invalid products with a
// warning, and publishes a new snapshot. On a load failure the previous
// snapshot stays active.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	if e.loader == nil {
		return nil, errors.New("indexer: no catalog loader configured")
	}
	start := e.now()
	products, err := e.loader.Load(ctx)
	if err != nil {
		e.logger.Error("catalog reload failed, keeping previous snapshot",
			"error", err,
			"version", e.Snapshot().Version,
		)
		return nil, fmt.Errorf("reloading catalog: %w", err)
	}
	valid, verr := catalog.Validate(products)
	if verr != nil {
		e.logger.Warn("skipping invalid catalog products",
			"skipped", len(products)-len(valid),
			"error", verr,
		)
	}
	snap := e.Rebuild(valid)
	e.logger.Info("catalog reloaded",
		"products", len(snap.Products),
		"version", snap.Version,
		"duration", e.now().Sub(start),
	)
	return snap, nil
}

// Rebuild indexes products and makes them the active catalog. The caller
// must not modify products afterwards.
func (e *Engine) Rebuild(products []catalog.Product) *Snapshot {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if products == nil {
		products = []catalog.Product{}
	}
	e.version++
	snap := &Snapshot{
		Products: products,
		Index:    index.Build(products),
		LoadedAt: e.now(),
		Version:  e.version,
	}
	e.current.Store(snap)
	stats := snap.Index.Stats()
	e.logger.Debug("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"avg_doc_length", stats.AvgDocLength,
	)
	for _, fn := range e.listeners {
		fn(snap)
	}
	return snap
}
