// Package consumer reloads the catalog when another service announces a
// catalog change on Kafka.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
)

// CatalogEvent is published by whatever owns the catalog store after it
// changes. Only the fact of the change matters; the engine always reloads
// the full catalog from its configured source.
type CatalogEvent struct {
	Type      string    `json:"type"`
	Source    string    `json:"source,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reloader is satisfied by *indexer.Engine.
type Reloader interface {
	Reload(ctx context.Context) (*indexer.Snapshot, error)
}

// HandleMessage returns a Kafka MessageHandler that reloads the catalog for
// every catalog event. Events older than the active snapshot are skipped,
// since the snapshot already reflects them. Undecodable messages are logged
// and committed so one bad payload cannot stall the partition.
func HandleMessage(engine Reloader, current func() *indexer.Snapshot) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[CatalogEvent](value)
		if err != nil {
			logger.Error("failed to decode catalog event", "error", err, "key", string(key))
			return nil
		}
		if snap := current(); snap != nil && !event.Timestamp.IsZero() && event.Timestamp.Before(snap.LoadedAt) {
			logger.Debug("catalog event predates active snapshot, skipping",
				"type", event.Type,
				"event_time", event.Timestamp,
				"version", snap.Version,
			)
			return nil
		}
		snap, err := engine.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading catalog for %s event: %w", event.Type, err)
		}
		logger.Info("catalog reloaded from event",
			"type", event.Type,
			"product_id", event.ProductID,
			"version", snap.Version,
		)
		return nil
	}
}
