package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-search/pkg/kafka"
)

const eventKey = "search"

// Publisher sends a batch of events to the analytics topic. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Recorder consumes events in-process. *Aggregator satisfies it.
type Recorder interface {
	Record(e SearchEvent)
}

// Collector accepts search events from request handlers without blocking
// them. With a Publisher it batches events and flushes them when the batch
// is full or every flushInterval; with a Recorder it hands each event over
// directly.
type Collector struct {
	publisher     Publisher
	recorder      Recorder
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	flushing      sync.WaitGroup
	closed        bool // set under mu at shutdown; no flush goroutine starts after
	logger        *slog.Logger
}

// NewCollector creates a Collector. Either publisher or recorder may be nil.
func NewCollector(publisher Publisher, recorder Recorder, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		recorder:      recorder,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
	}
}

func (c *Collector) Track(e SearchEvent) {
	if c.recorder != nil {
		c.recorder.Record(e)
	}
	if c.publisher == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(c.buffer, kafka.Event{Key: eventKey, Value: e})
	if len(c.buffer) >= c.batchSize && !c.closed {
		c.flushing.Add(1)
		go func() {
			defer c.flushing.Done()
			c.flush(context.Background())
		}()
	}
}

// Run flushes on a timer until ctx is cancelled, then makes a final flush
// with a short deadline.
func (c *Collector) Run(ctx context.Context) {
	if c.publisher == nil {
		<-ctx.Done()
		return
	}
	c.logger.Info("analytics collector started", "batch_size", c.batchSize, "flush_interval", c.flushInterval)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush(ctx)
		case <-ctx.Done():
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			c.flushing.Wait()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx)
			cancel()
			return
		}
	}
}

// Pending returns the number of buffered, unpublished events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics flush failed", "batch_size", len(batch), "error", err)
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if limit := c.batchSize * 3; len(c.buffer) > limit {
			dropped := len(c.buffer) - limit
			c.buffer = c.buffer[:limit]
			c.logger.Warn("analytics buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("analytics batch flushed", "events", len(batch))
}
