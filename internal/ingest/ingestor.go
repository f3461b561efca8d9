// Package ingest provides the concurrent log ingestion pipeline.
//
// Entries submitted by engine callbacks and run executors pass through a
// bounded channel into a pool of workers that persist them, publish them to
// live subscribers, and append them to the in-memory tail buffers.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowdeck/console/internal/logs"
	"github.com/flowdeck/console/internal/models"
	"github.com/flowdeck/console/internal/store"
)

// Stats tracks ingestion counters.
type Stats struct {
	Processed uint64
	Dropped   uint64
	StartTime time.Time
}

// Ingestor fans log entries out to the store, the live broker, and the
// tail buffers through a pool of workers. Workers drain the intake
// channel in small batches so bursts land in the store as one insert.
type Ingestor struct {
	logStore store.LogStore
	broker   *logs.Broker
	tail     *logs.Tail

	entries  chan *models.LogEntry
	workers  int
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once

	processed atomic.Uint64
	dropped   atomic.Uint64
	startTime time.Time

	logger *slog.Logger
}

// Config holds ingestor tuning parameters.
type Config struct {
	// BufferSize is the capacity of the intake channel.
	BufferSize int
	// Workers is the number of concurrent drain workers.
	Workers int
}

// NewIngestor creates a new ingestor. The broker and tail may be nil, in
// which case entries are only persisted.
func NewIngestor(logStore store.LogStore, broker *logs.Broker, tail *logs.Tail, cfg Config, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Ingestor{
		logStore:  logStore,
		broker:    broker,
		tail:      tail,
		entries:   make(chan *models.LogEntry, cfg.BufferSize),
		workers:   cfg.Workers,
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
		logger:    logger.With("component", "ingestor"),
	}
}

// Start launches the worker pool.
func (ing *Ingestor) Start() {
	for i := 0; i < ing.workers; i++ {
		ing.wg.Add(1)
		go ing.worker()
	}
	ing.logger.Info("ingestion workers started", "workers", ing.workers, "buffer", cap(ing.entries))
}

// Submit adds a log entry to the intake channel without blocking.
// Returns false if the channel is full and the entry was dropped.
func (ing *Ingestor) Submit(entry *models.LogEntry) bool {
	if entry == nil {
		return false
	}
	select {
	case ing.entries <- entry:
		return true
	default:
		ing.dropped.Add(1)
		return false
	}
}

// SubmitBatch submits each entry of a batch, returning the number accepted.
func (ing *Ingestor) SubmitBatch(entries []*models.LogEntry) int {
	accepted := 0
	for _, entry := range entries {
		if ing.Submit(entry) {
			accepted++
		}
	}
	return accepted
}

// maxBatch caps how many buffered entries a worker drains into one
// store round trip.
const maxBatch = 64

// worker drains the intake channel in batches until shutdown.
func (ing *Ingestor) worker() {
	defer ing.wg.Done()

	batch := make([]*models.LogEntry, 0, maxBatch)
	for {
		select {
		case entry, ok := <-ing.entries:
			if !ok {
				return
			}
			ing.process(ing.fill(append(batch[:0], entry)))
		case <-ing.shutdown:
			// Drain what is already buffered before exiting.
			for {
				select {
				case entry, ok := <-ing.entries:
					if !ok {
						return
					}
					ing.process(ing.fill(append(batch[:0], entry)))
				default:
					return
				}
			}
		}
	}
}

// fill greedily collects whatever is already buffered, up to capacity.
func (ing *Ingestor) fill(batch []*models.LogEntry) []*models.LogEntry {
	for len(batch) < cap(batch) {
		select {
		case entry, ok := <-ing.entries:
			if !ok {
				return batch
			}
			batch = append(batch, entry)
		default:
			return batch
		}
	}
	return batch
}

// process persists a batch and fans it out to live consumers.
func (ing *Ingestor) process(batch []*models.LogEntry) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ing.logStore.CreateBatch(ctx, batch); err != nil {
		ing.logger.Error("failed to persist log batch",
			"size", len(batch), "error", err)
	}

	if ing.tail != nil {
		ing.tail.AppendBatch(batch)
	}
	if ing.broker != nil {
		ing.broker.PublishBatch(batch)
	}

	ing.processed.Add(uint64(len(batch)))
}

// Shutdown stops accepting entries and waits for the workers to drain,
// or until the context is done.
func (ing *Ingestor) Shutdown(ctx context.Context) error {
	ing.once.Do(func() {
		close(ing.shutdown)
	})

	done := make(chan struct{})
	go func() {
		ing.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ing.logger.Info("ingestion workers drained",
			"processed", ing.processed.Load(), "dropped", ing.dropped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStats returns a snapshot of ingestion counters.
func (ing *Ingestor) GetStats() Stats {
	return Stats{
		Processed: ing.processed.Load(),
		Dropped:   ing.dropped.Load(),
		StartTime: ing.startTime,
	}
}
