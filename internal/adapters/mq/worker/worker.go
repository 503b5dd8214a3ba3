// Package worker drains the telemetry queue into the store, deduplicating by
// event id and triggering score refreshes after successful inserts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/warden/internal/adapters/mq/queue"
	"github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

// Worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Ingestor persists telemetry events.
type Ingestor interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Deduper releases event ids whose insert failed so clients can retry.
// Events arrive already marked seen by the enqueue side.
type Deduper interface {
	Unrecord(ctx context.Context, id string)
}

// Rescorer refreshes the risk read model for a (user, warranty) after its
// history changed. Optional; nil disables rescoring.
type Rescorer interface {
	Rescore(ctx context.Context, userID, warrantyID string)
}

// Dequeuer defines how workers receive events.
type Dequeuer interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes queued telemetry until stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// IngestWorker implements Worker over the store and deduper.
type IngestWorker struct {
	queue    Dequeuer
	deduper  Deduper
	ingestor Ingestor
	rescorer Rescorer
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewIngestWorker creates a worker with configuration options.
func NewIngestWorker(q Dequeuer, deduper Deduper, ingestor Ingestor, opts ...Option) *IngestWorker {
	w := &IngestWorker{
		queue:    q,
		deduper:  deduper,
		ingestor: ingestor,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *IngestWorker) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing telemetry event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *IngestWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent persists a single event at most once.
func (w *IngestWorker) processEvent(ctx context.Context, event Event) error {
	if err := w.ingestor.InsertEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			// The store carries ids beyond the deduper's eviction horizon.
			metrics.RecordIngestDuplicate()
			w.logger.Debug(ctx, "duplicate telemetry event dropped",
				logger.String("event_id", event.ID))
			return nil
		}
		// Allow a later retry of this id.
		w.deduper.Unrecord(ctx, event.ID)
		metrics.RecordIngestError()
		return fmt.Errorf("failed to ingest event %s: %w", event.ID, err)
	}
	metrics.RecordIngestAccepted()

	if w.rescorer != nil {
		w.rescorer.Rescore(ctx, event.UserID, event.WarrantyID)
	}
	return nil
}

// Pool manages a fixed set of ingest workers.
type Pool struct {
	workers []*IngestWorker
	queue   Dequeuer

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count
// defaults to twice the CPU count.
func NewPool(workerCount int, q Dequeuer, deduper Deduper, ingestor Ingestor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers:  make([]*IngestWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewIngestWorker(q, deduper, ingestor, workerOpts...)
	}
	return pool
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
