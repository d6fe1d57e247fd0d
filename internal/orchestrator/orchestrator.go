// Package orchestrator runs the worker pool that drains the queue,
// normalizes and enriches each item, and micro-batches the results into
// the storage writer, per spec.md §4.5.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"secureingest/internal/enrich"
	"secureingest/internal/logging"
	"secureingest/internal/normalize"
	"secureingest/internal/queue"
	"secureingest/internal/schema"
	"secureingest/internal/storage"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"
)

// retryBaseDelay is the exponential backoff base (spec.md §4.5: "base
// 100ms x retry count").
const retryBaseDelay = 100 * time.Millisecond

// Config configures an Orchestrator.
type Config struct {
	Queue    *queue.Queue
	Enricher *enrich.Enricher
	Writer   *storage.Writer

	NumWorkers           int
	BatchSize            int
	BatchTimeoutSeconds  int
	MaxRetries           int
	DequeueTimeout       time.Duration
	StatsIntervalSeconds int

	// Now returns the current time; defaults to time.Now. Overridable for tests.
	Now func() time.Time

	Logger *slog.Logger
}

// Orchestrator owns the worker pool, the shared in-flight batch, and the
// periodic statistics task.
type Orchestrator struct {
	queue    *queue.Queue
	enricher *enrich.Enricher
	writer   *storage.Writer

	numWorkers     int
	batchSize      int
	batchTimeout   time.Duration
	maxRetries     int
	dequeueTimeout time.Duration
	statsInterval  time.Duration

	now    func() time.Time
	logger *slog.Logger

	stats Stats

	// batchMu protects batch and lastFlush: append-and-flush is a single
	// atomic section so exactly one worker performs a flush per trigger
	// (spec.md §5, "Shared resources").
	batchMu   sync.Mutex
	batch     []schema.UnifiedEvent
	lastFlush time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	eg       *errgroup.Group

	scheduler gocron.Scheduler
}

// New constructs an Orchestrator. Call Start to begin processing.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Queue == nil {
		return nil, errors.New("orchestrator: queue is required")
	}
	if cfg.Enricher == nil {
		return nil, errors.New("orchestrator: enricher is required")
	}
	if cfg.Writer == nil {
		return nil, errors.New("orchestrator: writer is required")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeoutSeconds <= 0 {
		cfg.BatchTimeoutSeconds = 5
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = time.Second
	}
	if cfg.StatsIntervalSeconds <= 0 {
		cfg.StatsIntervalSeconds = 30
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create scheduler: %w", err)
	}

	o := &Orchestrator{
		queue:          cfg.Queue,
		enricher:       cfg.Enricher,
		writer:         cfg.Writer,
		numWorkers:     cfg.NumWorkers,
		batchSize:      cfg.BatchSize,
		batchTimeout:   time.Duration(cfg.BatchTimeoutSeconds) * time.Second,
		maxRetries:     cfg.MaxRetries,
		dequeueTimeout: cfg.DequeueTimeout,
		statsInterval:  time.Duration(cfg.StatsIntervalSeconds) * time.Second,
		now:            cfg.Now,
		logger:         logging.Default(cfg.Logger).With("component", "orchestrator"),
		lastFlush:      cfg.Now(),
		stopCh:         make(chan struct{}),
		scheduler:      sched,
	}
	return o, nil
}

// Start spawns the worker pool and the periodic statistics task. It
// returns immediately; use Shutdown to stop.
func (o *Orchestrator) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.numWorkers; i++ {
		g.Go(func() error { return o.workerLoop(gctx) })
	}
	o.eg = g

	_, err := o.scheduler.NewJob(
		gocron.DurationJob(o.statsInterval),
		gocron.NewTask(o.reportStats),
	)
	if err != nil {
		o.logger.Error("failed to schedule stats task", "error", err)
	}
	o.scheduler.Start()
}

// Stats returns the orchestrator's outcome counters.
func (o *Orchestrator) Stats() *Stats {
	return &o.stats
}

func (o *Orchestrator) reportStats() {
	o.logger.Info("orchestrator stats",
		"events_processed", o.stats.EventsProcessed.Load(),
		"events_flushed", o.stats.EventsFlushed.Load(),
		"events_dropped", o.stats.EventsDropped.Load(),
		"normalize_errors", o.stats.NormalizeErrors.Load(),
		"flush_errors", o.stats.FlushErrors.Load(),
		"retries", o.stats.Retries.Load(),
		"queue_size", o.queue.Size(),
	)
}

// workerLoop is one worker task: dequeue, process with retry, append to
// the shared batch, flush on trigger. It returns nil once stopCh is
// closed, finishing whatever item it currently holds first.
func (o *Orchestrator) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-o.stopCh:
			return nil
		default:
		}

		item, ok, err := o.queue.Dequeue(ctx, o.dequeueTimeout)
		if err != nil {
			o.logger.Error("dequeue failed", "error", err)
			continue
		}
		if !ok {
			continue
		}

		event, ok := o.processWithRetry(ctx, item)
		if !ok {
			continue
		}
		o.stats.EventsProcessed.Add(1)
		o.appendAndMaybeFlush(ctx, event)
	}
}

// processWithRetry runs normalize then enrich, retrying transient
// failures up to maxRetries with exponential backoff. A normalization
// error is deterministic for the same input, so it short-circuits retry
// entirely (spec.md §9).
func (o *Orchestrator) processWithRetry(ctx context.Context, item schema.QueuedItem) (schema.UnifiedEvent, bool) {
	var lastErr error

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		event, err := normalize.Normalize(item)
		if err == nil {
			return o.enricher.Enrich(ctx, event), true
		}

		lastErr = err
		o.stats.NormalizeErrors.Add(1)

		if isPermanent(err) {
			break
		}
		if attempt == o.maxRetries {
			break
		}

		o.stats.Retries.Add(1)
		delay := time.Duration(attempt+1) * retryBaseDelay
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return schema.UnifiedEvent{}, false
		}
	}

	o.stats.EventsDropped.Add(1)
	o.logger.Error("event dropped after retries", "error", lastErr, "source_type", item.SourceType)
	return schema.UnifiedEvent{}, false
}

// isPermanent reports whether err is a normalization error that cannot
// succeed on retry: the same malformed input always fails the same way.
func isPermanent(err error) bool {
	return errors.Is(err, schema.ErrUnknownSource) ||
		errors.Is(err, schema.ErrSchemaViolation) ||
		errors.Is(err, schema.ErrBadTimestamp)
}

// appendAndMaybeFlush appends event to the shared batch and flushes if
// either trigger condition holds, all under a single lock so exactly one
// worker performs any given flush.
func (o *Orchestrator) appendAndMaybeFlush(ctx context.Context, event schema.UnifiedEvent) {
	o.batchMu.Lock()
	defer o.batchMu.Unlock()

	o.batch = append(o.batch, event)

	if len(o.batch) < o.batchSize && o.now().Sub(o.lastFlush) < o.batchTimeout {
		return
	}
	o.flushLocked(ctx)
}

// flushLocked writes the current batch to storage. On failure the batch
// is left intact so the next trigger retries the same rows; no event is
// silently lost (spec.md §4.5).
func (o *Orchestrator) flushLocked(ctx context.Context) {
	if len(o.batch) == 0 {
		return
	}
	if err := o.writer.Write(ctx, o.batch); err != nil {
		o.stats.FlushErrors.Add(1)
		o.logger.Error("flush failed, batch retained for next trigger", "error", err, "batch_size", len(o.batch))
		return
	}
	o.stats.EventsFlushed.Add(int64(len(o.batch)))
	o.batch = o.batch[:0]
	o.lastFlush = o.now()
}

// Shutdown stops accepting new items, waits for in-flight workers to
// finish their current event (including any retry), flushes the
// remaining batch once, and closes the queue.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.stopCh) })

	var workerErr error
	if o.eg != nil {
		workerErr = o.eg.Wait()
	}
	if err := o.scheduler.Shutdown(); err != nil {
		o.logger.Warn("scheduler shutdown error", "error", err)
	}

	o.batchMu.Lock()
	o.flushLocked(ctx)
	o.batchMu.Unlock()

	if err := o.queue.Close(); err != nil {
		if workerErr == nil {
			workerErr = err
		}
	}
	return workerErr
}
