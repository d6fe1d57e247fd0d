// Package queue implements the hybrid queue described in spec.md §4.1: a
// bounded in-memory ring backed by a durable on-disk overflow buffer, so
// ingestion never blocks indefinitely and never silently loses events
// under the "disk" overflow strategy.
//
// Ordering: the in-memory path is strict FIFO. Items that spill to disk
// and later drain back in are not re-merged into global order — a
// sequence that straddles the memory/disk boundary may see disk-stored
// items delivered after newer in-memory items. This is intentional (see
// spec.md §4.1, "Ordering") and is not a bug.
package queue

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"secureingest/internal/logging"
	"secureingest/internal/schema"
)

// OverflowStrategy decides what happens when the in-memory ring is full.
type OverflowStrategy string

const (
	// OverflowDisk spills overflowing items to the durable buffer.
	OverflowDisk OverflowStrategy = "disk"
	// OverflowDrop discards overflowing items and counts them as dropped.
	OverflowDrop OverflowStrategy = "drop"
)

// EnqueueOutcome is the result of an Enqueue call.
type EnqueueOutcome int

const (
	Accepted EnqueueOutcome = iota
	Overflowed
	Dropped
)

func (o EnqueueOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Overflowed:
		return "overflowed"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// refillFraction is the share of max_memory_size opportunistically pulled
// back from the durable buffer after a successful in-memory dequeue
// (spec.md §4.1: "up to 10% of max_memory_size").
const refillFraction = 0.10

// Stats holds monotonic counters for queue outcomes. Safe for concurrent use.
type Stats struct {
	Accepted   atomic.Int64
	Overflowed atomic.Int64
	Dropped    atomic.Int64
	Refilled   atomic.Int64
	DurableErr atomic.Int64
}

// Config configures a Queue.
type Config struct {
	// MaxMemorySize is the in-memory ring capacity, in items.
	MaxMemorySize int

	// DiskBufferPath is the durable buffer's backing file path.
	DiskBufferPath string

	// OverflowStrategy chooses what happens when the ring is full.
	OverflowStrategy OverflowStrategy

	// Logger for structured logging; defaults to a discard logger.
	Logger *slog.Logger
}

// Queue is the hybrid queue: an in-memory channel with durable spillover.
type Queue struct {
	mem              chan schema.QueuedItem
	durable          *durableBuffer
	overflowStrategy OverflowStrategy
	maxMemorySize    int
	refillBudget     int

	stats Stats

	logger *slog.Logger
}

// New creates a Queue and opens its durable buffer.
func New(cfg Config) (*Queue, error) {
	if cfg.MaxMemorySize <= 0 {
		cfg.MaxMemorySize = 1000
	}
	if cfg.OverflowStrategy == "" {
		cfg.OverflowStrategy = OverflowDrop
	}

	db, err := openDurableBuffer(cfg.DiskBufferPath)
	if err != nil {
		return nil, err
	}

	refillBudget := int(float64(cfg.MaxMemorySize) * refillFraction)
	if refillBudget < 1 {
		refillBudget = 1
	}

	return &Queue{
		mem:              make(chan schema.QueuedItem, cfg.MaxMemorySize),
		durable:          db,
		overflowStrategy: cfg.OverflowStrategy,
		maxMemorySize:    cfg.MaxMemorySize,
		refillBudget:     refillBudget,
		logger:           logging.Default(cfg.Logger).With("component", "queue"),
	}, nil
}

// Enqueue tries the in-memory ring first, non-blocking. If full, it
// applies the configured overflow strategy. It never blocks longer than
// timeout.
func (q *Queue) Enqueue(ctx context.Context, item schema.QueuedItem, timeout time.Duration) (EnqueueOutcome, error) {
	select {
	case q.mem <- item:
		q.stats.Accepted.Add(1)
		return Accepted, nil
	default:
	}

	switch q.overflowStrategy {
	case OverflowDisk:
		if err := q.durable.write(item); err != nil {
			q.stats.DurableErr.Add(1)
			q.stats.Dropped.Add(1)
			q.logger.Error("durable buffer write failed, dropping", "error", err)
			return Dropped, err
		}
		q.stats.Overflowed.Add(1)
		return Overflowed, nil
	case OverflowDrop:
		q.stats.Dropped.Add(1)
		return Dropped, nil
	default:
		q.stats.Dropped.Add(1)
		return Dropped, nil
	}
}

// Dequeue prefers the in-memory ring, blocking up to timeout. On
// empty-timeout it consults the durable buffer and returns its oldest
// record if any. After a successful in-memory dequeue it opportunistically
// refills from the durable buffer.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (schema.QueuedItem, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.mem:
		q.refill()
		return item, true, nil
	case <-timer.C:
	case <-ctx.Done():
		return schema.QueuedItem{}, false, nil
	}

	item, ok, err := q.durable.read()
	if err != nil {
		q.stats.DurableErr.Add(1)
		return schema.QueuedItem{}, false, err
	}
	if !ok {
		return schema.QueuedItem{}, false, nil
	}
	return item, true, nil
}

// refill opportunistically pulls up to refillBudget items from the
// durable buffer into the memory ring. If the ring fills back up mid-way
// (refill contention), the pulled item is written back to the durable
// buffer's tail rather than lost.
func (q *Queue) refill() {
	for i := 0; i < q.refillBudget; i++ {
		item, ok, err := q.durable.read()
		if err != nil {
			q.stats.DurableErr.Add(1)
			return
		}
		if !ok {
			return
		}

		select {
		case q.mem <- item:
			q.stats.Refilled.Add(1)
		default:
			// Memory ring filled again during refill; re-enqueue at tail.
			if werr := q.durable.write(item); werr != nil {
				q.stats.DurableErr.Add(1)
				q.logger.Error("refill re-enqueue failed, item dropped", "error", werr)
			}
			return
		}
	}
}

// Size returns the combined in-memory and durable item count.
func (q *Queue) Size() int {
	return len(q.mem) + q.durable.size()
}

// MemorySize returns the in-memory item count alone.
func (q *Queue) MemorySize() int {
	return len(q.mem)
}

// Capacity returns the in-memory ring's configured capacity.
func (q *Queue) Capacity() int {
	return q.maxMemorySize
}

// Stats returns the queue's outcome counters.
func (q *Queue) Stats() *Stats {
	return &q.stats
}

// Close releases the durable buffer handle.
func (q *Queue) Close() error {
	return q.durable.close()
}
