package orchestrator

import "sync/atomic"

// Stats holds monotonic counters for the orchestrator's processing
// outcomes. Safe for concurrent use; the only process-wide mutable
// state besides the queue's own Stats (spec.md §5, "no global state
// leaks").
type Stats struct {
	EventsProcessed atomic.Int64
	EventsFlushed   atomic.Int64
	EventsDropped   atomic.Int64
	NormalizeErrors atomic.Int64
	FlushErrors     atomic.Int64
	Retries         atomic.Int64
}
