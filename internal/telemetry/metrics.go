// Package telemetry aggregates queue, orchestrator, and process-level
// counters into the spec's JSON /metrics endpoint (spec.md §6) and into
// Prometheus collectors for scrape-based monitoring (SPEC_FULL.md §2).
package telemetry

import (
	"time"

	"secureingest/internal/orchestrator"
	"secureingest/internal/queue"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures a Collector.
type Config struct {
	Queue        *queue.Queue
	Orchestrator *orchestrator.Orchestrator
	Registry     *prometheus.Registry
}

// Collector aggregates the pipeline's counters for both the JSON
// endpoint and Prometheus scraping.
type Collector struct {
	q         *queue.Queue
	orch      *orchestrator.Orchestrator
	sampler   *processSampler
	startedAt time.Time
	registry  *prometheus.Registry
}

// New constructs a Collector and registers its Prometheus collectors
// against registry (or a fresh one if registry is nil).
func New(cfg Config) *Collector {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		q:         cfg.Queue,
		orch:      cfg.Orchestrator,
		sampler:   newProcessSampler(),
		startedAt: time.Now(),
		registry:  reg,
	}
	c.registerCollectors()
	return c
}

// Registry returns the Prometheus registry Collector registered against,
// for wiring into promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Snapshot is the JSON shape served by GET /metrics.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	QueueSize       int   `json:"queue_size"`
	QueueCapacity   int   `json:"queue_capacity"`
	QueueAccepted   int64 `json:"queue_accepted"`
	QueueOverflowed int64 `json:"queue_overflowed"`
	QueueDropped    int64 `json:"queue_dropped"`
	QueueRefilled   int64 `json:"queue_refilled"`

	EventsProcessed int64 `json:"events_processed"`
	EventsFlushed   int64 `json:"events_flushed"`
	EventsDropped   int64 `json:"events_dropped"`
	NormalizeErrors int64 `json:"normalize_errors"`
	FlushErrors     int64 `json:"flush_errors"`
	Retries         int64 `json:"retries"`

	ProcessCPUPercent    float64 `json:"process_cpu_percent"`
	ProcessMemoryInuseMB float64 `json:"process_memory_inuse_mb"`
}

// Snapshot gathers a point-in-time view of every counter.
func (c *Collector) Snapshot() Snapshot {
	qs := c.q.Stats()
	os := c.orch.Stats()

	return Snapshot{
		UptimeSeconds: time.Since(c.startedAt).Seconds(),

		QueueSize:       c.q.Size(),
		QueueCapacity:   c.q.Capacity(),
		QueueAccepted:   qs.Accepted.Load(),
		QueueOverflowed: qs.Overflowed.Load(),
		QueueDropped:    qs.Dropped.Load(),
		QueueRefilled:   qs.Refilled.Load(),

		EventsProcessed: os.EventsProcessed.Load(),
		EventsFlushed:   os.EventsFlushed.Load(),
		EventsDropped:   os.EventsDropped.Load(),
		NormalizeErrors: os.NormalizeErrors.Load(),
		FlushErrors:     os.FlushErrors.Load(),
		Retries:         os.Retries.Load(),

		ProcessCPUPercent:    c.sampler.cpuPercent(),
		ProcessMemoryInuseMB: float64(memoryInuseBytes()) / (1024 * 1024),
	}
}

// registerCollectors wires live counter reads into Prometheus
// CounterFunc/GaugeFunc collectors, so the /metrics/prom endpoint always
// reflects the current state without a separate update path.
func (c *Collector) registerCollectors() {
	namespace := "secureingest"

	counter := func(name, help string, fn func() float64) {
		c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, fn))
	}
	gauge := func(name, help string, fn func() float64) {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help,
		}, fn))
	}

	gauge("queue_size", "Current combined in-memory and durable queue size.", func() float64 {
		return float64(c.q.Size())
	})
	counter("queue_accepted_total", "Items accepted into the queue.", func() float64 {
		return float64(c.q.Stats().Accepted.Load())
	})
	counter("queue_overflowed_total", "Items spilled to the durable buffer.", func() float64 {
		return float64(c.q.Stats().Overflowed.Load())
	})
	counter("queue_dropped_total", "Items dropped by the queue.", func() float64 {
		return float64(c.q.Stats().Dropped.Load())
	})
	counter("events_processed_total", "Events successfully normalized and enriched.", func() float64 {
		return float64(c.orch.Stats().EventsProcessed.Load())
	})
	counter("events_flushed_total", "Events durably written to storage.", func() float64 {
		return float64(c.orch.Stats().EventsFlushed.Load())
	})
	counter("events_dropped_total", "Events dropped after exhausting retries.", func() float64 {
		return float64(c.orch.Stats().EventsDropped.Load())
	})
	counter("flush_errors_total", "Storage flush attempts that failed.", func() float64 {
		return float64(c.orch.Stats().FlushErrors.Load())
	})
	gauge("process_cpu_percent", "Process CPU usage percent since last sample.", func() float64 {
		return c.sampler.cpuPercent()
	})
	gauge("process_memory_inuse_bytes", "Heap+stack memory actively in use.", func() float64 {
		return float64(memoryInuseBytes())
	})
}
