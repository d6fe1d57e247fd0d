package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"secureingest/internal/logging"
	"secureingest/internal/schema"
)

// WriterConfig configures a Writer.
type WriterConfig struct {
	Backend Backend
	Logger  *slog.Logger
}

// Writer appends unified events into tiered, compressed columnar
// partition files keyed by (date, hour, source_system), merging into
// any partition that already exists (spec.md §4.4, "merge-on-exists").
//
// New events always land in the hot tier; Lifecycle moves them to
// warm/cold as they age.
type Writer struct {
	backend Backend
	logger  *slog.Logger
}

// NewWriter constructs a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Backend == nil {
		return nil, errors.New("storage: writer requires a backend")
	}
	return &Writer{
		backend: cfg.Backend,
		logger:  logging.Default(cfg.Logger).With("component", "storage.writer"),
	}, nil
}

// Write partitions events by (date, hour, source_system) and persists
// each partition to the hot tier, merging with whatever rows already
// occupy that partition's key.
func (w *Writer) Write(ctx context.Context, events []schema.UnifiedEvent) error {
	if len(events) == 0 {
		return nil
	}

	groups := groupByPartition(events)
	for key, rows := range groups {
		if err := w.writePartition(ctx, key, rows); err != nil {
			return fmt.Errorf("storage: write partition %s: %w", key, err)
		}
	}
	return nil
}

func (w *Writer) writePartition(ctx context.Context, key string, rows []schema.UnifiedEvent) error {
	incoming := toTable(rows)

	existing, err := w.readPartitionTable(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		incoming = appendTable(existing, incoming)
	}

	raw, err := encodeTable(incoming)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	blob, err := compress(Hot, raw)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := w.backend.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	w.logger.Debug("partition written", "key", key, "rows_added", len(rows), "rows_total", incoming.Len())
	return nil
}

// readPartitionTable reads and decodes an existing partition file, or
// returns (nil, nil) if the key does not exist yet.
func (w *Writer) readPartitionTable(ctx context.Context, key string) (*table, error) {
	blob, err := w.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	raw, err := decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	t, err := decodeTable(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return t, nil
}
