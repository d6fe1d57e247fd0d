package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"secureingest/internal/logging"
)

// LifecycleConfig configures a Lifecycle migrator.
type LifecycleConfig struct {
	Backend   Backend
	Retention RetentionConfig
	Logger    *slog.Logger
}

// Lifecycle moves partitions between tiers as they age out of the
// previous tier's retention window, and deletes cold partitions past
// cold retention (spec.md §4.4, "Lifecycle").
//
// A migration is copy-then-delete: the destination object is written
// and confirmed before the source is removed, so a crash mid-migration
// leaves the partition readable from its original tier rather than in a
// half-migrated state.
type Lifecycle struct {
	backend   Backend
	retention RetentionConfig
	logger    *slog.Logger
}

// NewLifecycle constructs a Lifecycle migrator.
func NewLifecycle(cfg LifecycleConfig) *Lifecycle {
	r := cfg.Retention
	if r == (RetentionConfig{}) {
		r = DefaultRetention
	}
	return &Lifecycle{
		backend:   cfg.Backend,
		retention: r,
		logger:    logging.Default(cfg.Logger).With("component", "storage.lifecycle"),
	}
}

// Run performs one migration pass: hot partitions older than
// HotRetention move to warm, warm partitions older than WarmRetention
// move to cold, and cold partitions older than ColdRetention are
// deleted outright. now is the instant ages are measured against.
func (l *Lifecycle) Run(ctx context.Context, now time.Time) error {
	if err := l.migrateTier(ctx, Hot, Warm, now.Add(-l.retention.HotRetention)); err != nil {
		return fmt.Errorf("storage: lifecycle hot->warm: %w", err)
	}
	if err := l.migrateTier(ctx, Warm, Cold, now.Add(-l.retention.WarmRetention)); err != nil {
		return fmt.Errorf("storage: lifecycle warm->cold: %w", err)
	}
	if err := l.expireTier(ctx, Cold, now.Add(-l.retention.ColdRetention)); err != nil {
		return fmt.Errorf("storage: lifecycle cold expiry: %w", err)
	}
	return nil
}

func (l *Lifecycle) migrateTier(ctx context.Context, from, to Tier, cutoff time.Time) error {
	objects, err := l.backend.List(ctx, string(from)+"/")
	if err != nil {
		return err
	}

	for _, obj := range objects {
		date, ok := dateFromKey(obj.Key)
		if !ok || !date.Before(cutoff) {
			continue
		}

		dst := strings.Replace(obj.Key, string(from)+"/", string(to)+"/", 1)
		if err := l.migrateOne(ctx, obj.Key, dst, from, to); err != nil {
			return err
		}
	}
	return nil
}

// migrateOne moves a single partition, recompressing it for the
// destination tier's codec (cold uses a higher-ratio codec than
// hot/warm) rather than copying the compressed bytes verbatim.
func (l *Lifecycle) migrateOne(ctx context.Context, src, dst string, from, to Tier) error {
	blob, err := l.backend.Get(ctx, src)
	if err != nil {
		return fmt.Errorf("get %s: %w", src, err)
	}
	raw, err := decompress(blob)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	recompressed, err := compress(to, raw)
	if err != nil {
		return fmt.Errorf("recompress %s: %w", dst, err)
	}
	if err := l.backend.Put(ctx, dst, recompressed); err != nil {
		return fmt.Errorf("put %s: %w", dst, err)
	}
	if err := l.backend.Delete(ctx, src); err != nil {
		return fmt.Errorf("delete %s: %w", src, err)
	}

	l.logger.Info("partition migrated", "from", from, "to", to, "src", src, "dst", dst)
	return nil
}

func (l *Lifecycle) expireTier(ctx context.Context, tier Tier, cutoff time.Time) error {
	objects, err := l.backend.List(ctx, string(tier)+"/")
	if err != nil {
		return err
	}
	for _, obj := range objects {
		date, ok := dateFromKey(obj.Key)
		if !ok || !date.Before(cutoff) {
			continue
		}
		if err := l.backend.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %s: %w", obj.Key, err)
		}
		l.logger.Info("partition expired", "tier", tier, "key", obj.Key)
	}
	return nil
}

// dateFromKey extracts the partition date from a key of the shape
// "<tier>/date=<YYYY-MM-DD>/hour=<HH>/source=<source>/events.mpz".
func dateFromKey(key string) (time.Time, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", strings.TrimPrefix(parts[1], "date="))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
