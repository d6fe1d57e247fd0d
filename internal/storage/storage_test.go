package storage

import (
	"context"
	"testing"
	"time"

	"secureingest/internal/schema"

	"github.com/stretchr/testify/require"
)

func testEvent(ts time.Time, source schema.SourceType, entityID string) schema.UnifiedEvent {
	e := schema.UnifiedEvent{
		EntityID:     entityID,
		EntityType:   schema.EntityUser,
		EventType:    schema.EventAPICall,
		EventSubtype: "test",
		Timestamp:    ts,
		Success:      true,
		Resource:     schema.Resource{Type: "api_endpoint", Endpoint: "/v1/x"},
		Temporal:     schema.DeriveTemporal(ts),
		SourceSystem: source,
		RawEventID:   "raw-" + entityID,
	}
	return e
}

func TestWriter_PartitionsByDateHourSource(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalBackend(dir)
	require.NoError(t, err)
	w, err := NewWriter(WriterConfig{Backend: backend})
	require.NoError(t, err)

	t1 := time.Date(2026, 1, 10, 3, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 10, 4, 0, 0, 0, time.UTC)
	events := []schema.UnifiedEvent{
		testEvent(t1, schema.SourceAPIAccess, "a"),
		testEvent(t2, schema.SourceAPIAccess, "b"),
		testEvent(t1, schema.SourceCloudAudit, "c"),
	}

	require.NoError(t, w.Write(context.Background(), events))

	objs, err := backend.List(context.Background(), "hot/")
	require.NoError(t, err)
	require.Len(t, objs, 3, "each distinct (date,hour,source) triple gets its own partition file")
}

func TestWriter_MergeOnExists(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalBackend(dir)
	require.NoError(t, err)
	w, err := NewWriter(WriterConfig{Backend: backend})
	require.NoError(t, err)

	ts := time.Date(2026, 1, 10, 3, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, []schema.UnifiedEvent{testEvent(ts, schema.SourceAPIAccess, "a")}))
	require.NoError(t, w.Write(ctx, []schema.UnifiedEvent{testEvent(ts, schema.SourceAPIAccess, "b")}))

	key := partitionKey(Hot, "2026-01-10", 3, schema.SourceAPIAccess)
	blob, err := backend.Get(ctx, key)
	require.NoError(t, err)
	raw, err := decompress(blob)
	require.NoError(t, err)
	tbl, err := decodeTable(raw)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len(), "second write merges into the existing partition instead of overwriting it")
	require.ElementsMatch(t, []string{"a", "b"}, tbl.EntityID)
}

func TestReaderWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalBackend(dir)
	require.NoError(t, err)
	w, err := NewWriter(WriterConfig{Backend: backend})
	require.NoError(t, err)
	r, err := NewReader(ReaderConfig{Backend: backend})
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-1 * time.Hour)
	events := []schema.UnifiedEvent{
		testEvent(ts, schema.SourceAPIAccess, "a"),
		testEvent(ts, schema.SourceCloudAudit, "b"),
	}
	require.NoError(t, w.Write(ctx, events))

	got, err := r.Read(ctx, now.Add(-2*time.Hour), now, nil, now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	src := schema.SourceAPIAccess
	got, err = r.Read(ctx, now.Add(-2*time.Hour), now, &src, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].EntityID)
}

func TestTiersForRange_SelectsExpectedTiers(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	r := DefaultRetention

	recent := now.Add(-1 * time.Hour)
	tiers := tiersForRange(recent, recent, now, r)
	require.Equal(t, []Tier{Hot}, tiers)

	warmOnly := now.Add(-20 * 24 * time.Hour)
	tiers = tiersForRange(warmOnly, warmOnly, now, r)
	require.Equal(t, []Tier{Warm}, tiers)

	coldOnly := now.Add(-100 * 24 * time.Hour)
	tiers = tiersForRange(coldOnly, coldOnly, now, r)
	require.Equal(t, []Tier{Cold}, tiers)

	spanning := now.Add(-100 * 24 * time.Hour)
	tiers = tiersForRange(spanning, now, now, r)
	require.Equal(t, []Tier{Hot, Warm, Cold}, tiers)
}

func TestLifecycle_MigratesHotToWarmToCold(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalBackend(dir)
	require.NoError(t, err)
	w, err := NewWriter(WriterConfig{Backend: backend})
	require.NoError(t, err)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	oldTs := now.Add(-40 * 24 * time.Hour) // older than hot and warm retention
	ctx := context.Background()
	require.NoError(t, w.Write(ctx, []schema.UnifiedEvent{testEvent(oldTs, schema.SourceAPIAccess, "a")}))

	lc := NewLifecycle(LifecycleConfig{Backend: backend, Retention: DefaultRetention})
	require.NoError(t, lc.Run(ctx, now))

	hotKey := partitionKey(Hot, oldTs.Format("2006-01-02"), oldTs.Hour(), schema.SourceAPIAccess)
	_, err = backend.Get(ctx, hotKey)
	require.ErrorIs(t, err, ErrNotExist, "migrated partition must no longer exist in the hot tier")

	coldKey := partitionKey(Cold, oldTs.Format("2006-01-02"), oldTs.Hour(), schema.SourceAPIAccess)
	blob, err := backend.Get(ctx, coldKey)
	require.NoError(t, err, "partition should have migrated all the way to cold in one pass")
	raw, err := decompress(blob)
	require.NoError(t, err)
	tbl, err := decodeTable(raw)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
}

func TestLifecycle_ExpiresColdPastRetention(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewLocalBackend(dir)
	require.NoError(t, err)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	veryOldTs := now.Add(-400 * 24 * time.Hour)
	key := partitionKey(Cold, veryOldTs.Format("2006-01-02"), veryOldTs.Hour(), schema.SourceAPIAccess)

	raw, err := encodeTable(toTable([]schema.UnifiedEvent{testEvent(veryOldTs, schema.SourceAPIAccess, "a")}))
	require.NoError(t, err)
	blob, err := compress(Cold, raw)
	require.NoError(t, err)
	require.NoError(t, backend.Put(context.Background(), key, blob))

	lc := NewLifecycle(LifecycleConfig{Backend: backend, Retention: DefaultRetention})
	require.NoError(t, lc.Run(context.Background(), now))

	_, err = backend.Get(context.Background(), key)
	require.ErrorIs(t, err, ErrNotExist, "cold partitions past cold retention must be deleted")
}
