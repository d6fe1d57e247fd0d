package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"secureingest/internal/schema"

	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxMem int, strategy OverflowStrategy) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overflow.db")
	q, err := New(Config{
		MaxMemorySize:    maxMem,
		DiskBufferPath:   path,
		OverflowStrategy: strategy,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func item(id string) schema.QueuedItem {
	return schema.QueuedItem{
		SourceType:         schema.SourceAPIAccess,
		Fields:             map[string]any{"n": id},
		IngestionTimestamp: time.Now().UTC(),
		IngestionID:        id,
	}
}

func TestEnqueueDequeue_FIFO(t *testing.T) {
	q := newTestQueue(t, 10, OverflowDrop)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		outcome, err := q.Enqueue(ctx, item(id), time.Second)
		require.NoError(t, err)
		require.Equal(t, Accepted, outcome)
	}

	for _, want := range []string{"1", "2", "3"} {
		got, ok, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, got.IngestionID)
	}
}

func TestDequeue_EmptyTimesOut(t *testing.T) {
	q := newTestQueue(t, 10, OverflowDrop)
	_, ok, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverflow_Drop(t *testing.T) {
	q := newTestQueue(t, 2, OverflowDrop)
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		outcome, err := q.Enqueue(ctx, item(id), time.Second)
		require.NoError(t, err)
		require.Equal(t, Accepted, outcome)
	}

	outcome, err := q.Enqueue(ctx, item("3"), time.Second)
	require.NoError(t, err)
	require.Equal(t, Dropped, outcome)
	require.EqualValues(t, 1, q.Stats().Dropped.Load())
}

func TestOverflow_DiskThenDrain(t *testing.T) {
	q := newTestQueue(t, 2, OverflowDisk)
	ctx := context.Background()

	ids := []string{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		_, err := q.Enqueue(ctx, item(id), time.Second)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, q.Stats().Overflowed.Load())
	require.Equal(t, len(ids), q.Size())

	seen := make(map[string]bool)
	for len(seen) < len(ids) {
		got, ok, err := q.Dequeue(ctx, 200*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		require.False(t, seen[got.IngestionID], "duplicate delivery of %s", got.IngestionID)
		seen[got.IngestionID] = true
	}

	require.Equal(t, 0, q.Size())
	require.EqualValues(t, 0, q.Stats().Dropped.Load())
}

func TestSizeCombinesMemoryAndDurable(t *testing.T) {
	q := newTestQueue(t, 1, OverflowDisk)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, item("1"), time.Second)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, item("2"), time.Second)
	require.NoError(t, err)

	require.Equal(t, 2, q.Size())
	require.Equal(t, 1, q.MemorySize())
}
