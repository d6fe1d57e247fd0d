package orchestrator

import (
	"context"
	"testing"
	"time"

	"secureingest/internal/enrich"
	"secureingest/internal/queue"
	"secureingest/internal/schema"
	"secureingest/internal/storage"

	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, batchSize, maxRetries int) (*Orchestrator, *queue.Queue, storage.Backend) {
	t.Helper()

	q, err := queue.New(queue.Config{
		MaxMemorySize:    100,
		DiskBufferPath:   t.TempDir() + "/queue.db",
		OverflowStrategy: queue.OverflowDrop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	writer, err := storage.NewWriter(storage.WriterConfig{Backend: backend})
	require.NoError(t, err)

	enricher := enrich.New(enrich.Config{})

	o, err := New(Config{
		Queue:               q,
		Enricher:            enricher,
		Writer:              writer,
		NumWorkers:          1,
		BatchSize:           batchSize,
		BatchTimeoutSeconds: 3600,
		MaxRetries:          maxRetries,
		DequeueTimeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)
	return o, q, backend
}

func identitySigninItem(id string) schema.QueuedItem {
	return schema.QueuedItem{
		SourceType: schema.SourceIdentitySignin,
		Fields: map[string]any{
			"user_principal_name": "alice@example.com",
			"ip_address":          "192.168.1.50",
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
			"status":              map[string]any{"error_code": float64(0)},
		},
		IngestionTimestamp: time.Now().UTC(),
		IngestionID:        id,
	}
}

func TestOrchestrator_BatchFlushesOnSize(t *testing.T) {
	o, q, backend := newTestOrchestrator(t, 2, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Start(ctx)

	_, err := q.Enqueue(ctx, identitySigninItem("a"), time.Second)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, identitySigninItem("b"), time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return o.Stats().EventsFlushed.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)

	objs, err := backend.List(ctx, "hot/")
	require.NoError(t, err)
	require.NotEmpty(t, objs)

	require.NoError(t, o.Shutdown(context.Background()))
}

func TestOrchestrator_DropsPermanentNormalizationErrorWithoutRetry(t *testing.T) {
	o, q, _ := newTestOrchestrator(t, 100, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.Start(ctx)

	bad := schema.QueuedItem{
		SourceType:         schema.SourceIdentitySignin,
		Fields:              map[string]any{}, // missing required fields
		IngestionTimestamp:  time.Now().UTC(),
		IngestionID:         "bad-1",
	}
	_, err := q.Enqueue(ctx, bad, time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return o.Stats().EventsDropped.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, int64(0), o.Stats().Retries.Load(), "a schema violation is deterministic and must not be retried")

	require.NoError(t, o.Shutdown(context.Background()))
}

func TestOrchestrator_ShutdownFlushesRemainder(t *testing.T) {
	o, q, backend := newTestOrchestrator(t, 1000, 0)
	ctx := context.Background()

	o.Start(ctx)

	_, err := q.Enqueue(ctx, identitySigninItem("a"), time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return o.Stats().EventsProcessed.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, o.Shutdown(context.Background()))

	objs, err := backend.List(context.Background(), "hot/")
	require.NoError(t, err)
	require.NotEmpty(t, objs, "shutdown must flush the partial batch rather than drop it")
}
