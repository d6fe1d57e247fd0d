package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"secureingest/internal/auth"
	"secureingest/internal/enrich"
	"secureingest/internal/orchestrator"
	"secureingest/internal/queue"
	"secureingest/internal/ratelimit"
	"secureingest/internal/storage"
	"secureingest/internal/telemetry"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	q, err := queue.New(queue.Config{MaxMemorySize: 10, DiskBufferPath: t.TempDir() + "/q.db"})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	writer, err := storage.NewWriter(storage.WriterConfig{Backend: backend})
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Config{
		Queue: q, Enricher: enrich.New(enrich.Config{}), Writer: writer, NumWorkers: 1,
	})
	require.NoError(t, err)

	collector := telemetry.New(telemetry.Config{Queue: q, Orchestrator: orch})

	signingKey := []byte("test-signing-key")
	authenticator := auth.New(auth.Config{SigningKey: signingKey, AllowedKeyIDs: []string{"test-key"}})
	limiter := ratelimit.New(1000)

	srv := New(Config{
		Queue:         q,
		Collector:     collector,
		Authenticator: authenticator,
		Limiter:       limiter,
	})

	token := jwt.New(jwt.SigningMethodHS256)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(signingKey)
	require.NoError(t, err)

	return srv, signed
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleIngestSingle_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ingest/api_access", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func apiAccessRecord() map[string]any {
	return map[string]any{
		"endpoint":    "/v1/x",
		"method":      "GET",
		"status_code": float64(200),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
}

func TestHandleIngestSingle_AcceptsValidRecord(t *testing.T) {
	srv, token := newTestServer(t)
	body, _ := json.Marshal(apiAccessRecord())
	req := httptest.NewRequest(http.MethodPost, "/ingest/api_access", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "accepted", resp["status"])
	require.NotEmpty(t, resp["ingestion_id"])
}

func TestHandleIngestSingle_RejectsUnknownSource(t *testing.T) {
	srv, token := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ingest/not_a_source", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIngestSingle_RejectsSchemaViolation(t *testing.T) {
	srv, token := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ingest/api_access", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleIngestBatch_ReturnsMultiStatus(t *testing.T) {
	srv, token := newTestServer(t)
	records := []map[string]any{apiAccessRecord(), {}}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/ingest/batch?source_type=api_access", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	var resp batchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 1, resp.Accepted)
	require.Equal(t, 1, resp.Rejected)
}

func TestHandleIngestBatch_RejectsOversizedBatch(t *testing.T) {
	srv, token := newTestServer(t)
	records := make([]map[string]any, 1001)
	for i := range records {
		records[i] = apiAccessRecord()
	}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/ingest/batch?source_type=api_access", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleIngestSingle_RateLimited(t *testing.T) {
	srv, token := newTestServer(t)
	srv.limiter = ratelimit.New(1) // 1/min, burst 1

	body, _ := json.Marshal(apiAccessRecord())

	req1 := httptest.NewRequest(http.MethodPost, "/ingest/api_access", bytes.NewReader(body))
	req1.Header.Set("Authorization", "Bearer "+token)
	w1 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w1, req1)
	require.Equal(t, http.StatusAccepted, w1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/ingest/api_access", bytes.NewReader(body))
	req2.Header.Set("Authorization", "Bearer "+token)
	w2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w2, req2)
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
}
