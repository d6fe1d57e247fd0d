// Package server exposes the HTTP ingress of spec.md §6: health,
// metrics, and single/batch event ingestion, behind an auth -> rate
// limit -> handler middleware chain. Routing follows gastrolog's own
// receiver/http package (method+path pattern mux, context-scoped
// shutdown).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"secureingest/internal/auth"
	"secureingest/internal/logging"
	"secureingest/internal/queue"
	"secureingest/internal/ratelimit"
	"secureingest/internal/schema"
	"secureingest/internal/telemetry"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBatchRecords = 1000

// Config configures a Server.
type Config struct {
	Addr           string
	Queue          *queue.Queue
	Collector      *telemetry.Collector
	Authenticator  *auth.Authenticator
	Limiter        *ratelimit.Limiter
	EnqueueTimeout time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// Server is the HTTP ingress.
type Server struct {
	addr           string
	queue          *queue.Queue
	collector      *telemetry.Collector
	authenticator  *auth.Authenticator
	limiter        *ratelimit.Limiter
	enqueueTimeout time.Duration
	now            func() time.Time
	startedAt      time.Time

	listener net.Listener
	http     *http.Server
	logger   *slog.Logger
}

// New constructs a Server.
func New(cfg Config) *Server {
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		addr:           cfg.Addr,
		queue:          cfg.Queue,
		collector:      cfg.Collector,
		authenticator:  cfg.Authenticator,
		limiter:        cfg.Limiter,
		enqueueTimeout: cfg.EnqueueTimeout,
		now:            cfg.Now,
		startedAt:      cfg.Now(),
		logger:         logging.Default(cfg.Logger).With("component", "server"),
	}
}

// Handler builds the routed mux. Exposed separately from Run so tests
// can exercise routes with httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetricsJSON)
	mux.Handle("GET /metrics/prom", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /ingest/batch", s.withMiddleware(s.handleIngestBatch))
	mux.HandleFunc("POST /ingest/{source}", s.withMiddleware(s.handleIngestSingle))
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{Handler: s.Handler()}

	var err error
	s.listener, err = net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("server starting", "addr", s.listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Addr returns the listener address. Only valid after Run has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// withMiddleware applies the auth -> rate-limit chain ahead of next.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyID, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		if s.limiter != nil && !s.limiter.Allow(keyID) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "rate_limited"})
			return
		}
		next(w, r)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.authenticator == nil {
		return "anonymous", true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "unauthorized"})
		return "", false
	}
	keyID, err := s.authenticator.Validate(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "unauthorized"})
		return "", false
	}
	return keyID, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime_seconds":  s.now().Sub(s.startedAt).Seconds(),
		"queue": map[string]int{
			"size":     s.queue.Size(),
			"max_size": s.queue.Capacity(),
		},
	})
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

// handleIngestSingle handles POST /ingest/{source}.
func (s *Server) handleIngestSingle(w http.ResponseWriter, r *http.Request) {
	source := schema.SourceType(r.PathValue("source"))
	if !source.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "unknown_source"})
		return
	}

	fields, err := decodeRecord(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "bad_request", "error": err.Error()})
		return
	}

	raw := schema.RawRecord{SourceType: source, Fields: fields}
	if err := schema.Validate(raw); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"status": "schema_violation", "error": err.Error()})
		return
	}

	ingestionID := uuid.Must(uuid.NewV7()).String()
	item := schema.QueuedItem{
		SourceType:         source,
		Fields:             fields,
		IngestionTimestamp: s.now().UTC(),
		IngestionID:        ingestionID,
	}

	outcome, err := s.queue.Enqueue(r.Context(), item, s.enqueueTimeout)
	if err != nil || outcome == queue.Dropped {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "queue_full"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"ingestion_id": ingestionID,
		"source_type":  string(source),
	})
}

// handleIngestBatch handles POST /ingest/batch?source_type=<source>.
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	source := schema.SourceType(r.URL.Query().Get("source_type"))
	if !source.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "unknown_source"})
		return
	}

	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "bad_request", "error": err.Error()})
		return
	}
	if len(records) > maxBatchRecords {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"status": "batch_too_large"})
		return
	}

	result := batchResult{Total: len(records)}
	for i, fields := range records {
		raw := schema.RawRecord{SourceType: source, Fields: fields}
		if err := schema.Validate(raw); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, batchError{Index: i, Error: err.Error()})
			continue
		}

		item := schema.QueuedItem{
			SourceType:         source,
			Fields:             fields,
			IngestionTimestamp: s.now().UTC(),
			IngestionID:        uuid.Must(uuid.NewV7()).String(),
		}
		outcome, err := s.queue.Enqueue(r.Context(), item, s.enqueueTimeout)
		if err != nil || outcome == queue.Dropped {
			result.Rejected++
			result.Errors = append(result.Errors, batchError{Index: i, Error: "queue_full"})
			continue
		}
		result.Accepted++
	}

	writeJSON(w, http.StatusMultiStatus, result)
}

type batchResult struct {
	Total    int         `json:"total"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
	Errors   []batchError `json:"errors"`
}

type batchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func decodeRecord(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
