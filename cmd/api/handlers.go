package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/MedQueryAI/medquery-mvp/engine/ingest"
	"github.com/MedQueryAI/medquery-mvp/engine/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// queryEngine answers user questions.
type queryEngine interface {
	Query(ctx context.Context, query string) domain.Answer
}

// ingestRunner runs one ingestion job over a directory.
type ingestRunner interface {
	ProcessAndIndex(ctx context.Context, dir string) (ingest.Stats, error)
}

// server holds the HTTP handlers and the engines they dispatch to. The
// engines are nil until background initialization completes; handlers gate
// on the lifecycle handle before touching them.
type server struct {
	log     *slog.Logger
	handle  *state.Handle
	tracker *state.JobTracker
	dataDir string

	mu       sync.RWMutex
	engine   queryEngine
	ingestor ingestRunner
}

func newServer(log *slog.Logger, dataDir string) *server {
	return &server{
		log:     log,
		handle:  state.NewHandle(),
		tracker: state.NewJobTracker(),
		dataDir: dataDir,
	}
}

func (s *server) setEngines(q queryEngine, i ingestRunner) {
	s.mu.Lock()
	s.engine, s.ingestor = q, i
	s.mu.Unlock()
}

func (s *server) engines() (queryEngine, ingestRunner) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.ingestor
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/ingest/status", s.handleIngestStatus)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports engine readiness: 202 while initializing, 200 once
// ready, 500 if initialization failed.
func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	phase, err := s.handle.Phase()
	switch phase {
	case state.PhaseReady:
		writeJSON(w, http.StatusOK, map[string]string{"status": phase.String()})
	case state.PhaseFailed:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": phase.String(),
			"error":  err.Error(),
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "initializing"})
	}
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Query string `json:"query"`
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if phase, _ := s.handle.Phase(); phase != state.PhaseReady {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "engine is initializing, try again shortly",
		})
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := domain.ValidateQuery(req.Query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	engine, _ := s.engines()
	answer := engine.Query(r.Context(), strings.TrimSpace(req.Query))
	writeJSON(w, http.StatusOK, answer)
}

// IngestRequest is the JSON body for POST /api/ingest. Directory defaults
// to the configured data directory.
type IngestRequest struct {
	Directory string `json:"directory"`
}

// handleIngest starts an ingestion job and returns immediately; progress is
// polled via /api/ingest/status.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if phase, _ := s.handle.Phase(); phase != state.PhaseReady {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "engine is initializing, try again shortly",
		})
		return
	}

	var req IngestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	dir := req.Directory
	if dir == "" {
		dir = s.dataDir
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("directory %q not found", dir),
		})
		return
	}

	if err := s.tracker.Start(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	_, ingestor := s.engines()
	go func() {
		stats, err := ingestor.ProcessAndIndex(context.Background(), dir)
		if err != nil {
			s.tracker.Fail(err)
			s.log.Error("ingest: job failed", "error", err, "directory", dir)
			return
		}
		s.tracker.Finish(stats.Documents, stats.Chunks)
		s.log.Info("ingest: job complete", "directory", dir,
			"documents", stats.Documents, "chunks", stats.Chunks)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"state": "running", "directory": dir})
}

func (s *server) handleIngestStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}
