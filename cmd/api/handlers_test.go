package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MedQueryAI/medquery-mvp/engine/domain"
	"github.com/MedQueryAI/medquery-mvp/engine/ingest"
	"github.com/MedQueryAI/medquery-mvp/engine/rag"
	"github.com/MedQueryAI/medquery-mvp/engine/state"
)

type stubQueryEngine struct {
	answer domain.Answer
	query  string
}

func (s *stubQueryEngine) Query(_ context.Context, query string) domain.Answer {
	s.query = query
	return s.answer
}

type stubIngestor struct {
	stats   ingest.Stats
	err     error
	block   chan struct{} // when set, ProcessAndIndex waits on it
	started chan struct{} // when set, closed once ProcessAndIndex begins
	once    sync.Once
}

func (s *stubIngestor) ProcessAndIndex(context.Context, string) (ingest.Stats, error) {
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.block != nil {
		<-s.block
	}
	return s.stats, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func readyServer(t *testing.T, q queryEngine, i ingestRunner) *server {
	t.Helper()
	s := newServer(discardLogger(), t.TempDir())
	s.setEngines(q, i)
	s.handle.Ready()
	return s
}

func TestStatus_LifecyclePhases(t *testing.T) {
	s := newServer(discardLogger(), "data")

	cases := []struct {
		name string
		prep func()
		code int
		want string
	}{
		{"uninitialized", func() {}, http.StatusAccepted, "initializing"},
		{"initializing", s.handle.Initializing, http.StatusAccepted, "initializing"},
		{"ready", s.handle.Ready, http.StatusOK, "ready"},
		{"failed", func() { s.handle.Fail(errors.New("qdrant unreachable")) }, http.StatusInternalServerError, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.prep()
			rec := httptest.NewRecorder()
			s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tc.want {
				t.Errorf("status field = %q, want %q", body["status"], tc.want)
			}
		})
	}
}

func TestQuery_BeforeReadyReturns503(t *testing.T) {
	s := newServer(discardLogger(), "data")
	s.handle.Initializing()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"what is aspirin"}`))
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestQuery_ValidationRejected(t *testing.T) {
	engine := &stubQueryEngine{}
	s := readyServer(t, engine, &stubIngestor{})

	for _, body := range []string{`{"query":""}`, `{"query":"  hi "}`, `not json`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
		s.routes().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if engine.query != "" {
		t.Error("engine must not be called for rejected queries")
	}
}

func TestQuery_ReturnsAnswerWithSources(t *testing.T) {
	engine := &stubQueryEngine{answer: domain.Answer{
		Text:    "Aspirin reduces fever.",
		Sources: []string{"drugA.pdf"},
	}}
	s := readyServer(t, engine, &stubIngestor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"  what is aspirin  "}`))
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var answer domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Text != "Aspirin reduces fever." || len(answer.Sources) != 1 {
		t.Errorf("unexpected answer %+v", answer)
	}
	if engine.query != "what is aspirin" {
		t.Errorf("query must be trimmed, engine saw %q", engine.query)
	}
}

func TestQuery_DegradedAnswerIsStill200(t *testing.T) {
	engine := &stubQueryEngine{answer: domain.Answer{
		Text:    rag.NoContextMessage,
		Sources: []string{},
	}}
	s := readyServer(t, engine, &stubIngestor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"what is aspirin"}`))
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("degraded answers ride a 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("sources must serialize as an empty array: %s", rec.Body)
	}
}

func TestIngest_FireAndForget(t *testing.T) {
	ing := &stubIngestor{stats: ingest.Stats{Documents: 2, Chunks: 10}, started: make(chan struct{})}
	s := readyServer(t, &stubQueryEngine{}, ing)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	<-ing.started
}

func TestIngest_MissingDirectoryReturns400(t *testing.T) {
	ing := &stubIngestor{started: make(chan struct{})}
	s := readyServer(t, &stubQueryEngine{}, ing)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(`{"directory":"/no/such/corpus"}`))
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	select {
	case <-ing.started:
		t.Fatal("no job must start for a missing directory")
	default:
	}
	if s.tracker.Snapshot().Phase != state.JobIdle {
		t.Error("tracker must stay idle for a rejected request")
	}
}

func TestIngest_SecondJobConflicts(t *testing.T) {
	ing := &stubIngestor{block: make(chan struct{}), started: make(chan struct{})}
	s := readyServer(t, &stubQueryEngine{}, ing)

	first := httptest.NewRecorder()
	s.routes().ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first job: status = %d", first.Code)
	}
	<-ing.started

	second := httptest.NewRecorder()
	s.routes().ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	if second.Code != http.StatusConflict {
		t.Fatalf("second job: status = %d, want 409", second.Code)
	}
	close(ing.block)
}

func TestIngestStatus_ReportsTracker(t *testing.T) {
	s := readyServer(t, &stubQueryEngine{}, &stubIngestor{})
	s.tracker.Start()
	s.tracker.Finish(3, 250)

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ingest/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "done" || body["documents"] != float64(3) || body["chunks"] != float64(250) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealth(t *testing.T) {
	s := newServer(discardLogger(), "data")

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
