// Package state tracks engine readiness and ingestion job progress as
// explicit, concurrency-safe handles. It replaces ambient "initializing/
// ready" flag pairs with a typed lifecycle that handlers receive by
// reference.
package state

import (
	"errors"
	"sync"
	"time"
)

// Phase is the engine lifecycle phase.
type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "error"
	default:
		return "uninitialized"
	}
}

// Handle is the engine lifecycle:
// Uninitialized → Initializing → Ready | Failed.
type Handle struct {
	mu    sync.RWMutex
	phase Phase
	err   error
}

// NewHandle creates an uninitialized Handle.
func NewHandle() *Handle {
	return &Handle{}
}

// Initializing marks initialization as started.
func (h *Handle) Initializing() {
	h.mu.Lock()
	h.phase = PhaseInitializing
	h.err = nil
	h.mu.Unlock()
}

// Ready marks initialization as complete.
func (h *Handle) Ready() {
	h.mu.Lock()
	h.phase = PhaseReady
	h.err = nil
	h.mu.Unlock()
}

// Fail records a terminal initialization failure.
func (h *Handle) Fail(err error) {
	h.mu.Lock()
	h.phase = PhaseFailed
	h.err = err
	h.mu.Unlock()
}

// Phase returns the current phase and, for PhaseFailed, the cause.
func (h *Handle) Phase() (Phase, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase, h.err
}

// JobPhase is the coarse state of the ingestion job.
type JobPhase int32

const (
	JobIdle JobPhase = iota
	JobRunning
	JobDone
	JobFailed
)

func (p JobPhase) String() string {
	switch p {
	case JobRunning:
		return "running"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrJobRunning is returned when an ingestion job is already in flight.
var ErrJobRunning = errors.New("ingestion already running")

// JobStatus is a point-in-time snapshot of the ingestion job, safe to hand
// to any number of concurrent readers.
type JobStatus struct {
	Phase      JobPhase  `json:"-"`
	State      string    `json:"state"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// JobTracker serializes ingestion: one job at a time, with its coarse state
// readable concurrently.
type JobTracker struct {
	mu       sync.RWMutex
	phase    JobPhase
	docs     int
	chunks   int
	err      error
	started  time.Time
	finished time.Time
}

// NewJobTracker creates an idle tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{}
}

// Start claims the tracker for a new job. Returns ErrJobRunning if a job is
// already in flight.
func (t *JobTracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == JobRunning {
		return ErrJobRunning
	}
	t.phase = JobRunning
	t.docs, t.chunks = 0, 0
	t.err = nil
	t.started = time.Now()
	t.finished = time.Time{}
	return nil
}

// Finish records a successful job with its counts.
func (t *JobTracker) Finish(documents, chunks int) {
	t.mu.Lock()
	t.phase = JobDone
	t.docs, t.chunks = documents, chunks
	t.finished = time.Now()
	t.mu.Unlock()
}

// Fail records a failed job.
func (t *JobTracker) Fail(err error) {
	t.mu.Lock()
	t.phase = JobFailed
	t.err = err
	t.finished = time.Now()
	t.mu.Unlock()
}

// Snapshot returns the current job state.
func (t *JobTracker) Snapshot() JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := JobStatus{
		Phase:      t.phase,
		State:      t.phase.String(),
		Documents:  t.docs,
		Chunks:     t.chunks,
		StartedAt:  t.started,
		FinishedAt: t.finished,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}
