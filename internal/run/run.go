package run

import (
	"sync"
	"time"

	"github.com/dgallion1/formforge/internal/builder"
)

// Status represents the state of one bounded build run.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusRunning     Status = "running"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Run tracks the state of a single bounded builder invocation.
type Run struct {
	mu sync.Mutex

	ID     string `json:"run_id"`
	Source string `json:"source"`

	Status Status        `json:"status"`
	Stats  builder.Stats `json:"stats"`
	Error  string        `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.UpdatedAt = time.Now()
}

// Finish records the outcome of a run.
func (r *Run) Finish(outcome builder.Outcome, stats builder.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outcome == builder.OutcomeInterrupted {
		r.Status = StatusInterrupted
	} else {
		r.Status = StatusCompleted
	}
	r.Stats = stats
	r.UpdatedAt = time.Now()
}

// Fail records a fatal error.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusFailed
	r.Error = err.Error()
	r.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of run state.
type Snapshot struct {
	ID        string        `json:"run_id"`
	Source    string        `json:"source"`
	Status    Status        `json:"status"`
	Stats     builder.Stats `json:"stats"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:        r.ID,
		Source:    r.Source,
		Status:    r.Status,
		Stats:     r.Stats,
		Error:     r.Error,
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// Store is a thread-safe in-memory run registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{runs: make(map[string]*Run), ttl: ttl}
}

func (s *Store) Put(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

func (s *Store) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes expired runs.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, r := range s.runs {
		if now.Sub(r.UpdatedAt) > s.ttl {
			delete(s.runs, id)
		}
	}
}
