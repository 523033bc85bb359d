package daemon

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/render"
	"slidecast/internal/services"
)

// Job lifecycle states.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// JobRecord tracks one submitted render from acceptance to its terminal
// state. Records live only in memory; restarting the daemon forgets them.
type JobRecord struct {
	ID         string         `json:"id"`
	SlideID    string         `json:"slide_id"`
	Status     JobStatus      `json:"status"`
	Result     *render.Result `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorClass string         `json:"error_class,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
}

// jobRegistry is the in-memory bookkeeping for submitted jobs.
type jobRegistry struct {
	mu      sync.Mutex
	records map[string]*JobRecord
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{records: make(map[string]*JobRecord)}
}

// add registers a new job and returns its assigned identifier.
func (r *jobRegistry) add(job *render.Job) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.records[id] = &JobRecord{
		ID:        id,
		SlideID:   job.SlideID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
	r.mu.Unlock()
	return id
}

func (r *jobRegistry) markRunning(id string) {
	r.mu.Lock()
	if rec, ok := r.records[id]; ok {
		rec.Status = StatusRunning
		rec.StartedAt = time.Now()
	}
	r.mu.Unlock()
}

func (r *jobRegistry) markCompleted(id string, result render.Result) {
	r.mu.Lock()
	if rec, ok := r.records[id]; ok {
		rec.Status = StatusCompleted
		rec.Result = &result
		rec.FinishedAt = time.Now()
	}
	r.mu.Unlock()
}

func (r *jobRegistry) markFailed(id string, err error) {
	r.mu.Lock()
	if rec, ok := r.records[id]; ok {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		rec.ErrorClass = services.Class(err)
		rec.FinishedAt = time.Now()
	}
	r.mu.Unlock()
}

// get returns a copy of one record, or nil when unknown.
func (r *jobRegistry) get(id string) *JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	copied := *rec
	return &copied
}

// list returns copies of all records, newest first.
func (r *jobRegistry) list() []JobRecord {
	r.mu.Lock()
	out := make([]JobRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// counts tallies records per status.
func (r *jobRegistry) counts() map[JobStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[JobStatus]int, 4)
	for _, rec := range r.records {
		out[rec.Status]++
	}
	return out
}
