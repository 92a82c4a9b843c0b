package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of an ingestion job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job records one ingestion request. Ingestion runs in the background;
// callers poll the tracker for completion.
type Job struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Source     string    `json:"source"`
	State      JobState  `json:"state"`
	DocumentID string    `json:"document_id,omitempty"`
	Chunks     int       `json:"chunks,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Tracker holds ingestion job state in memory.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// Begin registers a pending job and returns its snapshot.
func (t *Tracker) Begin(customerID, source string) Job {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Source:     source,
		State:      JobPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()

	return *job
}

// Complete marks a job as finished.
func (t *Tracker) Complete(id string, result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.State = JobCompleted
		job.DocumentID = result.DocumentID
		job.Chunks = result.Chunks
		job.UpdatedAt = time.Now()
	}
}

// Fail marks a job as failed with the error message.
func (t *Tracker) Fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.State = JobFailed
		job.Error = err.Error()
		job.UpdatedAt = time.Now()
	}
}

// Get returns a job snapshot by ID.
func (t *Tracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// ForCustomer returns snapshots of all jobs for a customer.
func (t *Tracker) ForCustomer(customerID string) []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var jobs []Job
	for _, job := range t.jobs {
		if job.CustomerID == customerID {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}
