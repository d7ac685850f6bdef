// Package ledger is the durable record of every job the service has run.
package ledger

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/statestore"
)

const mapName = "jobs"

// Update carries the fields to merge into a job. Nil fields are left alone.
type Update struct {
	Status    *domain.JobStatus
	Progress  *int
	Outputs   json.RawMessage
	Execution *domain.Execution
}

type Ledger struct {
	mu    sync.Mutex
	jobs  *statestore.Collection[domain.Job]
	now   func() time.Time
	last  time.Time
	newID func() string
}

func New(store *statestore.Store) *Ledger {
	l := &Ledger{
		jobs:  statestore.NewCollection[domain.Job](store, mapName),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, job := range l.jobs.Values() {
		if job.Created.After(l.last) {
			l.last = job.Created
		}
	}
	return l
}

// WithClock replaces the time source. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Create records a job that already completed.
func (l *Ledger) Create(processID string, inputs, outputs json.RawMessage) domain.Job {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.stamp()
	job := domain.Job{
		ID:        l.newID(),
		ProcessID: processID,
		Status:    domain.JobStatusSucceeded,
		Progress:  100,
		Created:   ts,
		Updated:   ts,
		Inputs:    orEmpty(inputs),
		Outputs:   orEmpty(outputs),
		Execution: domain.Execution{Source: domain.ExecutionSourceLocal},
	}
	l.jobs.Put(job.ID, job)
	return job
}

// CreatePending records a queued job whose outputs are the process's
// placeholder shape until the run reports back.
func (l *Ledger) CreatePending(processID string, inputs, placeholder json.RawMessage, source domain.ExecutionSource, remoteRunID string) domain.Job {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.stamp()
	job := domain.Job{
		ID:        l.newID(),
		ProcessID: processID,
		Status:    domain.JobStatusQueued,
		Progress:  0,
		Created:   ts,
		Updated:   ts,
		Inputs:    orEmpty(inputs),
		Outputs:   orEmpty(placeholder),
		Execution: domain.Execution{Source: source, RemoteRunID: remoteRunID},
	}
	l.jobs.Put(job.ID, job)
	return job
}

// Update merges u into the job and refreshes its updated time. It reports
// false when id is unknown.
func (l *Ledger) Update(id string, u Update) (domain.Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs.Get(id)
	if !ok {
		return domain.Job{}, false
	}

	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = clampProgress(*u.Progress)
	}
	if u.Outputs != nil {
		job.Outputs = u.Outputs
	}
	if u.Execution != nil {
		job.Execution = *u.Execution
	}
	job.Updated = l.now().UTC()

	l.jobs.Put(id, job)
	return job, true
}

func (l *Ledger) Get(id string) (domain.Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jobs.Get(id)
}

// List returns every job, newest first.
func (l *Ledger) List() []domain.Job {
	l.mu.Lock()
	jobs := l.jobs.Values()
	l.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].Created.Equal(jobs[j].Created) {
			return jobs[i].Created.After(jobs[j].Created)
		}
		return jobs[i].ID > jobs[j].ID
	})
	return jobs
}

// stamp returns a creation time strictly after the previous one so that
// creation order survives coarse clocks. Caller holds mu.
func (l *Ledger) stamp() time.Time {
	ts := l.now().UTC()
	if !ts.After(l.last) {
		ts = l.last.Add(time.Nanosecond)
	}
	l.last = ts
	return ts
}

func orEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
