package registry

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/statestore"
)

// CronValidator checks an expression and zone before they are stored.
type CronValidator interface {
	Validate(expression, timezone string) error
}

type ScheduleDraft struct {
	Name       string
	Cron       string
	Timezone   string
	Enabled    *bool
	ProcessID  string
	Inputs     json.RawMessage
	WorkflowID string
}

// SchedulePatch sets the non-nil fields. Setting WorkflowID clears the
// process target; setting ProcessID or Inputs clears WorkflowID.
type SchedulePatch struct {
	Name       *string
	Cron       *string
	Timezone   *string
	Enabled    *bool
	ProcessID  *string
	Inputs     json.RawMessage
	WorkflowID *string
}

type Schedules struct {
	mu        sync.Mutex
	schedules *statestore.Collection[domain.Schedule]
	cron      CronValidator
	now       func() time.Time
}

// NewSchedules returns a registry that checks cron expressions with v. A nil
// v skips expression checks.
func NewSchedules(store *statestore.Store, v CronValidator) *Schedules {
	return &Schedules{
		schedules: statestore.NewCollection[domain.Schedule](store, "schedules"),
		cron:      v,
		now:       time.Now,
	}
}

func (r *Schedules) WithClock(now func() time.Time) *Schedules {
	r.now = now
	return r
}

func (r *Schedules) Create(d ScheduleDraft) (domain.Schedule, error) {
	s := domain.Schedule{
		Name:       d.Name,
		Cron:       strings.TrimSpace(d.Cron),
		Timezone:   d.Timezone,
		Enabled:    true,
		ProcessID:  d.ProcessID,
		Inputs:     d.Inputs,
		WorkflowID: d.WorkflowID,
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if d.Enabled != nil {
		s.Enabled = *d.Enabled
	}
	if err := r.validate(s); err != nil {
		return domain.Schedule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	s.ID = uuid.NewString()
	s.Created = ts
	s.Updated = ts
	r.schedules.Put(s.ID, s)
	return s, nil
}

func (r *Schedules) Get(id string) (domain.Schedule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules.Get(id)
}

// List returns schedules oldest first.
func (r *Schedules) List() []domain.Schedule {
	r.mu.Lock()
	out := r.schedules.Values()
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update validates the merged schedule before storing it. Unknown ids are
// NotFound.
func (r *Schedules) Update(id string, p SchedulePatch) (domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules.Get(id)
	if !ok {
		return domain.Schedule{}, domain.NotFound("Schedule", id)
	}

	if p.WorkflowID != nil {
		s.ProcessID = ""
		s.Inputs = nil
	}
	if p.ProcessID != nil || p.Inputs != nil {
		s.WorkflowID = ""
	}

	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Cron != nil {
		s.Cron = strings.TrimSpace(*p.Cron)
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.ProcessID != nil {
		s.ProcessID = *p.ProcessID
	}
	if p.Inputs != nil {
		s.Inputs = p.Inputs
	}
	if p.WorkflowID != nil {
		s.WorkflowID = *p.WorkflowID
	}

	if err := r.validate(s); err != nil {
		return domain.Schedule{}, err
	}

	s.Updated = r.now().UTC()
	r.schedules.Put(id, s)
	return s, nil
}

func (r *Schedules) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules.Delete(id)
}

// MarkRun stamps lastRunAt and records the job a trigger produced.
func (r *Schedules) MarkRun(id, jobID string) (domain.Schedule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules.Get(id)
	if !ok {
		return domain.Schedule{}, false
	}
	ts := r.now().UTC()
	s.LastRunAt = &ts
	s.LastRunJobID = jobID
	s.Updated = ts

	r.schedules.Put(id, s)
	return s, true
}

func (r *Schedules) validate(s domain.Schedule) error {
	if strings.TrimSpace(s.Name) == "" {
		return domain.InvalidParameter("Schedule name is required")
	}
	if s.Cron == "" {
		return domain.InvalidParameter("Schedule cron is required")
	}
	if r.cron != nil {
		if err := r.cron.Validate(s.Cron, s.Timezone); err != nil {
			return domain.InvalidParameter("Invalid cron or timezone: %v", err)
		}
	}
	return s.ValidateTarget()
}
