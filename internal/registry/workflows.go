// Package registry holds the user-defined workflows and schedules.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/statestore"
)

type WorkflowDraft struct {
	Name  string
	Steps []domain.Step
}

// WorkflowPatch replaces the fields that are set. Steps are replaced
// wholesale; an empty non-nil slice clears them.
type WorkflowPatch struct {
	Name  *string
	Steps []domain.Step
}

type Workflows struct {
	mu        sync.Mutex
	workflows *statestore.Collection[domain.Workflow]
	now       func() time.Time
}

func NewWorkflows(store *statestore.Store) *Workflows {
	return &Workflows{
		workflows: statestore.NewCollection[domain.Workflow](store, "workflows"),
		now:       time.Now,
	}
}

func (r *Workflows) WithClock(now func() time.Time) *Workflows {
	r.now = now
	return r
}

func (r *Workflows) Create(d WorkflowDraft) (domain.Workflow, error) {
	if strings.TrimSpace(d.Name) == "" {
		return domain.Workflow{}, domain.InvalidParameter("Workflow name is required")
	}
	if len(d.Steps) == 0 {
		return domain.Workflow{}, domain.InvalidParameter("Workflow requires at least one step")
	}
	if err := validateSteps(d.Steps); err != nil {
		return domain.Workflow{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	wf := domain.Workflow{
		ID:            uuid.NewString(),
		Name:          d.Name,
		Steps:         d.Steps,
		Created:       ts,
		Updated:       ts,
		LastRunJobIDs: []string{},
	}
	r.workflows.Put(wf.ID, wf)
	return wf, nil
}

func (r *Workflows) Get(id string) (domain.Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workflows.Get(id)
}

// List returns workflows oldest first.
func (r *Workflows) List() []domain.Workflow {
	r.mu.Lock()
	out := r.workflows.Values()
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update returns NotFound for an unknown id.
func (r *Workflows) Update(id string, p WorkflowPatch) (domain.Workflow, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Workflow{}, domain.InvalidParameter("Workflow name is required")
	}
	if err := validateSteps(p.Steps); err != nil {
		return domain.Workflow{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wf, ok := r.workflows.Get(id)
	if !ok {
		return domain.Workflow{}, domain.NotFound("Workflow", id)
	}
	if p.Name != nil {
		wf.Name = *p.Name
	}
	if p.Steps != nil {
		wf.Steps = p.Steps
	}
	wf.Updated = r.now().UTC()

	r.workflows.Put(id, wf)
	return wf, nil
}

func (r *Workflows) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workflows.Delete(id)
}

// MarkRun records the jobs produced by a completed run.
func (r *Workflows) MarkRun(id string, jobIDs []string) (domain.Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wf, ok := r.workflows.Get(id)
	if !ok {
		return domain.Workflow{}, false
	}
	ts := r.now().UTC()
	wf.LastRunAt = &ts
	wf.LastRunJobIDs = append([]string(nil), jobIDs...)
	wf.Updated = ts

	r.workflows.Put(id, wf)
	return wf, true
}

func validateSteps(steps []domain.Step) error {
	for i, step := range steps {
		if strings.TrimSpace(step.ProcessID) == "" {
			return domain.InvalidParameter("Step %d requires processId", i+1)
		}
	}
	return nil
}
