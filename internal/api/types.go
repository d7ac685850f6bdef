package api

import (
	"encoding/json"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/registry"
)

type ExecuteRequest struct {
	Inputs json.RawMessage `json:"inputs"`
}

type StepRequest struct {
	Name      string          `json:"name"`
	ProcessID string          `json:"processId"`
	Payload   json.RawMessage `json:"payload"`
}

type WorkflowRequest struct {
	Name  string        `json:"name"`
	Steps []StepRequest `json:"steps"`
}

// WorkflowPatchRequest distinguishes an absent steps field (nil pointer)
// from an explicit empty list.
type WorkflowPatchRequest struct {
	Name  *string        `json:"name"`
	Steps *[]StepRequest `json:"steps"`
}

type ScheduleRequest struct {
	Name       string          `json:"name"`
	Cron       string          `json:"cron"`
	Timezone   string          `json:"timezone"`
	Enabled    *bool           `json:"enabled"`
	ProcessID  string          `json:"processId"`
	Inputs     json.RawMessage `json:"inputs"`
	WorkflowID string          `json:"workflowId"`
}

type SchedulePatchRequest struct {
	Name       *string         `json:"name"`
	Cron       *string         `json:"cron"`
	Timezone   *string         `json:"timezone"`
	Enabled    *bool           `json:"enabled"`
	ProcessID  *string         `json:"processId"`
	Inputs     json.RawMessage `json:"inputs"`
	WorkflowID *string         `json:"workflowId"`
}

type ListProcessesResponse struct {
	Processes []process.Definition `json:"processes"`
}

type ListJobsResponse struct {
	Jobs  []domain.Job `json:"jobs"`
	Total int          `json:"total"`
}

type ListWorkflowsResponse struct {
	Workflows []domain.Workflow `json:"workflows"`
}

type ListSchedulesResponse struct {
	Schedules []domain.Schedule `json:"schedules"`
}

type ErrorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (r WorkflowRequest) draft() registry.WorkflowDraft {
	return registry.WorkflowDraft{Name: r.Name, Steps: toSteps(r.Steps)}
}

func (r WorkflowPatchRequest) patch() registry.WorkflowPatch {
	p := registry.WorkflowPatch{Name: r.Name}
	if r.Steps != nil {
		p.Steps = toSteps(*r.Steps)
	}
	return p
}

func (r ScheduleRequest) draft() registry.ScheduleDraft {
	return registry.ScheduleDraft{
		Name:       r.Name,
		Cron:       r.Cron,
		Timezone:   r.Timezone,
		Enabled:    r.Enabled,
		ProcessID:  r.ProcessID,
		Inputs:     nullToNil(r.Inputs),
		WorkflowID: r.WorkflowID,
	}
}

func (r SchedulePatchRequest) patch() registry.SchedulePatch {
	return registry.SchedulePatch{
		Name:       r.Name,
		Cron:       r.Cron,
		Timezone:   r.Timezone,
		Enabled:    r.Enabled,
		ProcessID:  r.ProcessID,
		Inputs:     nullToNil(r.Inputs),
		WorkflowID: r.WorkflowID,
	}
}

// toSteps never returns nil, so an explicit empty list survives as a clear.
func toSteps(in []StepRequest) []domain.Step {
	out := make([]domain.Step, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Step{Name: s.Name, ProcessID: s.ProcessID, Payload: nullToNil(s.Payload)})
	}
	return out
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
