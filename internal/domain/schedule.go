package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Schedule binds a cron expression to exactly one target: a process with
// inputs, or a workflow.
type Schedule struct {
	ID       string `json:"scheduleId"`
	Name     string `json:"name"`
	Cron     string `json:"cron"`
	Timezone string `json:"timezone"` // IANA, defaults to UTC
	Enabled  bool   `json:"enabled"`

	ProcessID  string          `json:"processId,omitempty"`
	Inputs     json.RawMessage `json:"inputs,omitempty"`
	WorkflowID string          `json:"workflowId,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	LastRunAt    *time.Time `json:"lastRunAt"`
	LastRunJobID string     `json:"lastRunJobId,omitempty"`
}

// ValidateTarget enforces processId+inputs XOR workflowId.
func (s Schedule) ValidateTarget() error {
	return s.Target().Validate()
}

func (s Schedule) Target() Target {
	return Target{ProcessID: s.ProcessID, Inputs: s.Inputs, WorkflowID: s.WorkflowID}
}

// Anchor is the instant after which the next cron fire time is computed:
// the later of lastRunAt and created, or fallback when both are unset.
func (s Schedule) Anchor(fallback time.Time) time.Time {
	anchor := s.Created
	if s.LastRunAt != nil && s.LastRunAt.After(anchor) {
		anchor = *s.LastRunAt
	}
	if anchor.IsZero() {
		return fallback
	}
	return anchor
}

// Target is what a dispatch executes.
type Target struct {
	ProcessID  string
	Inputs     json.RawMessage
	WorkflowID string
}

func (t Target) Validate() error {
	hasWorkflow := strings.TrimSpace(t.WorkflowID) != ""
	hasProcess := strings.TrimSpace(t.ProcessID) != ""
	hasInputs := IsJSONObject(t.Inputs)

	if hasWorkflow && (hasProcess || hasInputs) {
		return InvalidParameter("Schedule target must be either workflowId or processId+inputs")
	}
	if !hasWorkflow && !(hasProcess && hasInputs) {
		return InvalidParameter("Schedule target requires workflowId or processId+inputs")
	}
	return nil
}

// IsJSONObject reports whether raw holds a JSON object.
func IsJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return obj != nil
}
