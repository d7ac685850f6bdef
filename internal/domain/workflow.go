package domain

import (
	"encoding/json"
	"time"
)

type Step struct {
	Name      string          `json:"name,omitempty"`
	ProcessID string          `json:"processId"`
	Payload   json.RawMessage `json:"payload"`
}

// Inputs extracts the "inputs" object from the step payload.
func (s Step) Inputs() (json.RawMessage, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(s.Payload, &payload); err != nil {
		return nil, false
	}
	inputs, ok := payload["inputs"]
	if !ok || !IsJSONObject(inputs) {
		return nil, false
	}
	return inputs, true
}

// Workflow is a named, ordered list of process invocations.
type Workflow struct {
	ID    string `json:"workflowId"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	LastRunAt     *time.Time `json:"lastRunAt"`
	LastRunJobIDs []string   `json:"lastRunJobIds"`
}
