package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"process with inputs", Target{ProcessID: "p", Inputs: json.RawMessage(`{"x":1}`)}, false},
		{"workflow only", Target{WorkflowID: "wf"}, false},
		{"both", Target{ProcessID: "p", Inputs: json.RawMessage(`{}`), WorkflowID: "wf"}, true},
		{"workflow with inputs", Target{Inputs: json.RawMessage(`{}`), WorkflowID: "wf"}, true},
		{"neither", Target{}, true},
		{"process without inputs", Target{ProcessID: "p"}, true},
		{"inputs not an object", Target{ProcessID: "p", Inputs: json.RawMessage(`[1,2]`)}, true},
		{"inputs null", Target{ProcessID: "p", Inputs: json.RawMessage(`null`)}, true},
		{"blank workflow id", Target{WorkflowID: "   "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("Validate() = %v, want InvalidParameterValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestSchedule_Anchor(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lastRun := created.Add(time.Hour)
	fallback := created.Add(48 * time.Hour)

	s := Schedule{Created: created}
	if got := s.Anchor(fallback); !got.Equal(created) {
		t.Errorf("Anchor without lastRunAt = %v, want %v", got, created)
	}

	s.LastRunAt = &lastRun
	if got := s.Anchor(fallback); !got.Equal(lastRun) {
		t.Errorf("Anchor with lastRunAt = %v, want %v", got, lastRun)
	}

	if got := (Schedule{}).Anchor(fallback); !got.Equal(fallback) {
		t.Errorf("Anchor with no timestamps = %v, want fallback %v", got, fallback)
	}
}

func TestStep_Inputs(t *testing.T) {
	step := Step{ProcessID: "p", Payload: json.RawMessage(`{"inputs":{"a":1}}`)}
	inputs, ok := step.Inputs()
	if !ok || string(inputs) != `{"a":1}` {
		t.Fatalf("Inputs() = %s, %v", inputs, ok)
	}

	for _, payload := range []string{`{}`, `{"inputs":[1]}`, `{"inputs":null}`, `not json`, ``} {
		if _, ok := (Step{Payload: json.RawMessage(payload)}).Inputs(); ok {
			t.Errorf("Inputs() on payload %q should fail", payload)
		}
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusSucceeded, true},
		{JobStatusFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
