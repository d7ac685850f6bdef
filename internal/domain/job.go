package domain

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transition is expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

type ExecutionSource string

const (
	ExecutionSourceLocal  ExecutionSource = "local"
	ExecutionSourceRemote ExecutionSource = "remote"

	// ExecutionSourceWorkflow only appears on dispatch results, never on a
	// stored job.
	ExecutionSourceWorkflow ExecutionSource = "workflow"
)

// Execution records where a job ran.
type Execution struct {
	Source      ExecutionSource `json:"source"`
	RemoteRunID string          `json:"remoteRunId,omitempty"`
	State       string          `json:"state,omitempty"` // last raw backend state
	Error       string          `json:"error,omitempty"`
}

// Job is one durable execution attempt of a process. Jobs are never deleted.
type Job struct {
	ID        string    `json:"jobId"`
	ProcessID string    `json:"processId"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	Inputs  json.RawMessage `json:"inputs"`
	Outputs json.RawMessage `json:"outputs"`

	Execution Execution `json:"execution"`
}
