// Package remote submits runs to an external orchestrator and reads back
// their state.
package remote

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/djlord-it/eoflow/internal/domain"
)

type Outcome int

const (
	// Accepted means the backend created a run.
	Accepted Outcome = iota + 1
	// Unavailable means the backend could not be reached or is overloaded.
	// Callers may retry the work elsewhere.
	Unavailable
	// Rejected means the backend answered and refused the request. Retrying
	// elsewhere would hide a real problem.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Unavailable:
		return "unavailable"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type SubmitRequest struct {
	CorrelationID string // ledger job id
	ProcessID     string
	Trigger       domain.Trigger
	Inputs        json.RawMessage
}

type SubmitResult struct {
	Outcome Outcome
	RunID   string
	Err     error
}

type Backend interface {
	Submit(ctx context.Context, req SubmitRequest) SubmitResult
	RunState(ctx context.Context, runID string) (string, error)
}

// MapState translates an orchestrator state type into a job status.
// Unknown and empty states are treated as queued.
func MapState(stateType string) domain.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(stateType)) {
	case "PENDING", "SCHEDULED", "LATE", "PAUSED":
		return domain.JobStatusQueued
	case "RUNNING", "CANCELLING":
		return domain.JobStatusRunning
	case "COMPLETED":
		return domain.JobStatusSucceeded
	case "FAILED", "CRASHED", "CANCELLED":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusQueued
	}
}

func ProgressFor(status domain.JobStatus) int {
	switch {
	case status == domain.JobStatusRunning:
		return 50
	case status.IsTerminal():
		return 100
	default:
		return 0
	}
}
