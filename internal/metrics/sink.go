package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Scheduler
	TickStarted()
	TickCompleted(duration time.Duration, triggered int, err error)
	DueCheckFailed()

	// Dispatcher
	DispatchCompleted(trigger, path, status string, duration time.Duration)
	RemoteSubmitted(outcome string)
	FallbackToLocal()
	JobSynced(status string)

	// Callback gate
	CallbackRejected(reason string)
}

// Dispatch path labels.
const (
	PathLocal    = "local"
	PathRemote   = "remote"
	PathWorkflow = "workflow"
)

// Status labels for DispatchCompleted beyond the job statuses.
const (
	StatusError = "error"
)

// Reasons for CallbackRejected.
const (
	ReasonNoSecret = "no_secret"
	ReasonBadToken = "bad_token"
)
