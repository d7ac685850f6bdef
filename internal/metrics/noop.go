package metrics

import "time"

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                    {}
func (n *NoopSink) TickCompleted(duration time.Duration, triggered int, err error)  {}
func (n *NoopSink) DueCheckFailed()                                                 {}
func (n *NoopSink) DispatchCompleted(trigger, path, status string, d time.Duration) {}
func (n *NoopSink) RemoteSubmitted(outcome string)                                  {}
func (n *NoopSink) FallbackToLocal()                                                {}
func (n *NoopSink) JobSynced(status string)                                         {}
func (n *NoopSink) CallbackRejected(reason string)                                  {}
