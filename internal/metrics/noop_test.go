package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	s := NewNoopSink()

	s.TickStarted()
	s.TickCompleted(100*time.Millisecond, 2, nil)
	s.TickCompleted(100*time.Millisecond, 0, errors.New("x"))
	s.DueCheckFailed()
	s.DispatchCompleted("manual", PathLocal, "succeeded", time.Millisecond)
	s.RemoteSubmitted("accepted")
	s.FallbackToLocal()
	s.JobSynced("running")
	s.CallbackRejected(ReasonBadToken)
}

var _ Sink = (*NoopSink)(nil)
