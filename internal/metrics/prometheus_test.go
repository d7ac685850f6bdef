package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	return sink, reg
}

func getCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func getHistogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total uint64
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				total += m.GetHistogram().GetSampleCount()
			}
		}
	}
	return total
}

func getCounterVecValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				if matchLabels(m.GetLabel(), labels) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

func TestPrometheusSink_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if NewPrometheusSink(reg) == nil {
		t.Fatal("NewPrometheusSink returned nil")
	}
}

func TestPrometheusSink_Ticks(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.TickStarted()
	sink.TickStarted()
	sink.TickCompleted(50*time.Millisecond, 3, nil)
	sink.TickCompleted(50*time.Millisecond, 1, errors.New("schedule failed"))

	if v := getCounterValue(t, reg, "eoflow_scheduler_ticks_total"); v != 2 {
		t.Errorf("ticks_total = %v, want 2", v)
	}
	if v := getCounterValue(t, reg, "eoflow_scheduler_schedules_triggered_total"); v != 4 {
		t.Errorf("schedules_triggered_total = %v, want 4", v)
	}
	if v := getCounterValue(t, reg, "eoflow_scheduler_tick_errors_total"); v != 1 {
		t.Errorf("tick_errors_total = %v, want 1", v)
	}
	if n := getHistogramCount(t, reg, "eoflow_scheduler_tick_duration_seconds"); n != 2 {
		t.Errorf("tick_duration samples = %d, want 2", n)
	}
}

func TestPrometheusSink_DueCheckFailed(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.DueCheckFailed()

	if v := getCounterValue(t, reg, "eoflow_scheduler_due_check_errors_total"); v != 1 {
		t.Errorf("due_check_errors_total = %v, want 1", v)
	}
}

func TestPrometheusSink_DispatchLabels(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.DispatchCompleted("manual", PathLocal, "succeeded", 10*time.Millisecond)
	sink.DispatchCompleted("manual", PathLocal, "succeeded", 10*time.Millisecond)
	sink.DispatchCompleted("internal-cron", PathRemote, "queued", time.Second)

	local := getCounterVecValue(t, reg, "eoflow_dispatcher_dispatches_total",
		map[string]string{"trigger": "manual", "path": "local", "status": "succeeded"})
	if local != 2 {
		t.Errorf("manual/local/succeeded = %v, want 2", local)
	}

	remote := getCounterVecValue(t, reg, "eoflow_dispatcher_dispatches_total",
		map[string]string{"trigger": "internal-cron", "path": "remote", "status": "queued"})
	if remote != 1 {
		t.Errorf("internal-cron/remote/queued = %v, want 1", remote)
	}

	if n := getHistogramCount(t, reg, "eoflow_dispatcher_dispatch_duration_seconds"); n != 3 {
		t.Errorf("dispatch_duration samples = %d, want 3", n)
	}
}

func TestPrometheusSink_RemoteAndFallback(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.RemoteSubmitted("accepted")
	sink.RemoteSubmitted("unavailable")
	sink.RemoteSubmitted("unavailable")
	sink.FallbackToLocal()
	sink.JobSynced("running")

	if v := getCounterVecValue(t, reg, "eoflow_dispatcher_remote_submits_total",
		map[string]string{"outcome": "unavailable"}); v != 2 {
		t.Errorf("outcome=unavailable = %v, want 2", v)
	}
	if v := getCounterValue(t, reg, "eoflow_dispatcher_local_fallbacks_total"); v != 1 {
		t.Errorf("local_fallbacks_total = %v, want 1", v)
	}
	if v := getCounterVecValue(t, reg, "eoflow_dispatcher_job_syncs_total",
		map[string]string{"status": "running"}); v != 1 {
		t.Errorf("job_syncs status=running = %v, want 1", v)
	}
}

func TestPrometheusSink_CallbackRejected(t *testing.T) {
	sink, reg := newTestSink(t)
	sink.CallbackRejected(ReasonNoSecret)
	sink.CallbackRejected(ReasonBadToken)
	sink.CallbackRejected(ReasonBadToken)

	if v := getCounterVecValue(t, reg, "eoflow_api_callbacks_rejected_total",
		map[string]string{"reason": ReasonBadToken}); v != 2 {
		t.Errorf("reason=bad_token = %v, want 2", v)
	}
}

func TestPrometheusSink_DuplicateRegistration_NoPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	if NewPrometheusSink(reg) == nil {
		t.Fatal("first NewPrometheusSink returned nil")
	}
	// every Register call fails the second time; the sink must still work
	sink := NewPrometheusSink(reg)
	sink.TickStarted()
	sink.DispatchCompleted("manual", PathLocal, "succeeded", time.Millisecond)
}

var _ Sink = (*PrometheusSink)(nil)
