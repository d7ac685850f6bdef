package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	triggeredTotal  prometheus.Counter
	dueErrorsTotal  prometheus.Counter
	tickDuration    prometheus.Histogram

	// Dispatcher
	dispatchesTotal   *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	remoteSubmits     *prometheus.CounterVec
	fallbacksTotal    prometheus.Counter
	syncsTotal        *prometheus.CounterVec
	callbacksRejected *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initDispatcherMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eoflow_scheduler_ticks_total",
		Help: "Total number of scheduler polls.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eoflow_scheduler_tick_errors_total",
		Help: "Total number of polls in which at least one schedule failed to run.",
	})
	s.triggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eoflow_scheduler_schedules_triggered_total",
		Help: "Total number of schedules run by the scheduler.",
	})
	s.dueErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eoflow_scheduler_due_check_errors_total",
		Help: "Total number of schedules skipped because their cron could not be evaluated.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eoflow_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler poll in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	s.register(reg, s.ticksTotal, "eoflow_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "eoflow_scheduler_tick_errors_total")
	s.register(reg, s.triggeredTotal, "eoflow_scheduler_schedules_triggered_total")
	s.register(reg, s.dueErrorsTotal, "eoflow_scheduler_due_check_errors_total")
	s.register(reg, s.tickDuration, "eoflow_scheduler_tick_duration_seconds")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eoflow_dispatcher_dispatches_total",
		Help: "Total number of dispatches by trigger, execution path and resulting status.",
	}, []string{"trigger", "path", "status"})

	s.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eoflow_dispatcher_dispatch_duration_seconds",
		Help:    "Time spent in a dispatch, including local execution.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"path"})

	s.remoteSubmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eoflow_dispatcher_remote_submits_total",
		Help: "Total number of remote submissions by outcome.",
	}, []string{"outcome"})

	s.fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eoflow_dispatcher_local_fallbacks_total",
		Help: "Total number of dispatches re-run locally because the remote backend was unavailable.",
	})

	s.syncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eoflow_dispatcher_job_syncs_total",
		Help: "Total number of remote job reconciliations by resulting status.",
	}, []string{"status"})

	s.callbacksRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eoflow_api_callbacks_rejected_total",
		Help: "Total number of rejected scheduler callbacks.",
	}, []string{"reason"})

	s.register(reg, s.dispatchesTotal, "eoflow_dispatcher_dispatches_total")
	s.register(reg, s.dispatchDuration, "eoflow_dispatcher_dispatch_duration_seconds")
	s.register(reg, s.remoteSubmits, "eoflow_dispatcher_remote_submits_total")
	s.register(reg, s.fallbacksTotal, "eoflow_dispatcher_local_fallbacks_total")
	s.register(reg, s.syncsTotal, "eoflow_dispatcher_job_syncs_total")
	s.register(reg, s.callbacksRejected, "eoflow_api_callbacks_rejected_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		slog.Warn("metrics: failed to register", "metric", name, "error", err)
	}
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, triggered int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.triggeredTotal.Add(float64(triggered))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) DueCheckFailed() {
	s.dueErrorsTotal.Inc()
}

func (s *PrometheusSink) DispatchCompleted(trigger, path, status string, duration time.Duration) {
	s.dispatchesTotal.WithLabelValues(trigger, path, status).Inc()
	s.dispatchDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (s *PrometheusSink) RemoteSubmitted(outcome string) {
	s.remoteSubmits.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) FallbackToLocal() {
	s.fallbacksTotal.Inc()
}

func (s *PrometheusSink) JobSynced(status string) {
	s.syncsTotal.WithLabelValues(status).Inc()
}

func (s *PrometheusSink) CallbackRejected(reason string) {
	s.callbacksRejected.WithLabelValues(reason).Inc()
}
