// Package dispatcher decides where a target runs and records the outcome in
// the job ledger. Dispatch happens synchronously on the caller's goroutine.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/djlord-it/eoflow/internal/analytics"
	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/ledger"
	"github.com/djlord-it/eoflow/internal/process"
	"github.com/djlord-it/eoflow/internal/remote"
)

const tracerName = "github.com/djlord-it/eoflow/dispatcher"

type Ledger interface {
	Create(processID string, inputs, outputs json.RawMessage) domain.Job
	CreatePending(processID string, inputs, placeholder json.RawMessage, source domain.ExecutionSource, remoteRunID string) domain.Job
	Update(id string, u ledger.Update) (domain.Job, bool)
	Get(id string) (domain.Job, bool)
}

type Processes interface {
	Lookup(id string) (process.Process, bool)
	Placeholder(id string) json.RawMessage
}

type Workflows interface {
	Get(id string) (domain.Workflow, bool)
	MarkRun(id string, jobIDs []string) (domain.Workflow, bool)
}

type Schedules interface {
	Get(id string) (domain.Schedule, bool)
	MarkRun(id, jobID string) (domain.Schedule, bool)
}

// MetricsSink must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DispatchCompleted(trigger, path, status string, duration time.Duration)
	RemoteSubmitted(outcome string)
	FallbackToLocal()
	JobSynced(status string)
}

type AnalyticsSink interface {
	Record(ctx context.Context, ev analytics.Event) error
}

type ResultExecution struct {
	Source      domain.ExecutionSource `json:"source"`
	RemoteRunID string                 `json:"remoteRunId,omitempty"`
}

// Result is what a dispatch produced. JobID is the single job of a process
// target, or the last job of a workflow run.
type Result struct {
	JobID     string           `json:"jobId,omitempty"`
	JobIDs    []string         `json:"jobIds"`
	Status    domain.JobStatus `json:"status"`
	Execution ResultExecution  `json:"execution"`
	Workflow  *RunResult       `json:"workflow,omitempty"`
}

type ScheduleRun struct {
	ScheduleID string          `json:"scheduleId"`
	Trigger    domain.Trigger  `json:"trigger"`
	Result     Result          `json:"result"`
	Schedule   domain.Schedule `json:"schedule"`
}

type Dispatcher struct {
	ledger    Ledger
	processes Processes
	workflows Workflows
	schedules Schedules
	remote    remote.Backend // optional, nil = local only
	metrics   MetricsSink    // optional, nil = disabled
	analytics AnalyticsSink  // optional, nil = disabled
	tracer    trace.Tracer
	logger    *slog.Logger
}

func New(l Ledger, p Processes, w Workflows, s Schedules, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ledger:    l,
		processes: p,
		workflows: w,
		schedules: s,
		tracer:    otel.Tracer(tracerName),
		logger:    logger,
	}
}

// WithRemote routes process targets through b, falling back to local
// execution when b is unavailable.
func (d *Dispatcher) WithRemote(b remote.Backend) *Dispatcher {
	d.remote = b
	return d
}

func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

func (d *Dispatcher) WithTracer(t trace.Tracer) *Dispatcher {
	d.tracer = t
	return d
}

// Execute runs a process or workflow target.
func (d *Dispatcher) Execute(ctx context.Context, target domain.Target, trigger domain.Trigger) (Result, error) {
	if err := target.Validate(); err != nil {
		return Result{}, err
	}

	if target.WorkflowID != "" {
		run, err := d.Run(ctx, target.WorkflowID, trigger)
		if err != nil {
			return Result{}, err
		}
		res := Result{
			JobIDs:    run.JobIDs,
			Status:    run.Status,
			Execution: ResultExecution{Source: domain.ExecutionSourceWorkflow},
			Workflow:  &run,
		}
		if n := len(run.JobIDs); n > 0 {
			res.JobID = run.JobIDs[n-1]
		}
		return res, nil
	}

	job, err := d.ExecuteProcess(ctx, target.ProcessID, target.Inputs, trigger)
	if err != nil {
		return Result{}, err
	}
	return Result{
		JobID:  job.ID,
		JobIDs: []string{job.ID},
		Status: job.Status,
		Execution: ResultExecution{
			Source:      job.Execution.Source,
			RemoteRunID: job.Execution.RemoteRunID,
		},
	}, nil
}

// ExecuteProcess runs one process and returns the job that records it. With
// a remote backend the job is usually still queued on return; locally it is
// already terminal. A local execution failure creates no job.
func (d *Dispatcher) ExecuteProcess(ctx context.Context, processID string, inputs json.RawMessage, trigger domain.Trigger) (job domain.Job, err error) {
	start := time.Now()
	path := "local"

	ctx, span := d.tracer.Start(ctx, "eoflow.dispatch.process",
		trace.WithAttributes(
			attribute.String("eoflow.process.id", processID),
			attribute.String("eoflow.trigger", string(trigger)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		status := string(job.Status)
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("eoflow.job.id", job.ID), attribute.String("eoflow.path", path))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		d.record(ctx, trigger, "process", processID, path, status, start)
	}()

	if _, ok := d.processes.Lookup(processID); !ok {
		return domain.Job{}, domain.NotFound("Process", processID)
	}

	if d.remote == nil {
		return d.runLocal(ctx, processID, inputs)
	}

	path = "remote"
	job, fellBack, err := d.runRemote(ctx, processID, inputs, trigger)
	if fellBack {
		path = "local"
	}
	return job, err
}

func (d *Dispatcher) runLocal(ctx context.Context, processID string, inputs json.RawMessage) (domain.Job, error) {
	p, ok := d.processes.Lookup(processID)
	if !ok {
		return domain.Job{}, domain.NotFound("Process", processID)
	}

	outputs, err := p.Execute(ctx, inputs)
	if err != nil {
		return domain.Job{}, fmt.Errorf("execute %s: %w", processID, err)
	}
	return d.ledger.Create(processID, inputs, outputs), nil
}

// runRemote submits through the remote backend. fellBack reports whether
// the job returned came from local re-execution.
func (d *Dispatcher) runRemote(ctx context.Context, processID string, inputs json.RawMessage, trigger domain.Trigger) (domain.Job, bool, error) {
	pending := d.ledger.CreatePending(processID, inputs, d.processes.Placeholder(processID), domain.ExecutionSourceRemote, "")

	res := d.remote.Submit(ctx, remote.SubmitRequest{
		CorrelationID: pending.ID,
		ProcessID:     processID,
		Trigger:       trigger,
		Inputs:        inputs,
	})
	if d.metrics != nil {
		d.metrics.RemoteSubmitted(res.Outcome.String())
	}

	switch res.Outcome {
	case remote.Accepted:
		exec := pending.Execution
		exec.RemoteRunID = res.RunID
		job, ok := d.ledger.Update(pending.ID, ledger.Update{Execution: &exec})
		if !ok {
			return domain.Job{}, false, fmt.Errorf("pending job %s vanished", pending.ID)
		}
		return job, false, nil

	case remote.Rejected:
		d.logger.Warn("dispatcher: remote rejected run", "job_id", pending.ID, "process_id", processID, "error", res.Err)
		return d.fail(pending, fmt.Sprintf("remote rejected run: %v", res.Err)), false, nil

	default:
		d.logger.Warn("dispatcher: remote unavailable, running locally", "job_id", pending.ID, "process_id", processID, "error", res.Err)
		d.fail(pending, fmt.Sprintf("remote unavailable: %v", res.Err))
		if d.metrics != nil {
			d.metrics.FallbackToLocal()
		}
		job, err := d.runLocal(ctx, processID, inputs)
		return job, true, err
	}
}

func (d *Dispatcher) fail(job domain.Job, reason string) domain.Job {
	status := domain.JobStatusFailed
	progress := 100
	exec := job.Execution
	exec.Error = reason

	updated, ok := d.ledger.Update(job.ID, ledger.Update{Status: &status, Progress: &progress, Execution: &exec})
	if !ok {
		return job
	}
	return updated
}

// GetJob returns a job, reconciling it with the remote backend first.
func (d *Dispatcher) GetJob(ctx context.Context, id string) (domain.Job, error) {
	job, ok := d.ledger.Get(id)
	if !ok {
		return domain.Job{}, domain.NotFound("Job", id)
	}
	return d.SyncJob(ctx, job), nil
}

// SyncJob refreshes a remote job from its run state. Terminal jobs, local
// jobs and poll failures return the job unchanged.
func (d *Dispatcher) SyncJob(ctx context.Context, job domain.Job) domain.Job {
	if d.remote == nil || job.Execution.Source != domain.ExecutionSourceRemote ||
		job.Execution.RemoteRunID == "" || job.Status.IsTerminal() {
		return job
	}

	state, err := d.remote.RunState(ctx, job.Execution.RemoteRunID)
	if err != nil {
		d.logger.Debug("dispatcher: run state poll failed", "job_id", job.ID, "run_id", job.Execution.RemoteRunID, "error", err)
		return job
	}

	status := remote.MapState(state)
	if rank(status) < rank(job.Status) {
		status = job.Status
	}
	progress := remote.ProgressFor(status)
	exec := job.Execution
	exec.State = state

	updated, ok := d.ledger.Update(job.ID, ledger.Update{Status: &status, Progress: &progress, Execution: &exec})
	if !ok {
		return job
	}
	if d.metrics != nil {
		d.metrics.JobSynced(string(status))
	}
	return updated
}

func rank(s domain.JobStatus) int {
	switch {
	case s == domain.JobStatusRunning:
		return 1
	case s.IsTerminal():
		return 2
	default:
		return 0
	}
}

// RunSchedule executes a stored schedule's target and records the run on
// the schedule.
func (d *Dispatcher) RunSchedule(ctx context.Context, scheduleID string, trigger domain.Trigger) (ScheduleRun, error) {
	s, ok := d.schedules.Get(scheduleID)
	if !ok {
		return ScheduleRun{}, domain.NotFound("Schedule", scheduleID)
	}
	if err := s.ValidateTarget(); err != nil {
		return ScheduleRun{}, err
	}

	start := time.Now()
	res, err := d.Execute(ctx, s.Target(), trigger)
	if err != nil {
		d.record(ctx, trigger, "schedule", scheduleID, "", "error", start)
		return ScheduleRun{}, err
	}
	if res.JobID == "" {
		return ScheduleRun{}, domain.InvalidParameter("Workflow '%s' produced no jobs", s.WorkflowID)
	}

	updated, ok := d.schedules.MarkRun(scheduleID, res.JobID)
	if !ok {
		// deleted while running; the jobs stand
		updated = s
	}
	d.record(ctx, trigger, "schedule", scheduleID, "", string(res.Status), start)

	return ScheduleRun{ScheduleID: scheduleID, Trigger: trigger, Result: res, Schedule: updated}, nil
}

// record reports a finished dispatch. Empty path skips the metrics sink,
// which already counted the underlying process or workflow dispatch.
func (d *Dispatcher) record(ctx context.Context, trigger domain.Trigger, kind, id, path, status string, start time.Time) {
	if d.metrics != nil && path != "" {
		d.metrics.DispatchCompleted(string(trigger), path, status, time.Since(start))
	}
	if d.analytics != nil {
		ev := analytics.Event{Trigger: trigger, TargetKind: kind, TargetID: id, Status: status, At: time.Now()}
		if err := d.analytics.Record(ctx, ev); err != nil {
			d.logger.Warn("dispatcher: analytics write failed", "error", err)
		}
	}
}
