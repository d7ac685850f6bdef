package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/djlord-it/eoflow/internal/domain"
)

type StepResult struct {
	Name      string           `json:"name"`
	ProcessID string           `json:"processId"`
	JobID     string           `json:"jobId"`
	Status    domain.JobStatus `json:"status"`
}

type RunResult struct {
	WorkflowID string           `json:"workflowId"`
	Status     domain.JobStatus `json:"status"`
	JobIDs     []string         `json:"jobIds"`
	Steps      []StepResult     `json:"steps"`
}

// Run executes a workflow's steps in order through the process path. The
// first failing step stops the run; the returned RunResult still lists the
// jobs created before it. Only a completed run is recorded on the workflow.
func (d *Dispatcher) Run(ctx context.Context, workflowID string, trigger domain.Trigger) (result RunResult, err error) {
	start := time.Now()
	result = RunResult{WorkflowID: workflowID, Status: domain.JobStatusQueued, JobIDs: []string{}, Steps: []StepResult{}}

	ctx, span := d.tracer.Start(ctx, "eoflow.dispatch.workflow",
		trace.WithAttributes(
			attribute.String("eoflow.workflow.id", workflowID),
			attribute.String("eoflow.trigger", string(trigger)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer func() {
		status := string(result.Status)
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Int("eoflow.workflow.jobs", len(result.JobIDs)))
		span.End()
		d.record(ctx, trigger, "workflow", workflowID, "workflow", status, start)
	}()

	wf, ok := d.workflows.Get(workflowID)
	if !ok {
		return result, domain.NotFound("Workflow", workflowID)
	}
	if len(wf.Steps) == 0 {
		return result, domain.InvalidParameter("Workflow '%s' has no steps", workflowID)
	}

	for i, step := range wf.Steps {
		label := step.Name
		if label == "" {
			label = fmt.Sprintf("step-%d", i+1)
		}

		inputs, ok := step.Inputs()
		if !ok {
			return result, domain.InvalidParameter("Step '%s' payload requires an 'inputs' object", label)
		}

		job, err := d.ExecuteProcess(ctx, step.ProcessID, inputs, trigger)
		if err != nil {
			return result, fmt.Errorf("step '%s': %w", label, err)
		}

		result.JobIDs = append(result.JobIDs, job.ID)
		result.Steps = append(result.Steps, StepResult{
			Name:      label,
			ProcessID: step.ProcessID,
			JobID:     job.ID,
			Status:    job.Status,
		})
		if job.Status == domain.JobStatusFailed {
			result.Status = domain.JobStatusFailed
			return result, domain.InvalidParameter("Step '%s' failed: %s", label, job.Execution.Error)
		}
	}

	result.Status = aggregate(result.Steps)
	if _, ok := d.workflows.MarkRun(workflowID, result.JobIDs); !ok {
		d.logger.Warn("dispatcher: workflow deleted during run", "workflow_id", workflowID)
	}
	return result, nil
}

// aggregate: any failed step fails the run, all succeeded succeeds it,
// anything else is still queued.
func aggregate(steps []StepResult) domain.JobStatus {
	allSucceeded := true
	for _, s := range steps {
		if s.Status == domain.JobStatusFailed {
			return domain.JobStatusFailed
		}
		if s.Status != domain.JobStatusSucceeded {
			allSucceeded = false
		}
	}
	if allSucceeded {
		return domain.JobStatusSucceeded
	}
	return domain.JobStatusQueued
}
