package main

import (
	"context"
	"time"

	"github.com/djlord-it/eoflow/internal/cron"
	"github.com/djlord-it/eoflow/internal/dispatcher"
	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/scheduler"
)

// cronParserAdapter adapts internal/cron.Parser to scheduler.CronParser interface.
type cronParserAdapter struct {
	parser *cron.Parser
}

func (a *cronParserAdapter) Parse(expression string, timezone string) (scheduler.CronSchedule, error) {
	sched, err := a.parser.Parse(expression, timezone)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{sched: sched}, nil
}

// cronScheduleAdapter adapts internal/cron.Schedule to scheduler.CronSchedule interface.
type cronScheduleAdapter struct {
	sched cron.Schedule
}

func (a *cronScheduleAdapter) Next(after time.Time) time.Time {
	return a.sched.Next(after)
}

type scheduleDispatcher interface {
	RunSchedule(ctx context.Context, scheduleID string, trigger domain.Trigger) (dispatcher.ScheduleRun, error)
}

// scheduleRunner adapts the dispatcher to scheduler.Runner; the scheduler
// only needs to know whether the run failed.
type scheduleRunner struct {
	d scheduleDispatcher
}

func (r *scheduleRunner) RunSchedule(ctx context.Context, scheduleID string, trigger domain.Trigger) error {
	_, err := r.d.RunSchedule(ctx, scheduleID, trigger)
	return err
}
