// Package scheduler polls the schedule registry and runs the schedules
// whose next cron fire time has passed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/djlord-it/eoflow/internal/domain"
)

const DefaultPollInterval = 30 * time.Second

var ErrNilParser = errors.New("scheduler: cron parser is required")

type ScheduleSource interface {
	List() []domain.Schedule
}

type CronParser interface {
	Parse(expression string, timezone string) (CronSchedule, error)
}

type CronSchedule interface {
	Next(after time.Time) time.Time
}

// Runner executes one schedule. Implementations record the run on the
// schedule so the next due check anchors on it.
type Runner interface {
	RunSchedule(ctx context.Context, scheduleID string, trigger domain.Trigger) error
}

// MetricsSink must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, triggered int, err error)
	DueCheckFailed()
}

type Config struct {
	PollInterval time.Duration
}

type Scheduler struct {
	config  Config
	source  ScheduleSource
	parser  CronParser
	runner  Runner
	metrics MetricsSink // optional, nil = disabled
	logger  *slog.Logger
	clock   func() time.Time
}

func New(config Config, source ScheduleSource, parser CronParser, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if parser == nil {
		return nil, ErrNilParser
	}
	if source == nil || runner == nil {
		return nil, errors.New("scheduler: schedule source and runner are required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		config: config,
		source: source,
		parser: parser,
		runner: runner,
		logger: logger,
		clock:  time.Now,
	}, nil
}

func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run polls once immediately and then on every interval until ctx is
// cancelled. A dispatch in flight when ctx is cancelled runs to completion
// with ctx's values but without its cancellation; no further schedule in
// that tick is started.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler: started", "poll_interval", s.config.PollInterval.String())

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every due schedule once and returns how many were run.
func (s *Scheduler) Tick(ctx context.Context) int {
	start := s.clock()
	now := start.UTC()
	if s.metrics != nil {
		s.metrics.TickStarted()
	}

	var (
		triggered int
		tickErr   error
	)
	for _, sched := range s.source.List() {
		if ctx.Err() != nil {
			break
		}

		due, err := s.IsDue(sched, now)
		if err != nil {
			s.logger.Warn("scheduler: skipping schedule", "schedule_id", sched.ID, "cron", sched.Cron, "error", err)
			if s.metrics != nil {
				s.metrics.DueCheckFailed()
			}
			continue
		}
		if !due {
			continue
		}

		triggered++
		// Stopping ends the loop, not the dispatch already under way.
		if err := s.runner.RunSchedule(context.WithoutCancel(ctx), sched.ID, domain.TriggerCron); err != nil {
			s.logger.Error("scheduler: schedule run failed", "schedule_id", sched.ID, "error", err)
			tickErr = err
			continue
		}
		s.logger.Info("scheduler: schedule triggered", "schedule_id", sched.ID, "name", sched.Name)
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().Sub(start), triggered, tickErr)
	}
	return triggered
}

// IsDue reports whether the first fire time after the schedule's anchor has
// passed. Disabled schedules and empty expressions are never due; an
// expression that does not parse is reported as an error.
func (s *Scheduler) IsDue(sched domain.Schedule, now time.Time) (bool, error) {
	if !sched.Enabled || strings.TrimSpace(sched.Cron) == "" {
		return false, nil
	}

	cs, err := s.parser.Parse(sched.Cron, sched.Timezone)
	if err != nil {
		return false, fmt.Errorf("parse cron: %w", err)
	}

	next := cs.Next(sched.Anchor(now))
	if next.IsZero() {
		return false, nil
	}
	return !next.After(now), nil
}
