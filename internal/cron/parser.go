// Package cron wraps robfig/cron with the five-field dialect used by
// schedules and the zone handling the scheduler relies on.
package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

type Schedule interface {
	// Next returns the first fire time strictly after the given instant, or
	// the zero time if there is none.
	Next(after time.Time) time.Time
}

// Parse compiles expression for evaluation in timezone. An unknown zone is
// not an error here: evaluation falls back to UTC.
func (p *Parser) Parse(expression, timezone string) (Schedule, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("parse cron: empty expression")
	}
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return &schedule{sched: sched, loc: Location(timezone)}, nil
}

// Validate is the strict form used when a schedule is written.
func (p *Parser) Validate(expression, timezone string) error {
	if _, err := p.Parse(expression, timezone); err != nil {
		return err
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	return nil
}

// Location resolves an IANA zone name, falling back to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}
