// Package scheduler runs record jobs on a cron cadence from a single goroutine.
package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned (wrapped in a *ScheduleError) for malformed cron expressions.
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// ScheduleError describes why a cron expression was rejected.
type ScheduleError struct {
	Expr string
	Err  error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("%s %q: %v", ErrInvalidSchedule, e.Expr, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalidSchedule as the error kind.
func (e *ScheduleError) Is(target error) bool {
	return target == ErrInvalidSchedule
}

// parser accepts standard five-field expressions only: no seconds field and no
// descriptors such as @hourly or @every.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a parsed cron expression evaluated in a fixed location.
type Schedule struct {
	expr     string
	spec     cron.Schedule
	location *time.Location
}

// ParseSchedule parses a five-field cron expression evaluated in loc.
// A nil loc means time.Local.
func ParseSchedule(expr string, loc *time.Location) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &ScheduleError{Expr: expr, Err: errors.New("expression is empty")}
	}
	// Time zones come from configuration, not from the expression itself.
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, &ScheduleError{Expr: expr, Err: errors.New("set the timezone option instead of a TZ= prefix")}
	}

	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, &ScheduleError{Expr: expr, Err: err}
	}

	if loc == nil {
		loc = time.Local
	}

	return &Schedule{expr: expr, spec: spec, location: loc}, nil
}

// Next returns the first activation strictly after t.
func (s *Schedule) Next(t time.Time) time.Time {
	return s.spec.Next(t.In(s.location))
}

// Location returns the location the schedule is evaluated in.
func (s *Schedule) Location() *time.Location {
	return s.location
}

// String returns the original expression.
func (s *Schedule) String() string {
	return s.expr
}
