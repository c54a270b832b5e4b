// Package schedule fires the daily cycle at a fixed local time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// LocalClock reads the system clock in a fixed location.
type LocalClock struct {
	Location *time.Location
}

func (c LocalClock) Now() time.Time { return time.Now().In(c.Location) }

// DailySpec turns "HH:MM" into a cron spec firing once a day.
func DailySpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("daily time %q: want HH:MM", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Scheduler runs a job on a cron schedule in a given location. A run that
// is still going when the next one is due causes that one to be skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	spec     string
}

// New creates a scheduler that calls job on spec, a standard five-field
// cron expression or descriptor, evaluated in loc. The scheduler is not
// started.
func New(ctx context.Context, spec string, loc *time.Location, job func(ctx context.Context)) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(loc),
		// Recover must sit inside SkipIfStillRunning: the skip wrapper only
		// releases its token when the wrapped job returns normally.
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	c.Schedule(sched, cron.FuncJob(func() { job(ctx) }))

	return &Scheduler{cron: c, schedule: sched, loc: loc, spec: spec}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "spec", s.spec, "location", s.loc.String(), "next", s.Next(time.Now()))
}

// Stop halts the scheduler. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the first firing time after t, in the scheduler's location.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Location is the time zone the schedule is evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		slog.Warn("cron: run skipped, previous run still active", keysAndValues...)
		return
	}
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
