// Package race maps calendar dates to stages and picks last-known-good
// results when the live page cannot be used.
package race

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the layout of calendar dates.
const DateLayout = "2006-01-02"

// DefaultPreRaceStage is reported when today precedes the first race day.
const DefaultPreRaceStage = 1

// ErrEmptyCalendar is returned when a calendar has no entries.
var ErrEmptyCalendar = errors.New("race calendar has no entries")

// Entry is one racing day.
type Entry struct {
	Date  string `yaml:"date" json:"date"`
	Stage int    `yaml:"stage" json:"stage"`
}

type day struct {
	date  time.Time
	stage int
}

// Calendar is an immutable date to stage mapping. Rest days are gaps.
type Calendar struct {
	days    []day
	preRace int
}

// NewCalendar validates entries and builds a calendar. Entries may be given
// in any order but, once sorted by date, stages must strictly increase.
// A preRace value below 1 selects DefaultPreRaceStage.
func NewCalendar(entries []Entry, preRace int) (*Calendar, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCalendar
	}
	if preRace < 1 {
		preRace = DefaultPreRaceStage
	}

	days := make([]day, 0, len(entries))
	for _, e := range entries {
		d, err := time.Parse(DateLayout, e.Date)
		if err != nil {
			return nil, fmt.Errorf("calendar date %q: %w", e.Date, err)
		}
		if e.Stage < 1 {
			return nil, fmt.Errorf("calendar date %s: stage %d is not positive", e.Date, e.Stage)
		}
		days = append(days, day{date: d, stage: e.Stage})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	for i := 1; i < len(days); i++ {
		prev, cur := days[i-1], days[i]
		if cur.date.Equal(prev.date) {
			return nil, fmt.Errorf("calendar date %s listed twice", cur.date.Format(DateLayout))
		}
		if cur.stage <= prev.stage {
			return nil, fmt.Errorf("calendar stage %d on %s does not follow stage %d on %s",
				cur.stage, cur.date.Format(DateLayout), prev.stage, prev.date.Format(DateLayout))
		}
	}

	return &Calendar{days: days, preRace: preRace}, nil
}

// civil reduces t to its calendar date in t's own location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Resolve returns the stage of the latest race day on or before today.
// today is compared by calendar date in its own location, so callers
// convert it to the race time zone first. Before the first race day the
// pre-race stage is returned; after the last one, the last stage.
func (c *Calendar) Resolve(today time.Time) int {
	t := civil(today)
	i := sort.Search(len(c.days), func(i int) bool { return c.days[i].date.After(t) })
	if i == 0 {
		return c.preRace
	}
	return c.days[i-1].stage
}

// StageOn reports the stage raced on date, if any.
func (c *Calendar) StageOn(date time.Time) (int, bool) {
	t := civil(date)
	i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].date.Before(t) })
	if i < len(c.days) && c.days[i].date.Equal(t) {
		return c.days[i].stage, true
	}
	return 0, false
}

// Entries returns the race days in date order.
func (c *Calendar) Entries() []Entry {
	out := make([]Entry, len(c.days))
	for i, d := range c.days {
		out[i] = Entry{Date: d.date.Format(DateLayout), Stage: d.stage}
	}
	return out
}

// PreRaceStage is the stage reported before the race starts.
func (c *Calendar) PreRaceStage() int { return c.preRace }
