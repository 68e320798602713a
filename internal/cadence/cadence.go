// Package cadence resolves when an engine should fire next.
package cadence

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Cadence is a recurring schedule. The zero value never fires.
type Cadence struct {
	expr     string
	schedule cron.Schedule
}

// Parse accepts standard five field cron expressions, an optional leading
// seconds field, and descriptors such as "@hourly" or "@every 90s".
func Parse(expr string) (Cadence, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Cadence{}, fmt.Errorf("cadence: empty expression")
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return Cadence{}, fmt.Errorf("cadence: parse %q: %w", expr, err)
	}
	return Cadence{expr: expr, schedule: schedule}, nil
}

func MustParse(expr string) Cadence {
	c, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Every fires at a fixed interval after the reference time. Unlike
// cron's "@every" it keeps sub-second precision.
func Every(d time.Duration) Cadence {
	if d <= 0 {
		return Cadence{}
	}
	return Cadence{expr: "@every " + d.String(), schedule: interval(d)}
}

// Next returns the first activation strictly after t, or the zero time when
// the cadence never fires.
func (c Cadence) Next(t time.Time) time.Time {
	if c.schedule == nil {
		return time.Time{}
	}
	return c.schedule.Next(t)
}

func (c Cadence) IsZero() bool {
	return c.schedule == nil
}

func (c Cadence) String() string {
	return c.expr
}

type interval time.Duration

func (i interval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(i))
}
