package sched

import (
	"fmt"
	"time"
)

// Kind identifies one of the recognized triggering policies.
type Kind string

const (
	KindInterval Kind = "interval"
	KindCron     Kind = "cron"
	KindEvery    Kind = "every"
	KindAt       Kind = "at"
	KindIn       Kind = "in"
)

// nearZeroDelay is the first-fire delay for the "every" policy. Scheduling
// "now" literally races the loop startup, so the first invocation lands a
// hair later instead.
const nearZeroDelay = 50 * time.Millisecond

// Trigger decides when poll cycles fire. Exactly one policy is active per
// trigger; construction fails on anything unrecognized.
type Trigger struct {
	kind   Kind
	period time.Duration // interval / every / in
	at     time.Time     // at
	cron   *CronExpr
	loc    *time.Location
}

// Kind reports the active policy.
func (t Trigger) Kind() Kind { return t.kind }

// NewInterval builds the deprecated fixed-interval policy: fire immediately,
// then every `seconds` seconds.
func NewInterval(seconds int) (Trigger, error) {
	if seconds <= 0 {
		return Trigger{}, fmt.Errorf("interval must be positive, got %d", seconds)
	}
	return Trigger{kind: KindInterval, period: time.Duration(seconds) * time.Second}, nil
}

// ParseSchedule builds a trigger from a declarative schedule mapping with
// exactly one key from {cron, every, at, in}. The timezone applies to cron
// evaluation only and defaults to UTC.
func ParseSchedule(schedule map[string]string, timezone string) (Trigger, error) {
	if len(schedule) != 1 {
		return Trigger{}, fmt.Errorf("schedule must have exactly one key, got %d", len(schedule))
	}

	var kind, value string
	for k, v := range schedule {
		kind, value = k, v
	}

	switch Kind(kind) {
	case KindCron:
		expr, err := ParseCron(value)
		if err != nil {
			return Trigger{}, fmt.Errorf("cron %q: %w", value, err)
		}
		loc := time.UTC
		if timezone != "" {
			loc, err = time.LoadLocation(timezone)
			if err != nil {
				return Trigger{}, fmt.Errorf("timezone %q: %w", timezone, err)
			}
		}
		return Trigger{kind: KindCron, cron: expr, loc: loc}, nil

	case KindEvery:
		d, err := time.ParseDuration(value)
		if err != nil {
			return Trigger{}, fmt.Errorf("every %q: %w", value, err)
		}
		if d <= 0 {
			return Trigger{}, fmt.Errorf("every %q: period must be positive", value)
		}
		return Trigger{kind: KindEvery, period: d}, nil

	case KindAt:
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return Trigger{}, fmt.Errorf("at %q: %w", value, err)
		}
		return Trigger{kind: KindAt, at: ts}, nil

	case KindIn:
		d, err := time.ParseDuration(value)
		if err != nil {
			return Trigger{}, fmt.Errorf("in %q: %w", value, err)
		}
		if d < 0 {
			return Trigger{}, fmt.Errorf("in %q: delay must not be negative", value)
		}
		return Trigger{kind: KindIn, period: d}, nil
	}

	return Trigger{}, fmt.Errorf("unrecognized schedule key %q (want cron, every, at or in)", kind)
}

// initialDelay is the wait before the first invocation.
func (t Trigger) initialDelay(now time.Time) time.Duration {
	switch t.kind {
	case KindInterval:
		return 0
	case KindEvery:
		return nearZeroDelay
	case KindCron:
		next := t.cron.Next(now.In(t.loc))
		if next.IsZero() {
			return -1
		}
		return next.Sub(now)
	case KindAt:
		if d := time.Until(t.at); d > 0 {
			return d
		}
		return 0
	case KindIn:
		return t.period
	}
	return -1
}

// nextDelay is the wait between one invocation and the next. ok=false means
// the trigger is one-shot and the timeline is done.
func (t Trigger) nextDelay(now time.Time) (time.Duration, bool) {
	switch t.kind {
	case KindInterval, KindEvery:
		return t.period, true
	case KindCron:
		next := t.cron.Next(now.In(t.loc))
		if next.IsZero() {
			return 0, false
		}
		return next.Sub(now), true
	}
	// at / in fire once
	return 0, false
}
