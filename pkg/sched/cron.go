package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week).
// Each field is a bitmask over its valid range.
type CronExpr struct {
	minute uint64 // 0-59
	hour   uint64 // 0-23
	dom    uint64 // 1-31
	month  uint64 // 1-12
	dow    uint64 // 0-6, 0 = Sunday
}

// cron search horizon; a valid expression always matches within this window
const cronLookahead = 4 * 365 * 24 * time.Hour

var cronAliases = map[string]string{
	"@hourly":   "0 * * * *",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@weekly":   "0 0 * * 0",
	"@monthly":  "0 0 1 * *",
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
}

// ParseCron parses a standard five-field cron expression with support for
// wildcards, lists, ranges, steps and the usual @-aliases.
func ParseCron(expr string) (*CronExpr, error) {
	if alias, ok := cronAliases[strings.ToLower(strings.TrimSpace(expr))]; ok {
		expr = alias
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	c := &CronExpr{}
	specs := []struct {
		name string
		min  int
		max  int
		dst  *uint64
	}{
		{"minute", 0, 59, &c.minute},
		{"hour", 0, 23, &c.hour},
		{"day-of-month", 1, 31, &c.dom},
		{"month", 1, 12, &c.month},
		{"day-of-week", 0, 6, &c.dow},
	}
	for i, spec := range specs {
		mask, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = mask
	}
	return c, nil
}

// parseCronField turns one field into a bitmask. Accepts "*", single values,
// ranges, comma lists and "/step" suffixes on any of those.
func parseCronField(field string, minVal, maxVal int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		step := 1
		if idx := strings.Index(part, "/"); idx != -1 {
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", part[idx+1:])
			}
			step = n
			part = part[:idx]
		}

		start, end := minVal, maxVal
		switch {
		case part == "*":
			// full range
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			a, err := strconv.Atoi(bounds[0])
			if err != nil {
				return 0, fmt.Errorf("bad range start %q", bounds[0])
			}
			b, err := strconv.Atoi(bounds[1])
			if err != nil {
				return 0, fmt.Errorf("bad range end %q", bounds[1])
			}
			start, end = a, b
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			start, end = n, n
		}

		if start < minVal || end > maxVal || start > end {
			return 0, fmt.Errorf("value out of range [%d-%d]: %q", minVal, maxVal, part)
		}
		for v := start; v <= end; v += step {
			mask |= 1 << uint(v)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("empty field")
	}
	return mask, nil
}

func bit(mask uint64, v int) bool { return mask&(1<<uint(v)) != 0 }

// Next returns the first time strictly after from that matches the
// expression, evaluated in from's location. Returns the zero time if no
// match exists within the lookahead horizon.
func (c *CronExpr) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := from.Add(cronLookahead)

	for t.Before(limit) {
		if !bit(c.month, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !bit(c.dom, t.Day()) || !bit(c.dow, int(t.Weekday())) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
			continue
		}
		if !bit(c.hour, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
			continue
		}
		if !bit(c.minute, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}
