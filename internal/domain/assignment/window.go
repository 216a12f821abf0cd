// internal/domain/assignment/window.go
package assignment

import (
	"fmt"
	"time"
)

// WindowConfig carries the resolved reminder offsets and timezone for one
// placement (job overrides already applied over the global defaults).
type WindowConfig struct {
	NightBeforeTime string // "HH:mm"
	DayOfTime       string // "HH:mm"
	Location        *time.Location
}

// ParseClock validates an "HH:mm" wall-clock string.
func ParseClock(hhmm string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q: %w", hhmm, err)
	}
	return t.Hour(), t.Minute(), nil
}

// LocalInstant converts a calendar date plus a local wall-clock time into an
// absolute instant in loc. time.Date resolves daylight-saving transitions, so
// 19:00 stays 19:00 on the wall either side of a DST switch.
func LocalInstant(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc), nil
}

// ClassInstant returns the absolute instant at which the given reminder class
// becomes due for a shift on workDate.
func ClassInstant(class ReminderClass, workDate time.Time, cfg WindowConfig) (time.Time, error) {
	switch class {
	case ClassNightBefore:
		return LocalInstant(workDate.AddDate(0, 0, -1), cfg.NightBeforeTime, cfg.Location)
	case ClassDayOf:
		return LocalInstant(workDate, cfg.DayOfTime, cfg.Location)
	default:
		return time.Time{}, fmt.Errorf("unknown reminder class %q", class)
	}
}

// Due reports whether now falls inside the send window for the class: at or
// after the class instant and strictly before the shift start. Reminders are
// never sent once the shift has begun.
func Due(class ReminderClass, p *Placement, cfg WindowConfig, now time.Time) (bool, error) {
	instant, err := ClassInstant(class, p.WorkDate, cfg)
	if err != nil {
		return false, err
	}
	start, err := LocalInstant(p.WorkDate, p.StartTime, cfg.Location)
	if err != nil {
		return false, err
	}
	return !now.Before(instant) && now.Before(start), nil
}

// DateIn truncates t to its calendar date in loc. Used to build date-range
// queries against the DATE-typed work_date column.
func DateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
