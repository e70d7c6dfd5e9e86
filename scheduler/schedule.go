package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// IsWithinSchedule reports whether now falls inside the campaign's daily send
// window, evaluated in the campaign's timezone. sendDays holds weekday
// abbreviations (Mon..Sun); an empty list allows every day. A window whose end
// is before its start crosses midnight and is shifted to span into the
// neighboring day. Bounds are inclusive.
func IsWithinSchedule(now time.Time, timezone string, sendDays []string, windowStart, windowEnd string) (bool, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return false, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	local := now.In(loc)

	if len(sendDays) > 0 {
		weekday := local.Format("Mon")
		allowed := false
		for _, day := range sendDays {
			if strings.EqualFold(strings.TrimSpace(day), weekday) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, nil
		}
	}

	start, err := clockTimeOn(local, windowStart)
	if err != nil {
		return false, err
	}
	end, err := clockTimeOn(local, windowEnd)
	if err != nil {
		return false, err
	}

	if end.Before(start) {
		// Window crosses midnight: before today's end means we are in the
		// tail of yesterday's window, otherwise the window runs into tomorrow.
		if local.After(end) {
			end = end.Add(24 * time.Hour)
		} else {
			start = start.Add(-24 * time.Hour)
		}
	}

	return !local.Before(start) && !local.After(end), nil
}

// DayKeyInTZ returns the local calendar date (YYYY-MM-DD) for now in the
// given timezone. Used as the daily-counter partition key.
func DayKeyInTZ(now time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return now.In(loc).Format("2006-01-02"), nil
}

// clockTimeOn builds today's local time at the given HH:MM clock value.
func clockTimeOn(ref time.Time, hhmm string) (time.Time, error) {
	clock, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid window time %q: %w", hhmm, err)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), clock.Hour(), clock.Minute(), 0, 0, ref.Location()), nil
}
